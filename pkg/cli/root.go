package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/platinummonkey/orgportal/pkg/authclient"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
	Out         io.Writer
}

// NewRootCommand creates the root command writing results to out
func NewRootCommand(out io.Writer) *Command {
	if out == nil {
		out = os.Stdout
	}
	root := &Command{
		Name:        "orgportalctl",
		Description: "Org portal command line client",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("orgportalctl", flag.ContinueOnError),
		Out:         out,
	}

	root.Subcommands["register"] = newRegisterCommand(out)
	root.Subcommands["whoami"] = newWhoamiCommand(out)
	root.Subcommands["create-org"] = newCreateOrgCommand(out)
	root.Subcommands["update-profile"] = newUpdateProfileCommand(out)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

func (c *Command) usage() error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(c.Out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.Out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(c.Out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// connection holds the flags every command shares
type connection struct {
	url      *string
	email    *string
	password *string
	timeout  *time.Duration
}

func connectionFlags(fs *flag.FlagSet) connection {
	return connection{
		url:      fs.String("url", getEnv("ORGPORTAL_URL", "http://localhost:8080"), "Portal base URL"),
		email:    fs.String("email", getEnv("ORGPORTAL_EMAIL", ""), "Account email"),
		password: fs.String("password", getEnv("ORGPORTAL_PASSWORD", ""), "Account password"),
		timeout:  fs.Duration("timeout", 30*time.Second, "Overall request timeout"),
	}
}

func (c connection) client() (*authclient.Client, error) {
	return authclient.New(*c.url)
}

// signedIn opens a session, runs fn, and signs out again
func (c connection) signedIn(fn func(ctx context.Context, client *authclient.Client) error) error {
	if *c.email == "" || *c.password == "" {
		return fmt.Errorf("-email and -password are required")
	}

	client, err := c.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *c.timeout)
	defer cancel()

	if err := client.SignIn(ctx, *c.email, *c.password); err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	defer client.SignOut(ctx)

	return fn(ctx, client)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
