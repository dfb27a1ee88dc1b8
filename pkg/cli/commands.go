package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/platinummonkey/orgportal/pkg/authclient"
	"github.com/platinummonkey/orgportal/pkg/orgs"
	"github.com/platinummonkey/orgportal/pkg/users"
)

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRegisterCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "register",
		Description: "Create an account",
		Flags:       flag.NewFlagSet("register", flag.ContinueOnError),
		Out:         out,
	}

	conn := connectionFlags(cmd.Flags)
	name := cmd.Flags.String("name", "", "Display name")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *conn.email == "" || *conn.password == "" {
			return fmt.Errorf("-email and -password are required")
		}

		client, err := conn.client()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), *conn.timeout)
		defer cancel()

		if err := client.Register(ctx, authclient.Credentials{Email: *conn.email, Password: *conn.password, Name: *name}); err != nil {
			return fmt.Errorf("register failed: %w", err)
		}
		fmt.Fprintf(out, "Registered %s\n", *conn.email)
		return nil
	}

	return cmd
}

func newWhoamiCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "whoami",
		Description: "Show the signed-in user",
		Flags:       flag.NewFlagSet("whoami", flag.ContinueOnError),
		Out:         out,
	}

	conn := connectionFlags(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return conn.signedIn(func(ctx context.Context, client *authclient.Client) error {
			sess, err := client.Session(ctx)
			if err != nil {
				return err
			}
			if sess.User == nil {
				return fmt.Errorf("no active session")
			}
			return printJSON(out, sess.User)
		})
	}

	return cmd
}

func newCreateOrgCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "create-org",
		Description: "Create an organization owned by the signed-in user",
		Flags:       flag.NewFlagSet("create-org", flag.ContinueOnError),
		Out:         out,
	}

	conn := connectionFlags(cmd.Flags)
	name := cmd.Flags.String("name", "", "Organization name (required)")
	slug := cmd.Flags.String("slug", "", "Organization slug (derived from the name when empty)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *name == "" {
			return fmt.Errorf("-name is required")
		}
		return conn.signedIn(func(ctx context.Context, client *authclient.Client) error {
			resp, err := client.CreateOrganization(ctx, orgs.CreateOrgRequest{Name: *name, Slug: *slug})
			if err != nil {
				return err
			}
			return printJSON(out, resp.Organization)
		})
	}

	return cmd
}

func newUpdateProfileCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "update-profile",
		Description: "Update the signed-in user's profile",
		Flags:       flag.NewFlagSet("update-profile", flag.ContinueOnError),
		Out:         out,
	}

	conn := connectionFlags(cmd.Flags)
	name := cmd.Flags.String("name", "", "New display name")
	newEmail := cmd.Flags.String("new-email", "", "New email address")
	image := cmd.Flags.String("image", "", "Avatar URL")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return conn.signedIn(func(ctx context.Context, client *authclient.Client) error {
			resp, err := client.UpdateProfile(ctx, users.ProfileUpdate{Name: *name, Email: *newEmail, Image: *image})
			if err != nil {
				return err
			}
			return printJSON(out, resp.User)
		})
	}

	return cmd
}
