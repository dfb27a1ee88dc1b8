package rbac

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config enumerates, per role name, the permissions granted to it
type Config struct {
	Roles map[string]RoleConfig `yaml:"roles"`
}

// RoleConfig is the permission list of a single role
type RoleConfig struct {
	Permissions []string `yaml:"permissions"`
}

// DefaultConfig returns the built-in policy used when no policy file is configured
func DefaultConfig() Config {
	return Config{
		Roles: map[string]RoleConfig{
			string(RoleOwner): {Permissions: []string{
				string(PermManageOrg),
				string(PermManageUsers),
				string(PermManageBilling),
				string(PermRead),
				string(PermWrite),
			}},
			string(RoleAdmin): {Permissions: []string{
				string(PermManageUsers),
				string(PermRead),
				string(PermWrite),
			}},
			string(RoleMember): {Permissions: []string{
				string(PermRead),
			}},
		},
	}
}

// LoadConfig decodes a YAML policy. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return Config{}, fmt.Errorf("failed to decode rbac policy: empty document")
		}
		return Config{}, fmt.Errorf("failed to decode rbac policy: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML policy from path
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open rbac policy: %w", err)
	}
	defer f.Close()

	return LoadConfig(f)
}

// LoadPermissionMap builds the permission map from the policy at path,
// or from DefaultConfig when path is empty.
func LoadPermissionMap(path string) (*PermissionMap, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
	}
	return BuildPermissionMap(cfg)
}
