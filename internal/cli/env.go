package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vsbuffalo/modelops-contracts/bundleenv"
)

// EnvListResult is the JSON payload of an env list run.
type EnvListResult struct {
	Environments []string `json:"environments"`
}

// EnvShowResult is the JSON payload of an env show run. Secrets are
// redacted: show is for inspecting wiring, not recovering credentials.
type EnvShowResult struct {
	Name             string `json:"name"`
	RegistryProvider string `json:"registry_provider"`
	LoginServer      string `json:"login_server"`
	RequiresAuth     bool   `json:"requires_auth"`
	StorageProvider  string `json:"storage_provider"`
	Container        string `json:"container"`
	Endpoint         string `json:"endpoint,omitempty"`
}

// NewEnvCommand creates the env command group.
func NewEnvCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect deployment environments",
	}
	cmd.AddCommand(newEnvListCommand(rootOpts))
	cmd.AddCommand(newEnvShowCommand(rootOpts))
	return cmd
}

func envDirFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "dir", envOr("MODELOPS_ENV_DIR", ""),
		"environment directory (default ~/.modelops/bundle-env)")
}

func resolveEnvDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return bundleenv.DefaultDir()
}

func newEnvListCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List provisioned environments",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			resolved, err := resolveEnvDir(dir)
			if err != nil {
				return failCommand(formatter, "resolve environment directory", err)
			}
			names, err := bundleenv.ListIn(resolved)
			if err != nil {
				return failCommand(formatter, "list environments", err)
			}

			if formatter.Format == "json" {
				if names == nil {
					names = []string{}
				}
				return formatter.Success(EnvListResult{Environments: names})
			}
			for _, name := range names {
				fmt.Fprintln(formatter.Writer, name)
			}
			return nil
		},
	}
	envDirFlag(cmd, &dir)
	return cmd
}

func newEnvShowCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:           "show [name]",
		Short:         "Show one environment's wiring (secrets redacted)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			name := bundleenv.DefaultEnvironment
			if len(args) == 1 {
				name = args[0]
			}
			resolved, err := resolveEnvDir(dir)
			if err != nil {
				return failCommand(formatter, "resolve environment directory", err)
			}
			env, err := bundleenv.LoadFrom(resolved, name)
			if err != nil {
				return failCommand(formatter, "load environment", err)
			}

			if formatter.Format == "json" {
				return formatter.Success(EnvShowResult{
					Name:             env.Name,
					RegistryProvider: env.Registry.Provider,
					LoginServer:      env.Registry.LoginServer,
					RequiresAuth:     env.Registry.RequiresAuth,
					StorageProvider:  env.Storage.Provider,
					Container:        env.Storage.Container,
					Endpoint:         env.Storage.Endpoint,
				})
			}
			fmt.Fprintf(formatter.Writer, "environment: %s\n", env.Name)
			fmt.Fprintf(formatter.Writer, "registry:    %s (%s)\n", env.Registry.LoginServer, env.Registry.Provider)
			fmt.Fprintf(formatter.Writer, "storage:     %s (%s)\n", env.Storage.Container, env.Storage.Provider)
			if env.Storage.Endpoint != "" {
				fmt.Fprintf(formatter.Writer, "endpoint:    %s\n", env.Storage.Endpoint)
			}
			return nil
		},
	}
	envDirFlag(cmd, &dir)
	return cmd
}
