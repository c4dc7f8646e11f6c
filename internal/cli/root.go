package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the moc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "moc",
		Short: "modelops contracts toolbox",
		Long: `Inspect and validate the data contracts shared between modelops
orchestration and the scientific computation side: parameter identities,
task documents, entrypoints, trial ledgers, content-addressed blobs, and
bundle registries.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env bootstrap: MODELOPS_* variables (ledger paths, CAS
			// roots, environment dirs) may come from a project .env.
			// A missing file is the normal case, not an error.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load .env: %w", err)
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewParamIDCommand(opts))
	cmd.AddCommand(NewTaskCommand(opts))
	cmd.AddCommand(NewEntrypointCommand(opts))
	cmd.AddCommand(NewTrialCommand(opts))
	cmd.AddCommand(NewCASCommand(opts))
	cmd.AddCommand(NewRegistryCommand(opts))
	cmd.AddCommand(NewEnvCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newFormatter builds the formatter every subcommand uses: results on
// stdout, verbose logs on stderr.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// failContract reports a contract violation: the error kind becomes the
// response code, and the command exits with ExitFailure because the
// input data - not the command invocation - is at fault.
func failContract(formatter *OutputFormatter, err error) error {
	code := "CONTRACT_VIOLATION"
	var ce *contracts.ContractError
	if errors.As(err, &ce) {
		code = string(ce.Kind)
	}
	_ = formatter.Error(code, err.Error(), nil)
	return NewExitError(ExitFailure, err.Error())
}

// failCommand reports an operational error: missing files, unreadable
// ledgers, bad arguments.
func failCommand(formatter *OutputFormatter, message string, err error) error {
	_ = formatter.Error("COMMAND_ERROR", fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(ExitCommandError, message, err)
}
