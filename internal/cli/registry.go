package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vsbuffalo/modelops-contracts/registry"
)

// RegistryLintResult is the JSON payload of a registry lint run.
type RegistryLintResult struct {
	Valid  bool                       `json:"valid"`
	Errors []registry.ValidationError `json:"errors,omitempty"`
}

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Lint and validate bundle registries",
	}
	cmd.AddCommand(newRegistryLintCommand(rootOpts))
	return cmd
}

func newRegistryLintCommand(rootOpts *RootOptions) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "lint <registry.yaml>",
		Short: "Lint a registry document against schema and working tree",
		Long: `Lint a registry document in two stages: the embedded CUE schema gates
document shape, then semantic validation checks entrypoints, digests,
and that every referenced file exists under the base directory
(defaults to the document's directory).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryLint(rootOpts, args[0], base, cmd)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base directory for referenced files")
	return cmd
}

func runRegistryLint(opts *RootOptions, path, base string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	raw, err := os.ReadFile(path)
	if err != nil {
		return failCommand(formatter, "read registry", err)
	}
	if base == "" {
		base = filepath.Dir(path)
	}

	r, errs := registry.LintAndParse(raw)
	if len(errs) == 0 {
		formatter.VerboseLog("schema ok: %d model(s), %d target(s)", len(r.Models), len(r.Targets))
		errs = r.Validate(base)
	}

	if len(errs) > 0 {
		return outputRegistryErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.Success(RegistryLintResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "registry is valid")
	return nil
}

func outputRegistryErrors(formatter *OutputFormatter, errs []registry.ValidationError) error {
	if formatter.Format == "json" {
		_ = formatter.Error(errs[0].Code, errs[0].Message, RegistryLintResult{
			Valid:  false,
			Errors: errs,
		})
		return NewExitError(ExitFailure, fmt.Sprintf("registry lint failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "registry lint failed with %d error(s)\n\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("registry lint failed with %d error(s)", len(errs)))
}
