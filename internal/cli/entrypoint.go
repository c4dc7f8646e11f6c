package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

// EntrypointResult is the JSON payload of a parsed entrypoint.
type EntrypointResult struct {
	Text       string `json:"text"`
	Canonical  string `json:"canonical"`
	ImportPath string `json:"import_path"`
	Scenario   string `json:"scenario"`
	Digest     string `json:"digest,omitempty"`
}

// NewEntrypointCommand creates the entrypoint command group.
func NewEntrypointCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entrypoint",
		Short: "Parse and build entrypoint text",
	}
	cmd.AddCommand(newEntrypointParseCommand(rootOpts))
	cmd.AddCommand(newEntrypointFormatCommand(rootOpts))
	return cmd
}

func newEntrypointParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>",
		Short: "Parse entrypoint text into its components",
		Long: `Parse entrypoint text of the form import.path.Class/scenario, or the
legacy import.path.Class/scenario@digest12 form, into its components.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			e, err := contracts.ParseEntrypoint(args[0])
			if err != nil {
				return failContract(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(EntrypointResult{
					Text:       e.String(),
					Canonical:  e.Canonical().String(),
					ImportPath: e.ImportPath(),
					Scenario:   e.Scenario(),
					Digest:     e.Digest(),
				})
			}
			fmt.Fprintf(formatter.Writer, "import path: %s\n", e.ImportPath())
			fmt.Fprintf(formatter.Writer, "scenario:    %s\n", e.Scenario())
			if e.HasDigest() {
				fmt.Fprintf(formatter.Writer, "digest:      %s (legacy)\n", e.Digest())
			}
			fmt.Fprintf(formatter.Writer, "canonical:   %s\n", e.Canonical().String())
			return nil
		},
	}
}

func newEntrypointFormatCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "format <import-path> <scenario>",
		Short:         "Build canonical entrypoint text from components",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			text, err := contracts.FormatEntrypoint(args[0], args[1])
			if err != nil {
				return failContract(formatter, err)
			}
			if formatter.Format == "json" {
				return formatter.Success(EntrypointResult{
					Text:       text,
					Canonical:  text,
					ImportPath: args[0],
					Scenario:   args[1],
				})
			}
			fmt.Fprintln(formatter.Writer, text)
			return nil
		},
	}
}
