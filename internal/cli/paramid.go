package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

// ParamIDResult is the JSON payload of a successful param-id run.
type ParamIDResult struct {
	ParamID string           `json:"param_id"`
	Params  contracts.Params `json:"params"`
}

// NewParamIDCommand creates the param-id command.
func NewParamIDCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "param-id <params.json>",
		Short: "Compute the content-addressed ID of a parameter mapping",
		Long: `Compute the deterministic content-addressed identifier of a parameter
mapping. The input is a flat JSON object of scalar values; insertion
order never affects the ID.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParamID(rootOpts, args[0], cmd)
		},
	}
}

func runParamID(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	raw, err := os.ReadFile(path)
	if err != nil {
		return failCommand(formatter, "read parameters", err)
	}

	var params contracts.Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return failContract(formatter, err)
	}
	ps, err := contracts.NewParameterSet(params)
	if err != nil {
		return failContract(formatter, err)
	}

	formatter.VerboseLog("computed ID over %d parameter(s)", ps.Len())
	if formatter.Format == "json" {
		return formatter.Success(ParamIDResult{ParamID: ps.ID(), Params: ps.Values()})
	}
	fmt.Fprintln(formatter.Writer, ps.ID())
	return nil
}
