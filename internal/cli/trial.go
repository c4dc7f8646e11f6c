package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	contracts "github.com/vsbuffalo/modelops-contracts"
	"github.com/vsbuffalo/modelops-contracts/internal/store"
)

// TrialRecordResult is the JSON payload of a trial record run.
type TrialRecordResult struct {
	ParamID string `json:"param_id"`
	State   string `json:"state"`
}

// TrialListResult is the JSON payload of a trial list run.
type TrialListResult struct {
	State    string   `json:"state,omitempty"`
	ParamIDs []string `json:"param_ids"`
}

// NewTrialCommand creates the trial command group.
func NewTrialCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial",
		Short: "Record and inspect trial results in a ledger",
	}
	cmd.AddCommand(newTrialRecordCommand(rootOpts))
	cmd.AddCommand(newTrialListCommand(rootOpts))
	return cmd
}

func newTrialRecordCommand(rootOpts *RootOptions) *cobra.Command {
	var ledgerPath string

	cmd := &cobra.Command{
		Use:   "record <result.json>",
		Short: "Record a trial result in the ledger",
		Long: `Validate a trial result document and tell it to the ledger. Recording
the same result twice is a no-op; recording a different result for a
finished trial is a conflict and fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrialRecord(rootOpts, ledgerPath, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&ledgerPath, "ledger", envOr("MODELOPS_LEDGER", "trials.db"), "ledger database path")
	return cmd
}

func newTrialListCommand(rootOpts *RootOptions) *cobra.Command {
	var ledgerPath, state string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List trials in the ledger",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrialList(rootOpts, ledgerPath, state, cmd)
		},
	}
	cmd.Flags().StringVar(&ledgerPath, "ledger", envOr("MODELOPS_LEDGER", "trials.db"), "ledger database path")
	cmd.Flags().StringVar(&state, "state", "completed", "trial state to list (pending|leased|completed|failed|timeout)")
	return cmd
}

func runTrialRecord(opts *RootOptions, ledgerPath, resultPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return failCommand(formatter, "read result document", err)
	}
	var result contracts.TrialResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return failContract(formatter, err)
	}

	ledger, err := store.Open(ledgerPath)
	if err != nil {
		return failCommand(formatter, "open ledger", err)
	}
	defer ledger.Close()

	if err := ledger.Tell(cmd.Context(), result); err != nil {
		return failCommand(formatter, "record trial", err)
	}

	formatter.VerboseLog("recorded %s as %s", result.ParamID(), result.Status())
	if formatter.Format == "json" {
		return formatter.Success(TrialRecordResult{
			ParamID: result.ParamID(),
			State:   string(result.Status()),
		})
	}
	fmt.Fprintf(formatter.Writer, "recorded %s (%s)\n", result.ParamID(), result.Status())
	return nil
}

func runTrialList(opts *RootOptions, ledgerPath, state string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	ledger, err := store.Open(ledgerPath)
	if err != nil {
		return failCommand(formatter, "open ledger", err)
	}
	defer ledger.Close()

	ids, err := ledger.ListByState(cmd.Context(), store.State(state))
	if err != nil {
		return failCommand(formatter, "list trials", err)
	}

	if formatter.Format == "json" {
		if ids == nil {
			ids = []string{}
		}
		return formatter.Success(TrialListResult{State: state, ParamIDs: ids})
	}
	for _, id := range ids {
		fmt.Fprintln(formatter.Writer, id)
	}
	return nil
}

// envOr reads an environment variable with a fallback. The root command
// loads .env first, so MODELOPS_* defaults work per project.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
