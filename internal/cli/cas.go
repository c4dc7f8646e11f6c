package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsbuffalo/modelops-contracts/internal/cas"
)

// CASPutResult is the JSON payload of a cas put run.
type CASPutResult struct {
	Address string `json:"address"`
	Size    int    `json:"size"`
}

// CASExistsResult is the JSON payload of a cas exists run.
type CASExistsResult struct {
	Address string `json:"address"`
	Exists  bool   `json:"exists"`
}

// NewCASCommand creates the cas command group.
func NewCASCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cas",
		Short: "Operate on a file-backed content-addressed store",
	}
	cmd.AddCommand(newCASPutCommand(rootOpts))
	cmd.AddCommand(newCASGetCommand(rootOpts))
	cmd.AddCommand(newCASExistsCommand(rootOpts))
	return cmd
}

func casRootFlag(cmd *cobra.Command, root *string) {
	cmd.Flags().StringVar(root, "root", envOr("MODELOPS_CAS_ROOT", "cas"), "CAS root directory")
}

func newCASPutCommand(rootOpts *RootOptions) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:           "put <file>",
		Short:         "Store a file and print its content address",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return failCommand(formatter, "read input", err)
			}
			c, err := cas.New(root)
			if err != nil {
				return failCommand(formatter, "open cas", err)
			}
			address, err := c.Put(cmd.Context(), data)
			if err != nil {
				return failCommand(formatter, "store blob", err)
			}

			if formatter.Format == "json" {
				return formatter.Success(CASPutResult{Address: address, Size: len(data)})
			}
			fmt.Fprintln(formatter.Writer, address)
			return nil
		},
	}
	casRootFlag(cmd, &root)
	return cmd
}

func newCASGetCommand(rootOpts *RootOptions) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:           "get <address>",
		Short:         "Print a stored blob to stdout",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			c, err := cas.New(root)
			if err != nil {
				return failCommand(formatter, "open cas", err)
			}
			data, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return failCommand(formatter, "get blob", err)
			}
			// Blobs are raw bytes; no envelope even in JSON mode.
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	casRootFlag(cmd, &root)
	return cmd
}

func newCASExistsCommand(rootOpts *RootOptions) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:           "exists <address>",
		Short:         "Check whether a blob is stored",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			c, err := cas.New(root)
			if err != nil {
				return failCommand(formatter, "open cas", err)
			}
			ok, err := c.Exists(cmd.Context(), args[0])
			if err != nil {
				return failCommand(formatter, "check blob", err)
			}

			if formatter.Format == "json" {
				return formatter.Success(CASExistsResult{Address: args[0], Exists: ok})
			}
			fmt.Fprintln(formatter.Writer, ok)
			if !ok {
				return NewExitError(ExitFailure, "blob not found")
			}
			return nil
		},
	}
	casRootFlag(cmd, &root)
	return cmd
}
