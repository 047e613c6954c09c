package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-connect/pkg/retry"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

func newBootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Maintain BSS boot parameters",
	}
	cmd.AddCommand(
		newBootGetCommand(a),
		newBootSetCommand(a),
		newBootDeleteCommand(a),
	)
	return cmd
}

func newBootGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [hosts...]",
		Short: "Show boot parameter records, optionally scoped to hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := retry.Do(cmd.Context(), a.retry,
				func(ctx context.Context) ([]types.BootParameters, error) {
					return a.backend.GetBootParameters(ctx, args)
				})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
}

func newBootSetCommand(a *app) *cobra.Command {
	var (
		kernel    string
		initrd    string
		params    string
		fromFile  string
		patchOnly bool
	)

	cmd := &cobra.Command{
		Use:   "set <hosts>...",
		Short: "Create or update the boot parameter record for hosts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record := types.BootParameters{
				Hosts:  args,
				Kernel: kernel,
				Initrd: initrd,
				Params: params,
			}
			if fromFile != "" {
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return fmt.Errorf("reading boot parameter file: %w", err)
				}
				if err := json.Unmarshal(data, &record); err != nil {
					return fmt.Errorf("decoding boot parameter file: %w", err)
				}
				record.Hosts = args
			}

			if patchOnly {
				return a.backend.UpdateBootParameters(cmd.Context(), record)
			}
			return a.backend.AddBootParameters(cmd.Context(), record)
		},
	}
	f := cmd.Flags()
	f.StringVar(&kernel, "kernel", "", "kernel image URI")
	f.StringVar(&initrd, "initrd", "", "initrd image URI")
	f.StringVar(&params, "params", "", "kernel command line")
	f.StringVar(&fromFile, "from-file", "", "JSON file holding the full record")
	f.BoolVar(&patchOnly, "patch", false, "patch the existing record instead of creating one")
	return cmd
}

func newBootDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <hosts>...",
		Short: "Delete the boot parameter record covering hosts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.backend.DeleteBootParameters(cmd.Context(), types.BootParameters{Hosts: args})
		},
	}
}
