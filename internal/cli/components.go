package cli

import (
	"context"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-connect/pkg/retry"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

func newComponentsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "components",
		Aliases: []string{"component", "comp"},
		Short:   "Inspect and maintain SMD components",
	}
	cmd.AddCommand(
		newComponentsListCommand(a),
		newComponentsGetCommand(a),
		newComponentsDeleteCommand(a),
		newComponentsNidCommand(a),
	)
	return cmd
}

func newComponentsListCommand(a *app) *cobra.Command {
	var filter types.ComponentFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List components matching the filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := retry.Do(cmd.Context(), a.retry,
				func(ctx context.Context) ([]types.Component, error) {
					return a.backend.ListComponents(ctx, filter)
				})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), components)
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.Type, "type", "", "component type (Node, NodeBMC, ...)")
	f.StringVar(&filter.State, "state", "", "component state (Ready, Off, ...)")
	f.StringVar(&filter.Role, "role", "", "component role (Compute, Management, ...)")
	f.StringVar(&filter.Enabled, "enabled", "", "enabled flag (true|false)")
	f.StringVar(&filter.Arch, "arch", "", "architecture filter")
	f.StringVar(&filter.Class, "class", "", "hardware class filter")
	f.StringVar(&filter.NID, "nid", "", "comma-separated NID filter")
	f.StringVar(&filter.Group, "group", "", "group membership filter")
	f.BoolVar(&filter.NIDOnly, "nid-only", false, "return only ID and NID fields")
	return cmd
}

func newComponentsGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <xname>",
		Short: "Get one component by xname",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			component, err := retry.Do(cmd.Context(), a.retry,
				func(ctx context.Context) (*types.Component, error) {
					return a.backend.GetComponent(ctx, args[0])
				})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), component)
		},
	}
}

func newComponentsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <xname>",
		Short: "Delete one component by xname",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.backend.DeleteComponent(cmd.Context(), args[0])
		},
	}
}

func newComponentsNidCommand(a *app) *cobra.Command {
	var isRegex bool

	cmd := &cobra.Command{
		Use:   "nid2xname <nids>",
		Short: "Resolve NIDs (list, hostlist expression, or regexes) to xnames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xnames, err := a.backend.NIDToXName(cmd.Context(), args[0], isRegex)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), xnames)
		},
	}
	cmd.Flags().BoolVar(&isRegex, "regex", false, "treat the input as comma-separated regexes")
	return cmd
}
