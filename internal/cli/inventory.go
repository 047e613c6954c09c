package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-connect/pkg/retry"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

func newInventoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "Inspect hardware, redfish and network inventory",
	}
	cmd.AddCommand(
		newInventoryHardwareCommand(a),
		newInventoryRedfishCommand(a),
		newInventoryEthernetCommand(a),
	)
	return cmd
}

func newInventoryHardwareCommand(a *app) *cobra.Command {
	var query bool

	cmd := &cobra.Command{
		Use:   "hardware [xname]",
		Short: "Show hardware inventory, optionally scoped to one xname",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xname := ""
			if len(args) == 1 {
				xname = args[0]
			}

			var (
				raw json.RawMessage
				err error
			)
			if query {
				raw, err = retry.Do(cmd.Context(), a.retry,
					func(ctx context.Context) (json.RawMessage, error) {
						return a.backend.HardwareInventoryQuery(ctx, xname, types.HardwareInventoryQuery{})
					})
			} else {
				raw, err = retry.Do(cmd.Context(), a.retry,
					func(ctx context.Context) (json.RawMessage, error) {
						return a.backend.HardwareInventory(ctx, xname)
					})
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().BoolVar(&query, "query", false, "use the hierarchical query endpoint (requires an xname)")
	return cmd
}

func newInventoryRedfishCommand(a *app) *cobra.Command {
	var filter types.RedfishEndpointFilter

	cmd := &cobra.Command{
		Use:   "redfish",
		Short: "List redfish endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoints, err := retry.Do(cmd.Context(), a.retry,
				func(ctx context.Context) ([]types.RedfishEndpoint, error) {
					return a.backend.ListRedfishEndpoints(ctx, filter)
				})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), endpoints)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.FQDN, "fqdn", "", "FQDN filter")
	f.StringVar(&filter.Type, "type", "", "endpoint type filter")
	f.StringVar(&filter.MACAddr, "mac", "", "MAC address filter")
	return cmd
}

func newInventoryEthernetCommand(a *app) *cobra.Command {
	var filter types.EthernetInterfaceFilter

	cmd := &cobra.Command{
		Use:   "ethernet",
		Short: "List ethernet interfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			interfaces, err := retry.Do(cmd.Context(), a.retry,
				func(ctx context.Context) ([]types.EthernetInterface, error) {
					return a.backend.ListEthernetInterfaces(ctx, filter)
				})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), interfaces)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.MACAddress, "mac", "", "MAC address filter")
	f.StringVar(&filter.ComponentID, "component", "", "owning component xname")
	f.StringVar(&filter.Network, "network", "", "network name filter")
	return cmd
}
