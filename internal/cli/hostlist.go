package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-connect/pkg/hostlist"
)

func newHostlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hostlist",
		Short: "Expand and compress hostlist expressions (offline)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "expand <expr>",
		Short: "Expand a hostlist expression to one host per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hosts, err := hostlist.Expand(args[0])
			if err != nil {
				return err
			}
			for _, host := range hosts {
				fmt.Fprintln(cmd.OutOrStdout(), host)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "compress <host>...",
		Short: "Compress hosts into a hostlist expression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hosts := args
			if len(args) == 1 && strings.Contains(args[0], ",") {
				hosts = strings.Split(args[0], ",")
			}
			fmt.Fprintln(cmd.OutOrStdout(), hostlist.Compress(hosts))
			return nil
		},
	})

	return cmd
}
