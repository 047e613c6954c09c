package cli

import (
	"github.com/spf13/cobra"
)

func newPowerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Query and change node power state",
	}
	cmd.AddCommand(
		newPowerStatusCommand(a),
		newPowerOnCommand(a),
		newPowerOffCommand(a),
		newPowerResetCommand(a),
	)
	return cmd
}

func newPowerStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <hosts>...",
		Short: "Show power state per host (hostlist expressions allowed)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.backend.PowerStatus(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printHostResults(cmd.OutOrStdout(), results)
		},
	}
}

func newPowerOnCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "on <hosts>...",
		Short: "Power hosts on",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.backend.PowerOn(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printHostResults(cmd.OutOrStdout(), results)
		},
	}
}

func newPowerOffCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "off <hosts>...",
		Short: "Power hosts off",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.backend.PowerOff(cmd.Context(), args, force)
			if err != nil {
				return err
			}
			return printHostResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "force off instead of graceful shutdown")
	return cmd
}

func newPowerResetCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset <hosts>...",
		Short: "Restart hosts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.backend.PowerReset(cmd.Context(), args, force)
			if err != nil {
				return err
			}
			return printHostResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "hard restart instead of graceful restart")
	return cmd
}
