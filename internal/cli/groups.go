package cli

import (
	"context"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-connect/pkg/retry"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

func newGroupsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Maintain SMD groups and their membership",
	}
	cmd.AddCommand(
		newGroupsListCommand(a),
		newGroupsGetCommand(a),
		newGroupsCreateCommand(a),
		newGroupsDeleteCommand(a),
		newGroupsMembersCommand(a),
		newGroupsAddMembersCommand(a),
		newGroupsRemoveMemberCommand(a),
		newGroupsMigrateCommand(a),
	)
	return cmd
}

func newGroupsListCommand(a *app) *cobra.Command {
	var filter types.GroupFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := retry.Do(cmd.Context(), a.retry,
				func(ctx context.Context) ([]types.Group, error) {
					return a.backend.ListGroups(ctx, filter)
				})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), groups)
		},
	}
	cmd.Flags().StringVar(&filter.Tag, "tag", "", "tag filter")
	return cmd
}

func newGroupsGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <label>",
		Short: "Get one group by label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := retry.Do(cmd.Context(), a.retry,
				func(ctx context.Context) (*types.Group, error) {
					return a.backend.GetGroup(ctx, args[0])
				})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), group)
		},
	}
}

func newGroupsCreateCommand(a *app) *cobra.Command {
	var (
		description string
		tags        []string
		members     []string
	)

	cmd := &cobra.Command{
		Use:   "create <label>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := types.Group{
				Label:       args[0],
				Description: description,
				Tags:        tags,
			}
			if len(members) > 0 {
				group.Members = &types.Members{IDs: members}
			}
			created, err := a.backend.AddGroup(cmd.Context(), group)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	f := cmd.Flags()
	f.StringVar(&description, "description", "", "group description")
	f.StringSliceVar(&tags, "tag", nil, "group tags (repeatable)")
	f.StringSliceVar(&members, "member", nil, "initial member xnames (repeatable)")
	return cmd
}

func newGroupsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <label>",
		Short: "Delete a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.backend.DeleteGroup(cmd.Context(), args[0])
		},
	}
}

func newGroupsMembersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "members <label> [label...]",
		Short: "Show the members of one or more groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				members, err := retry.Do(cmd.Context(), a.retry,
					func(ctx context.Context) ([]string, error) {
						return a.backend.GroupMembers(ctx, args[0])
					})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), members)
			}

			members, err := a.backend.GroupMembersOf(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), members)
		},
	}
}

func newGroupsAddMembersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-members <label> <xname> [xname...]",
		Short: "Add xnames to a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := a.backend.AddGroupMembers(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), members)
		},
	}
}

func newGroupsRemoveMemberCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <label> <xname>",
		Short: "Remove one xname from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.backend.DeleteGroupMember(cmd.Context(), args[0], args[1])
		},
	}
}

func newGroupsMigrateCommand(a *app) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "migrate <target-label> <xname> [xname...]",
		Short: "Move xnames from their parent group into the target group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetMembers, parentMembers, err := a.backend.MigrateGroupMembers(
				cmd.Context(), args[0], parent, args[1:])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string][]string{
				args[0]: targetMembers,
				parent:  parentMembers,
			})
		},
	}
	cmd.Flags().StringVar(&parent, "from", "", "parent group the xnames leave")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
