package ochami

import (
	"context"
	"fmt"
	"net/url"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/client"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

type groupMemberPost struct {
	ID string `json:"id"`
}

// ListGroups returns SMD groups matching the filter.
func (b *Backend) ListGroups(ctx context.Context, filter types.GroupFilter) ([]types.Group, error) {
	params := url.Values{}
	setIfPresent(params, "group", filter.Group)
	setIfPresent(params, "tag", filter.Tag)
	setIfPresent(params, "partition", filter.Partition)

	var result []types.Group
	if err := b.http.Get(ctx, smdGroupsPath+client.Query(params), &result); err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return result, nil
}

// GetGroup returns one SMD group by label.
func (b *Backend) GetGroup(ctx context.Context, label string) (*types.Group, error) {
	segment, err := client.PathSegment(label)
	if err != nil {
		return nil, err
	}

	var result types.Group
	if err := b.http.Get(ctx, smdGroupsPath+"/"+segment, &result); err != nil {
		return nil, fmt.Errorf("getting group %q: %w", label, err)
	}
	return &result, nil
}

// AddGroup creates an SMD group and returns it.
func (b *Backend) AddGroup(ctx context.Context, group types.Group) (*types.Group, error) {
	if group.Label == "" {
		return nil, backend.Errorf(backend.KindInvalidArgument, "group label is required")
	}

	if err := b.http.Post(ctx, smdGroupsPath, group, nil); err != nil {
		return nil, fmt.Errorf("creating group %q: %w", group.Label, err)
	}

	b.logger.Info().Str("group", group.Label).Msg("group created")
	return &group, nil
}

// DeleteGroup removes one SMD group by label.
func (b *Backend) DeleteGroup(ctx context.Context, label string) error {
	segment, err := client.PathSegment(label)
	if err != nil {
		return err
	}

	if err := b.http.Delete(ctx, smdGroupsPath+"/"+segment); err != nil {
		return fmt.Errorf("deleting group %q: %w", label, err)
	}
	return nil
}

// GroupMembers returns the member xnames of one group.
func (b *Backend) GroupMembers(ctx context.Context, label string) ([]string, error) {
	segment, err := client.PathSegment(label)
	if err != nil {
		return nil, err
	}

	var result types.Members
	if err := b.http.Get(ctx, smdGroupsPath+"/"+segment+"/members", &result); err != nil {
		return nil, fmt.Errorf("getting members of group %q: %w", label, err)
	}
	return result.IDs, nil
}

// GroupMembersOf fetches the members of several groups concurrently, bounded
// by MaxInFlight, and returns them keyed by label.
func (b *Backend) GroupMembersOf(ctx context.Context, labels []string) (map[string][]string, error) {
	if len(labels) == 0 {
		return nil, backend.Errorf(backend.KindInvalidArgument, "at least one group label is required")
	}

	results := fanOut(ctx, "groups.members", labels, b.maxInFlight,
		func(ctx context.Context, label string) ([]string, error) {
			return b.GroupMembers(ctx, label)
		})

	members := make(map[string][]string, len(labels))
	for _, result := range results {
		if result.Err != nil {
			return nil, result.Err
		}
		members[result.Host] = result.Value
	}
	return members, nil
}

// AddGroupMembers adds xnames to a group one at a time and returns the
// resulting membership.
func (b *Backend) AddGroupMembers(ctx context.Context, label string, xnames []string) ([]string, error) {
	segment, err := client.PathSegment(label)
	if err != nil {
		return nil, err
	}
	if len(xnames) == 0 {
		return nil, backend.Errorf(backend.KindInvalidArgument, "at least one xname is required")
	}

	for _, xname := range xnames {
		if xname == "" {
			return nil, backend.Errorf(backend.KindInvalidArgument, "xname must not be empty")
		}
		if err := b.http.Post(ctx, smdGroupsPath+"/"+segment+"/members", groupMemberPost{ID: xname}, nil); err != nil {
			return nil, fmt.Errorf("adding member %q to group %q: %w", xname, label, err)
		}
	}

	return b.GroupMembers(ctx, label)
}

// DeleteGroupMember removes one xname from a group.
func (b *Backend) DeleteGroupMember(ctx context.Context, label, xname string) error {
	labelSegment, err := client.PathSegment(label)
	if err != nil {
		return err
	}
	memberSegment, err := client.PathSegment(xname)
	if err != nil {
		return err
	}

	if err := b.http.Delete(ctx, smdGroupsPath+"/"+labelSegment+"/members/"+memberSegment); err != nil {
		return fmt.Errorf("removing member %q from group %q: %w", xname, label, err)
	}
	return nil
}

// UpdateGroupMembers applies removals then additions against one group.
func (b *Backend) UpdateGroupMembers(ctx context.Context, label string, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return backend.Errorf(backend.KindInvalidArgument, "nothing to add or remove")
	}

	for _, xname := range remove {
		if err := b.DeleteGroupMember(ctx, label, xname); err != nil {
			return err
		}
	}
	if len(add) > 0 {
		if _, err := b.AddGroupMembers(ctx, label, add); err != nil {
			return err
		}
	}
	return nil
}

// MigrateGroupMembers moves xnames from the parent group into the target
// group and returns both resulting memberships.
func (b *Backend) MigrateGroupMembers(ctx context.Context, target, parent string, xnames []string) ([]string, []string, error) {
	if len(xnames) == 0 {
		return nil, nil, backend.Errorf(backend.KindInvalidArgument, "at least one xname is required")
	}

	for _, xname := range xnames {
		if err := b.DeleteGroupMember(ctx, parent, xname); err != nil {
			return nil, nil, err
		}
	}
	if _, err := b.AddGroupMembers(ctx, target, xnames); err != nil {
		return nil, nil, err
	}

	targetMembers, err := b.GroupMembers(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	parentMembers, err := b.GroupMembers(ctx, parent)
	if err != nil {
		return nil, nil, err
	}

	b.logger.Info().
		Str("target", target).
		Str("parent", parent).
		Int("moved", len(xnames)).
		Msg("migrated group members")
	return targetMembers, parentMembers, nil
}
