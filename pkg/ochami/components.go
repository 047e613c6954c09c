package ochami

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/client"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

// ListComponents returns SMD components matching the filter.
func (b *Backend) ListComponents(ctx context.Context, filter types.ComponentFilter) ([]types.Component, error) {
	path := smdComponentsPath + client.Query(componentQuery(filter))

	var result types.ComponentArray
	if err := b.http.Get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("listing components: %w", err)
	}
	return result.Components, nil
}

// GetComponent returns one SMD component by xname.
func (b *Backend) GetComponent(ctx context.Context, xname string) (*types.Component, error) {
	segment, err := client.PathSegment(xname)
	if err != nil {
		return nil, err
	}

	var result types.Component
	if err := b.http.Get(ctx, smdComponentsPath+"/"+segment, &result); err != nil {
		return nil, fmt.Errorf("getting component %q: %w", xname, err)
	}
	return &result, nil
}

// CreateComponents registers components in SMD.
func (b *Backend) CreateComponents(ctx context.Context, components types.ComponentPostArray) error {
	if len(components.Components) == 0 {
		return backend.Errorf(backend.KindInvalidArgument, "at least one component is required")
	}
	for _, component := range components.Components {
		if component.ID == "" {
			return backend.Errorf(backend.KindInvalidArgument, "component ID is required")
		}
	}

	if err := b.http.Post(ctx, smdComponentsPath, components, nil); err != nil {
		return fmt.Errorf("creating components: %w", err)
	}
	return nil
}

// DeleteComponent removes one SMD component by xname.
func (b *Backend) DeleteComponent(ctx context.Context, xname string) error {
	segment, err := client.PathSegment(xname)
	if err != nil {
		return err
	}

	if err := b.http.Delete(ctx, smdComponentsPath+"/"+segment); err != nil {
		return fmt.Errorf("deleting component %q: %w", xname, err)
	}
	return nil
}

func componentQuery(filter types.ComponentFilter) url.Values {
	params := url.Values{}
	setIfPresent(params, "id", filter.ID)
	setIfPresent(params, "type", filter.Type)
	setIfPresent(params, "state", filter.State)
	setIfPresent(params, "flag", filter.Flag)
	setIfPresent(params, "role", filter.Role)
	setIfPresent(params, "subrole", filter.SubRole)
	setIfPresent(params, "enabled", filter.Enabled)
	setIfPresent(params, "softwarestatus", filter.SoftwareStatus)
	setIfPresent(params, "subtype", filter.Subtype)
	setIfPresent(params, "arch", filter.Arch)
	setIfPresent(params, "class", filter.Class)
	// SMD accepts the nid filter repeated, one value per NID.
	if filter.NID != "" {
		for _, nid := range strings.Split(filter.NID, ",") {
			params.Add("nid", strings.TrimSpace(nid))
		}
	}
	setIfPresent(params, "nid_start", filter.NIDStart)
	setIfPresent(params, "nid_end", filter.NIDEnd)
	setIfPresent(params, "partition", filter.Partition)
	setIfPresent(params, "group", filter.Group)
	if filter.StateOnly {
		params.Set("stateonly", "true")
	}
	if filter.FlagOnly {
		params.Set("flagonly", "true")
	}
	if filter.RoleOnly {
		params.Set("roleonly", "true")
	}
	if filter.NIDOnly {
		params.Set("nidonly", "true")
	}
	return params
}

func setIfPresent(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
