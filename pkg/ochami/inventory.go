package ochami

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/client"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

// HardwareInventory returns the raw SMD hardware inventory, scoped to one
// xname when given.
func (b *Backend) HardwareInventory(ctx context.Context, xname string) (json.RawMessage, error) {
	params := url.Values{}
	if xname != "" {
		// validate like a path identifier even though it travels as a query.
		if _, err := client.PathSegment(xname); err != nil {
			return nil, err
		}
		params.Set("id", xname)
	}

	var result json.RawMessage
	if err := b.http.Get(ctx, smdHardwarePath+client.Query(params), &result); err != nil {
		return nil, fmt.Errorf("getting hardware inventory: %w", err)
	}
	return result, nil
}

// HardwareInventoryQuery runs the hierarchical hardware inventory query for
// one xname.
func (b *Backend) HardwareInventoryQuery(ctx context.Context, xname string, query types.HardwareInventoryQuery) (json.RawMessage, error) {
	segment, err := client.PathSegment(xname)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	setIfPresent(params, "type", query.Type)
	setIfPresent(params, "partition", query.Partition)
	setIfPresent(params, "format", query.Format)
	if query.Children != nil {
		params.Set("children", strconv.FormatBool(*query.Children))
	}
	if query.Parents != nil {
		params.Set("parents", strconv.FormatBool(*query.Parents))
	}

	var result json.RawMessage
	if err := b.http.Get(ctx, smdHardwareQueryPath+"/"+segment+client.Query(params), &result); err != nil {
		return nil, fmt.Errorf("querying hardware inventory for %q: %w", xname, err)
	}
	return result, nil
}

// ListRedfishEndpoints returns SMD redfish endpoints matching the filter.
func (b *Backend) ListRedfishEndpoints(ctx context.Context, filter types.RedfishEndpointFilter) ([]types.RedfishEndpoint, error) {
	params := url.Values{}
	setIfPresent(params, "id", filter.ID)
	setIfPresent(params, "fqdn", filter.FQDN)
	setIfPresent(params, "type", filter.Type)
	setIfPresent(params, "uuid", filter.UUID)
	setIfPresent(params, "macaddr", filter.MACAddr)
	setIfPresent(params, "ipaddress", filter.IPAddress)
	setIfPresent(params, "laststatus", filter.LastStatus)

	var result types.RedfishEndpointArray
	if err := b.http.Get(ctx, smdRedfishPath+client.Query(params), &result); err != nil {
		return nil, fmt.Errorf("listing redfish endpoints: %w", err)
	}
	return result.RedfishEndpoints, nil
}

// AddRedfishEndpoint registers a redfish endpoint in SMD.
func (b *Backend) AddRedfishEndpoint(ctx context.Context, endpoint types.RedfishEndpoint) error {
	if endpoint.ID == "" {
		return backend.Errorf(backend.KindInvalidArgument, "redfish endpoint ID is required")
	}

	if err := b.http.Post(ctx, smdRedfishPath, endpoint, nil); err != nil {
		return fmt.Errorf("adding redfish endpoint %q: %w", endpoint.ID, err)
	}
	return nil
}

// UpdateRedfishEndpoint replaces a redfish endpoint record in SMD.
func (b *Backend) UpdateRedfishEndpoint(ctx context.Context, endpoint types.RedfishEndpoint) error {
	segment, err := client.PathSegment(endpoint.ID)
	if err != nil {
		return err
	}

	if err := b.http.Put(ctx, smdRedfishPath+"/"+segment, endpoint, nil); err != nil {
		return fmt.Errorf("updating redfish endpoint %q: %w", endpoint.ID, err)
	}
	return nil
}

// DeleteRedfishEndpoint removes one redfish endpoint by id.
func (b *Backend) DeleteRedfishEndpoint(ctx context.Context, id string) error {
	segment, err := client.PathSegment(id)
	if err != nil {
		return err
	}

	if err := b.http.Delete(ctx, smdRedfishPath+"/"+segment); err != nil {
		return fmt.Errorf("deleting redfish endpoint %q: %w", id, err)
	}
	return nil
}

// ListEthernetInterfaces returns SMD ethernet interfaces matching the
// filter. SMD returns this collection as a bare array.
func (b *Backend) ListEthernetInterfaces(ctx context.Context, filter types.EthernetInterfaceFilter) ([]types.EthernetInterface, error) {
	params := url.Values{}
	setIfPresent(params, "macaddress", filter.MACAddress)
	setIfPresent(params, "ipaddress", filter.IPAddress)
	setIfPresent(params, "network", filter.Network)
	setIfPresent(params, "componentid", filter.ComponentID)
	setIfPresent(params, "type", filter.Type)

	var result []types.EthernetInterface
	if err := b.http.Get(ctx, smdEthernetPath+client.Query(params), &result); err != nil {
		return nil, fmt.Errorf("listing ethernet interfaces: %w", err)
	}
	return result, nil
}
