package ochami

import (
	"context"
	"fmt"
	"net/url"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/client"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

// GetBootParameters returns the BSS boot parameter records covering the
// given hosts. Selector elements may be hostlist expressions; an empty
// selector returns every record.
func (b *Backend) GetBootParameters(ctx context.Context, hosts []string) ([]types.BootParameters, error) {
	params := url.Values{}
	if len(hosts) > 0 {
		expanded, err := b.expandSelector("boot.get", hosts)
		if err != nil {
			return nil, err
		}
		for _, host := range expanded {
			params.Add("name", host)
		}
	}

	var result []types.BootParameters
	if err := b.http.Get(ctx, bssBootParamsPath+client.Query(params), &result); err != nil {
		return nil, fmt.Errorf("getting boot parameters: %w", err)
	}
	return result, nil
}

// AddBootParameters creates a BSS boot parameter record.
func (b *Backend) AddBootParameters(ctx context.Context, params types.BootParameters) error {
	if err := validateBootSelector(params); err != nil {
		return err
	}

	if err := b.http.Post(ctx, bssBootParamsPath, params, nil); err != nil {
		return fmt.Errorf("adding boot parameters: %w", err)
	}
	return nil
}

// UpdateBootParameters patches the boot parameter record covering the hosts
// the payload lists.
func (b *Backend) UpdateBootParameters(ctx context.Context, params types.BootParameters) error {
	if err := validateBootSelector(params); err != nil {
		return err
	}

	if err := b.http.Patch(ctx, bssBootParamsPath, params, nil); err != nil {
		return fmt.Errorf("updating boot parameters: %w", err)
	}
	return nil
}

// DeleteBootParameters removes the boot parameter record selected by the
// payload. BSS selects deletion targets from the request body.
func (b *Backend) DeleteBootParameters(ctx context.Context, params types.BootParameters) error {
	if err := validateBootSelector(params); err != nil {
		return err
	}

	if err := b.http.DeleteWithBody(ctx, bssBootParamsPath, params); err != nil {
		return fmt.Errorf("deleting boot parameters: %w", err)
	}
	return nil
}

func validateBootSelector(params types.BootParameters) error {
	if len(params.Hosts) == 0 && len(params.Macs) == 0 && len(params.Nids) == 0 {
		return backend.Errorf(backend.KindInvalidArgument, "boot parameters must target at least one host, mac, or nid")
	}
	return nil
}
