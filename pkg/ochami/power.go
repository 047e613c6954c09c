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

// PowerStatus returns per-host power state, one PCS query per host with
// bounded concurrency. Results follow the expanded selector order.
func (b *Backend) PowerStatus(ctx context.Context, hosts []string) (backend.HostResults[types.PowerStatus], error) {
	const op = "power.status"

	expanded, err := b.expandSelector(op, hosts)
	if err != nil {
		return nil, err
	}

	results := fanOut(ctx, op, expanded, b.maxInFlight,
		func(ctx context.Context, host string) (types.PowerStatus, error) {
			return b.powerStatusOne(ctx, host)
		})
	return results, nil
}

func (b *Backend) powerStatusOne(ctx context.Context, host string) (types.PowerStatus, error) {
	params := url.Values{}
	params.Set("xname", host)

	var envelope types.PowerStatusEnvelope
	if err := b.http.Get(ctx, pcsPowerStatusPath+client.Query(params), &envelope); err != nil {
		return types.PowerStatus{}, err
	}

	for _, status := range envelope.Status {
		if strings.EqualFold(status.XName, host) {
			return status, nil
		}
	}
	return types.PowerStatus{}, backend.Errorf(backend.KindDecode, "power status response has no entry for %q", host)
}

// PowerOn starts an "On" transition for the host set.
func (b *Backend) PowerOn(ctx context.Context, hosts []string) (backend.HostResults[types.Transition], error) {
	return b.startTransition(ctx, "power.on", types.PowerOpOn, hosts)
}

// PowerOff starts a power-off transition; force selects Force-Off over
// Soft-Off.
func (b *Backend) PowerOff(ctx context.Context, hosts []string, force bool) (backend.HostResults[types.Transition], error) {
	operation := types.PowerOpSoftOff
	if force {
		operation = types.PowerOpForceOff
	}
	return b.startTransition(ctx, "power.off", operation, hosts)
}

// PowerReset starts a restart transition; force selects Hard-Restart over
// Soft-Restart.
func (b *Backend) PowerReset(ctx context.Context, hosts []string, force bool) (backend.HostResults[types.Transition], error) {
	operation := types.PowerOpSoftRestart
	if force {
		operation = types.PowerOpHardRestart
	}
	return b.startTransition(ctx, "power.reset", operation, hosts)
}

// startTransition expands the selector, splits it into batches of at most
// BulkMaxNodes, and submits one PCS transition per batch. Every host is
// paired with its batch's transition or error; batches fail independently.
func (b *Backend) startTransition(
	ctx context.Context,
	op, operation string,
	hosts []string,
) (backend.HostResults[types.Transition], error) {
	expanded, err := b.expandSelector(op, hosts)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().
		Str("op", op).
		Str("operation", operation).
		Int("hosts", len(expanded)).
		Int("batch_size", b.bulkMaxNodes).
		Msg("starting power transition")

	results := fanOutBatches(ctx, op, expanded, b.bulkMaxNodes, b.maxInFlight,
		func(ctx context.Context, batch []string) (types.Transition, error) {
			return b.postTransition(ctx, operation, batch)
		})
	return results, nil
}

func (b *Backend) postTransition(ctx context.Context, operation string, batch []string) (types.Transition, error) {
	body := types.TransitionCreate{
		Operation: operation,
		Location:  make([]types.TransitionLocation, 0, len(batch)),
	}
	for _, host := range batch {
		body.Location = append(body.Location, types.TransitionLocation{Xname: host})
	}

	var transition types.Transition
	if err := b.http.Post(ctx, pcsTransitionsPath, body, &transition); err != nil {
		return types.Transition{}, fmt.Errorf("starting %s transition: %w", operation, err)
	}
	return transition, nil
}

// GetTransition returns one PCS transition by id, including per-task status.
func (b *Backend) GetTransition(ctx context.Context, id string) (*types.Transition, error) {
	segment, err := client.PathSegment(id)
	if err != nil {
		return nil, err
	}

	var transition types.Transition
	if err := b.http.Get(ctx, pcsTransitionsPath+"/"+segment, &transition); err != nil {
		return nil, fmt.Errorf("getting transition %q: %w", id, err)
	}
	return &transition, nil
}
