package ochami

import (
	"context"
	"sync"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
)

// fanOut issues call once per host with at most maxInFlight requests in
// flight, and returns one result per host in selector order regardless of
// completion order. One host's failure never aborts its siblings. When the
// caller's context ends, hosts not yet dispatched fail with the context
// error while already-dispatched calls run to completion.
func fanOut[T any](
	ctx context.Context,
	op string,
	hosts []string,
	maxInFlight int,
	call func(ctx context.Context, host string) (T, error),
) backend.HostResults[T] {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}

	results := make(backend.HostResults[T], len(hosts))
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup

	for i, host := range hosts {
		results[i].Host = host

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = annotate(ctx.Err(), op, host)
			continue
		}

		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			defer func() { <-sem }()

			value, err := call(ctx, host)
			if err != nil {
				results[i].Err = annotate(err, op, host)
				return
			}
			results[i].Value = value
		}(i, host)
	}

	wg.Wait()
	return results
}

// fanOutBatches is the batched variant: hosts are dispatched in contiguous
// batches of at most batchSize, each batch as one request, and the batch
// outcome is projected onto every host it covered. Ordering and isolation
// guarantees match fanOut.
func fanOutBatches[T any](
	ctx context.Context,
	op string,
	hosts []string,
	batchSize, maxInFlight int,
	call func(ctx context.Context, batch []string) (T, error),
) backend.HostResults[T] {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}

	results := make(backend.HostResults[T], len(hosts))
	for i, host := range hosts {
		results[i].Host = host
	}

	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup

	start := 0
	for _, batch := range chunk(hosts, batchSize) {
		batchStart := start
		start += len(batch)

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for i := batchStart; i < batchStart+len(batch); i++ {
				results[i].Err = annotate(ctx.Err(), op, results[i].Host)
			}
			continue
		}

		wg.Add(1)
		go func(batchStart int, batch []string) {
			defer wg.Done()
			defer func() { <-sem }()

			value, err := call(ctx, batch)
			for i := batchStart; i < batchStart+len(batch); i++ {
				if err != nil {
					results[i].Err = annotate(err, op, results[i].Host)
					continue
				}
				results[i].Value = value
			}
		}(batchStart, batch)
	}

	wg.Wait()
	return results
}
