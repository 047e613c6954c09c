package ochami

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
)

func TestFanOutRespectsMaxInFlight(t *testing.T) {
	t.Parallel()

	hosts := make([]string, 30)
	for i := range hosts {
		hosts[i] = "h" + strconv.Itoa(i)
	}

	var inFlight, peak atomic.Int64
	results := fanOut(context.Background(), "test.op", hosts, 4,
		func(ctx context.Context, host string) (string, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			return "v:" + host, nil
		})

	require.Len(t, results, 30)
	require.True(t, results.AllOK())
	assert.LessOrEqual(t, peak.Load(), int64(4))
	for i, r := range results {
		assert.Equal(t, hosts[i], r.Host)
		assert.Equal(t, "v:"+hosts[i], r.Value)
	}
}

func TestFanOutIsolatesFailures(t *testing.T) {
	t.Parallel()

	results := fanOut(context.Background(), "test.op", []string{"a", "b", "c"}, 2,
		func(ctx context.Context, host string) (int, error) {
			if host == "b" {
				return 0, backend.Errorf(backend.KindServer, "boom")
			}
			return len(host), nil
		})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
	assert.Equal(t, backend.KindServer, backend.KindOf(results[1].Err))

	var dispatchErr *backend.Error
	require.ErrorAs(t, results[1].Err, &dispatchErr)
	assert.Equal(t, "test.op", dispatchErr.Op)
	assert.Equal(t, "b", dispatchErr.Host)
}

func TestFanOutCancelledContextFailsUndispatchedHosts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	results := fanOut(ctx, "test.op", []string{"a", "b", "c", "d"}, 1,
		func(ctx context.Context, host string) (struct{}, error) {
			// cancel after the first dispatch so later hosts never run
			once.Do(cancel)
			<-ctx.Done()
			return struct{}{}, ctx.Err()
		})

	require.Len(t, results, 4)
	for _, r := range results {
		require.False(t, r.OK())
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestFanOutBatchesProjectsBatchOutcome(t *testing.T) {
	t.Parallel()

	hosts := []string{"a", "b", "c", "d", "e"}

	var batches atomic.Int64
	results := fanOutBatches(context.Background(), "test.op", hosts, 2, 10,
		func(ctx context.Context, batch []string) (string, error) {
			batches.Add(1)
			if batch[0] == "c" {
				return "", backend.Errorf(backend.KindServer, "batch rejected")
			}
			return "batch:" + batch[0], nil
		})

	require.Len(t, results, 5)
	assert.EqualValues(t, 3, batches.Load())

	// batch {a,b} succeeded, batch {c,d} failed as a unit, batch {e} succeeded
	assert.Equal(t, "batch:a", results[0].Value)
	assert.Equal(t, "batch:a", results[1].Value)
	assert.False(t, results[2].OK())
	assert.False(t, results[3].OK())
	assert.Equal(t, "batch:e", results[4].Value)

	for i, r := range results {
		assert.Equal(t, hosts[i], r.Host)
	}
}
