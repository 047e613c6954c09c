package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
)

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, Retryable(backend.Errorf(backend.KindTimeout, "deadline")))
	assert.True(t, Retryable(backend.Errorf(backend.KindTransport, "refused")))
	assert.True(t, Retryable(backend.Errorf(backend.KindServer, "boom")))

	assert.False(t, Retryable(backend.Errorf(backend.KindInvalidArgument, "bad")))
	assert.False(t, Retryable(backend.Errorf(backend.KindClient, "404")))
	assert.False(t, Retryable(backend.Errorf(backend.KindDecode, "schema")))
	assert.False(t, Retryable(backend.Errorf(backend.KindParse, "hostlist")))
	assert.False(t, Retryable(backend.Errorf(backend.KindEncoding, "marshal")))
	assert.False(t, Retryable(nil))
}

func TestDoRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 5, InitialInterval: time.Millisecond}, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", backend.Errorf(backend.KindServer, "still warming up")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsAtAttemptCap(t *testing.T) {
	t.Parallel()

	attempts := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialInterval: time.Millisecond}, func(ctx context.Context) (string, error) {
		attempts++
		return "", backend.Errorf(backend.KindTransport, "refused")
	})

	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindTransport))
	assert.Equal(t, 3, attempts)
}

func TestDoDoesNotRetryCallerErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 5, InitialInterval: time.Millisecond}, func(ctx context.Context) (int, error) {
		attempts++
		return 0, backend.Errorf(backend.KindClient, "no such group")
	})

	require.Error(t, err)
	assert.True(t, backend.IsKind(err, backend.KindClient))
	assert.Equal(t, 1, attempts)
}
