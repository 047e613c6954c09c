// Package retry is the opt-in retry helper for dispatch calls. The client
// layer never retries on its own; callers that want retries wrap individual
// operations here, with exponential backoff and a hard attempt cap so a
// flapping backend is never hammered with an unbounded request storm.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
)

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = 250 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxAttempts is the total attempt cap including the first call.
	// Defaults to 3.
	MaxAttempts int
	// InitialInterval seeds the exponential backoff. Defaults to 250ms.
	InitialInterval time.Duration
	// MaxInterval caps the backoff growth. Defaults to 5s.
	MaxInterval time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaultInitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = defaultMaxInterval
	}
	return p
}

// Retryable reports whether a dispatch error is worth another attempt.
// Validation, encoding, parse, client and decode failures are deterministic
// or caller-fixable and are never retried.
func Retryable(err error) bool {
	switch backend.KindOf(err) {
	case backend.KindTimeout, backend.KindTransport, backend.KindServer:
		return true
	default:
		return false
	}
}

// Do runs op with the given policy, retrying only retryable dispatch errors.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialInterval
	expo.MaxInterval = policy.MaxInterval

	return backoff.Retry(ctx, func() (T, error) {
		value, err := op(ctx)
		if err != nil && !Retryable(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(uint(policy.MaxAttempts)))
}
