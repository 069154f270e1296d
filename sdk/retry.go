package cloudy

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the reconnect backoff used by ConnectWithRetry.
type RetryPolicy struct {
	// MaxAttempts is the total number of connection attempts, including the
	// first one. Defaults to 4.
	MaxAttempts int
	// BaseDelay is the initial backoff delay. Defaults to 500ms.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay. Defaults to 8s.
	MaxDelay time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 4
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 8 * time.Second
	}
	return p
}

// ConnectWithRetry connects with capped exponential backoff. Connect itself
// never retries; this helper is the reconnect policy for callers that want
// one.
func (c *RoomClient) ConnectWithRetry(ctx context.Context, cfg RoomConfig, policy RetryPolicy) error {
	policy = policy.withDefaults()

	backoff := retry.NewExponential(policy.BaseDelay)
	backoff = retry.WithCappedDuration(policy.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(policy.MaxAttempts-1), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.Connect(ctx, cfg)
		if err == nil {
			return nil
		}
		return retry.RetryableError(err)
	})
}
