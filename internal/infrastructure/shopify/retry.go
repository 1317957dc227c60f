package shopify

import (
	"context"
	"time"
)

const (
	// DefaultErrorDelay is the pause after a rate-limit or failed request
	DefaultErrorDelay = 5 * time.Second
	// DefaultThrottleMargin is added to every computed throttle wait
	DefaultThrottleMargin = 100 * time.Millisecond
	// NoThrottleMargin disables the throttle margin; zero selects the default
	NoThrottleMargin time.Duration = -1
)

// RetryPolicy bounds how long Client.Execute keeps retrying throttled and
// rate-limited requests. Zero MaxAttempts and zero MaxElapsed retry until
// the request succeeds or the context is cancelled.
type RetryPolicy struct {
	// MaxAttempts caps the number of requests per Execute call (0 = unlimited)
	MaxAttempts int
	// MaxElapsed caps the wall time spent in one Execute call, waits included (0 = unlimited)
	MaxElapsed time.Duration
	// ErrorDelay is slept after HTTP 429, THROTTLED errors and fatal failures
	ErrorDelay time.Duration
	// ThrottleMargin is added to the wait computed from the cost extension.
	// Zero means DefaultThrottleMargin, NoThrottleMargin means none.
	ThrottleMargin time.Duration
}

// DefaultRetryPolicy retries without bound
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ErrorDelay:     DefaultErrorDelay,
		ThrottleMargin: DefaultThrottleMargin,
	}
}

// IsUnbounded reports whether the policy retries forever
func (p RetryPolicy) IsUnbounded() bool {
	return p.MaxAttempts <= 0 && p.MaxElapsed <= 0
}

// Allows reports whether attempt number next may be made once elapsed has passed
func (p RetryPolicy) Allows(next int, elapsed time.Duration) bool {
	if p.MaxAttempts > 0 && next > p.MaxAttempts {
		return false
	}
	if p.MaxElapsed > 0 && elapsed > p.MaxElapsed {
		return false
	}
	return true
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.ErrorDelay <= 0 {
		p.ErrorDelay = DefaultErrorDelay
	}
	if p.ThrottleMargin == 0 {
		p.ThrottleMargin = DefaultThrottleMargin
	}
	return p
}

func (p RetryPolicy) margin() time.Duration {
	if p.ThrottleMargin < 0 {
		return 0
	}
	return p.ThrottleMargin
}

// Sleeper pauses for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
