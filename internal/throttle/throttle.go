// internal/throttle/throttle.go
// Package throttle wraps a ChatProvider with inter-call pacing and
// exponential-backoff retry for rate-limit-shaped failures.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/spar65/aiassessmenttool/internal/appconfig"
	"github.com/spar65/aiassessmenttool/internal/logging"
	"github.com/spar65/aiassessmenttool/internal/providers"
)

// Provider decorates another ChatProvider. Every call after the first in a
// run waits the vendor's fixed inter-call delay; transient failures (429s and
// request timeouts) are retried with exponential backoff. Everything else
// propagates unchanged on first occurrence, since retrying an auth or
// malformed-request error only wastes quota.
type Provider struct {
	next           providers.ChatProvider
	interCallDelay time.Duration
	maxRetries     int
	initialBackoff time.Duration

	// sleep is replaceable in tests so retry timing can be observed
	// without waiting.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	called bool
}

// Wrap decorates a provider with the vendor's pacing and retry policy.
func Wrap(next providers.ChatProvider, cfg *appconfig.Config) *Provider {
	return &Provider{
		next:           next,
		interCallDelay: appconfig.InterCallDelay(next.Vendor()),
		maxRetries:     cfg.RetryAttempts(),
		initialBackoff: cfg.InitialBackoff(),
		sleep:          sleepContext,
	}
}

// Vendor identifies the wrapped vendor.
func (p *Provider) Vendor() appconfig.Provider { return p.next.Vendor() }

// SendIsolated sends a single question with pacing and retry applied.
func (p *Provider) SendIsolated(ctx context.Context, question string) (providers.CallResult, error) {
	return p.call(ctx, func(ctx context.Context) (providers.CallResult, error) {
		return p.next.SendIsolated(ctx, question)
	})
}

// SendWindowed sends a windowed history with pacing and retry applied.
func (p *Provider) SendWindowed(ctx context.Context, history []providers.ChatMessage) (providers.CallResult, error) {
	return p.call(ctx, func(ctx context.Context) (providers.CallResult, error) {
		return p.next.SendWindowed(ctx, history)
	})
}

// Close releases the wrapped provider's resources.
func (p *Provider) Close() error { return p.next.Close() }

func (p *Provider) call(ctx context.Context, fn func(context.Context) (providers.CallResult, error)) (providers.CallResult, error) {
	if err := p.pace(ctx); err != nil {
		return providers.CallResult{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == p.maxRetries || !retryable(err) {
			break
		}

		backoff := p.initialBackoff * (1 << attempt)
		logging.LogEvent("transient vendor error (attempt %d/%d), backing off %v: %v", attempt+1, p.maxRetries, backoff, err)
		if sleepErr := p.sleep(ctx, backoff); sleepErr != nil {
			return providers.CallResult{}, sleepErr
		}
	}
	return providers.CallResult{}, lastErr
}

// pace applies the fixed inter-call delay, skipped before the first call of
// the run.
func (p *Provider) pace(ctx context.Context) error {
	p.mu.Lock()
	first := !p.called
	p.called = true
	p.mu.Unlock()

	if first || p.interCallDelay <= 0 {
		return nil
	}
	return p.sleep(ctx, p.interCallDelay)
}

// retryable reports whether an error carries rate-limit or timeout
// indicators. Typed errors answer directly; untyped errors fall back to
// textual markers.
func retryable(err error) bool {
	return providers.IsTransient(err) || providers.IsRateLimited(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
