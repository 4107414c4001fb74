// Package coordinator owns retry and fallback across a capability's provider
// chain. Adapters stay stateless; every attempt — success or not — is
// recorded as a ProviderAttempt and surfaced to audit before the stage
// settles.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"zenid/internal/domain"
	"zenid/internal/policy"
	"zenid/internal/provider"
	id "zenid/pkg/domain"
	"zenid/pkg/platform/circuit"
)

// Call invokes one concrete provider by ID. The session manager builds the
// closure, capturing the stage input and resolving the adapter.
type Call func(ctx context.Context, providerID string) (*provider.Result, error)

// AttemptSink receives every provider attempt for auditing.
type AttemptSink interface {
	RecordAttempt(ctx context.Context, sessionID id.SessionID, stage domain.Stage, attempt domain.ProviderAttempt)
}

// Coordinator drives a fallback chain to a settled outcome.
type Coordinator struct {
	logger *slog.Logger
	sink   AttemptSink
	// sleep is injectable so tests can skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error

	// breakers tracks transient-failure health per provider across sessions.
	// An open breaker demotes a provider to a single probe per chain walk.
	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
}

// Option configures the Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithAttemptSink(sink AttemptSink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		sleep:    sleepCtx,
		breakers: make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute walks the chain: retry the same provider on transient failures up
// to its attempt limit with doubling capped backoff, then promote to the next
// provider with a fresh counter. Non-transient failures short-circuit the
// whole chain — a rejected document does not become readable on retry.
// Returns the first success, the full attempt history, and the last error
// when the chain is exhausted.
func (c *Coordinator) Execute(ctx context.Context, sessionID id.SessionID, stage domain.Stage, chain policy.Chain, call Call) (*provider.Result, []domain.ProviderAttempt, error) {
	var (
		attempts []domain.ProviderAttempt
		lastErr  error
	)

	for _, pp := range chain.Providers {
		breaker := c.breakerFor(pp.ID)
		maxAttempts := pp.MaxAttempts
		if breaker.IsOpen() {
			// Probe once instead of burning the full retry budget on a
			// provider that has been failing across sessions.
			maxAttempts = 1
			if c.logger != nil {
				c.logger.WarnContext(ctx, "provider circuit open, probing once",
					"session_id", sessionID,
					"stage", stage,
					"provider", pp.ID,
				)
			}
		}

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, attempts, err
			}

			callCtx, cancel := context.WithTimeout(ctx, pp.Timeout)
			start := time.Now()
			result, err := call(callCtx, pp.ID)
			latency := time.Since(start)
			cancel()

			err = classify(err, pp.ID)
			record := domain.ProviderAttempt{
				ProviderID: pp.ID,
				Attempt:    attempt,
				Latency:    latency,
			}
			if err == nil {
				record.Outcome = domain.AttemptSuccess
			} else {
				record.Outcome = provider.OutcomeOf(err)
				record.ErrKind = string(provider.CategoryOf(err))
			}
			attempts = append(attempts, record)
			if c.sink != nil {
				c.sink.RecordAttempt(ctx, sessionID, stage, record)
			}

			if err == nil {
				if _, change := breaker.RecordSuccess(); change.Closed && c.logger != nil {
					c.logger.InfoContext(ctx, "provider circuit closed", "provider", pp.ID)
				}
				return result, attempts, nil
			}
			lastErr = err

			if provider.IsRetryable(err) {
				if _, change := breaker.RecordFailure(); change.Opened && c.logger != nil {
					c.logger.WarnContext(ctx, "provider circuit opened",
						"provider", pp.ID,
						"category", provider.CategoryOf(err),
					)
				}
			}

			// The session deadline elapsing must win over further retries.
			if ctx.Err() != nil {
				return nil, attempts, ctx.Err()
			}

			if !provider.IsRetryable(err) {
				if c.logger != nil {
					c.logger.WarnContext(ctx, "provider rejected input, not retrying",
						"session_id", sessionID,
						"stage", stage,
						"provider", pp.ID,
						"category", provider.CategoryOf(err),
					)
				}
				return nil, attempts, err
			}

			if attempt < maxAttempts {
				if err := c.sleep(ctx, backoff(pp, attempt)); err != nil {
					return nil, attempts, err
				}
			}
		}

		if c.logger != nil {
			c.logger.InfoContext(ctx, "provider exhausted, promoting to fallback",
				"session_id", sessionID,
				"stage", stage,
				"provider", pp.ID,
			)
		}
	}

	if lastErr == nil {
		lastErr = provider.ErrChainExhausted
	}
	return nil, attempts, lastErr
}

func (c *Coordinator) breakerFor(providerID string) *circuit.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[providerID]
	if !ok {
		b = circuit.New(providerID)
		c.breakers[providerID] = b
	}
	return b
}

// backoff doubles from the base per attempt, capped at the provider maximum.
func backoff(pp policy.ProviderPolicy, attempt int) time.Duration {
	d := pp.BaseBackoff << (attempt - 1)
	if pp.MaxBackoff > 0 && d > pp.MaxBackoff {
		d = pp.MaxBackoff
	}
	return d
}

// classify normalizes errors that escaped the adapter without a category.
func classify(err error, providerID string) error {
	if err == nil {
		return nil
	}
	var pe *provider.Error
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.NewError(provider.ErrorTimeout, providerID, "call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return provider.NewError(provider.ErrorTimeout, providerID, "call cancelled", err)
	}
	return provider.NewError(provider.ErrorInternal, providerID, "adapter failure", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
