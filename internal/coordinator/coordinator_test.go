package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenid/internal/domain"
	"zenid/internal/policy"
	"zenid/internal/provider"
	id "zenid/pkg/domain"
)

type recordedAttempt struct {
	stage   domain.Stage
	attempt domain.ProviderAttempt
}

type captureSink struct {
	attempts []recordedAttempt
}

func (s *captureSink) RecordAttempt(_ context.Context, _ id.SessionID, stage domain.Stage, attempt domain.ProviderAttempt) {
	s.attempts = append(s.attempts, recordedAttempt{stage: stage, attempt: attempt})
}

func noSleep(context.Context, time.Duration) error { return nil }

func testChain(primaryAttempts, fallbackAttempts int) policy.Chain {
	chain := policy.Chain{
		Providers: []policy.ProviderPolicy{
			{ID: "primary", MaxAttempts: primaryAttempts, Timeout: time.Second, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond},
		},
	}
	if fallbackAttempts > 0 {
		chain.Providers = append(chain.Providers, policy.ProviderPolicy{
			ID: "fallback", MaxAttempts: fallbackAttempts, Timeout: time.Second, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond,
		})
	}
	return chain
}

func TestCoordinatorExecute(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		sink := &captureSink{}
		coord := New(WithAttemptSink(sink), WithSleep(noSleep))
		sessionID := id.NewSessionID()

		result, attempts, err := coord.Execute(context.Background(), sessionID, domain.StageDocument, testChain(3, 2),
			func(_ context.Context, providerID string) (*provider.Result, error) {
				return &provider.Result{ProviderID: providerID, Confidence: 0.9, Scale: 1}, nil
			})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "primary", result.ProviderID)
		require.Len(t, attempts, 1)
		assert.Equal(t, domain.AttemptSuccess, attempts[0].Outcome)
		assert.Equal(t, 1, attempts[0].Attempt)
		require.Len(t, sink.attempts, 1)
		assert.Equal(t, domain.StageDocument, sink.attempts[0].stage)
	})

	t.Run("transient failures retry then succeed on same provider", func(t *testing.T) {
		coord := New(WithSleep(noSleep))
		calls := 0

		result, attempts, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageRegistry, testChain(3, 0),
			func(_ context.Context, providerID string) (*provider.Result, error) {
				calls++
				if calls < 3 {
					return nil, provider.NewError(provider.ErrorTimeout, providerID, "slow registry", nil)
				}
				return &provider.Result{ProviderID: providerID, Confidence: 1, Scale: 1}, nil
			})

		require.NoError(t, err)
		require.NotNil(t, result)
		require.Len(t, attempts, 3)
		assert.Equal(t, domain.AttemptTimeout, attempts[0].Outcome)
		assert.Equal(t, domain.AttemptTimeout, attempts[1].Outcome)
		assert.Equal(t, domain.AttemptSuccess, attempts[2].Outcome)
		assert.Equal(t, 3, attempts[2].Attempt)
	})

	t.Run("exhausted primary promotes to fallback with fresh counter", func(t *testing.T) {
		coord := New(WithSleep(noSleep))

		result, attempts, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageDocument, testChain(2, 1),
			func(_ context.Context, providerID string) (*provider.Result, error) {
				if providerID == "primary" {
					return nil, provider.NewError(provider.ErrorUnavailable, providerID, "down", nil)
				}
				return &provider.Result{ProviderID: providerID, Confidence: 0.8, Scale: 1}, nil
			})

		require.NoError(t, err)
		assert.Equal(t, "fallback", result.ProviderID)
		require.Len(t, attempts, 3)
		assert.Equal(t, "primary", attempts[0].ProviderID)
		assert.Equal(t, "primary", attempts[1].ProviderID)
		assert.Equal(t, 2, attempts[1].Attempt)
		assert.Equal(t, "fallback", attempts[2].ProviderID)
		assert.Equal(t, 1, attempts[2].Attempt)
	})

	t.Run("non-transient rejection short-circuits the chain", func(t *testing.T) {
		coord := New(WithSleep(noSleep))
		calls := 0

		result, attempts, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageDocument, testChain(3, 2),
			func(_ context.Context, providerID string) (*provider.Result, error) {
				calls++
				return nil, provider.NewError(provider.ErrorRejected, providerID, "unreadable document", nil)
			})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, 1, calls)
		require.Len(t, attempts, 1)
		assert.Equal(t, domain.AttemptRejected, attempts[0].Outcome)
		assert.Equal(t, provider.ErrorRejected, provider.CategoryOf(err))
	})

	t.Run("chain exhaustion returns the last error", func(t *testing.T) {
		coord := New(WithSleep(noSleep))
		calls := 0

		result, attempts, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageBiometric, testChain(2, 2),
			func(_ context.Context, providerID string) (*provider.Result, error) {
				calls++
				return nil, provider.NewError(provider.ErrorUnavailable, providerID, "down", nil)
			})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, 4, calls)
		assert.Len(t, attempts, 4)
		assert.Equal(t, provider.ErrorUnavailable, provider.CategoryOf(err))
	})

	t.Run("parent cancellation aborts between attempts", func(t *testing.T) {
		coord := New(WithSleep(noSleep))
		ctx, cancel := context.WithCancel(context.Background())

		result, attempts, err := coord.Execute(ctx, id.NewSessionID(), domain.StageDocument, testChain(5, 0),
			func(_ context.Context, providerID string) (*provider.Result, error) {
				cancel()
				return nil, provider.NewError(provider.ErrorTimeout, providerID, "slow", nil)
			})

		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
		assert.Len(t, attempts, 1)
	})

	t.Run("bare context deadline is classified as a timeout", func(t *testing.T) {
		coord := New(WithSleep(noSleep))
		chain := policy.Chain{Providers: []policy.ProviderPolicy{
			{ID: "slowpoke", MaxAttempts: 1, Timeout: time.Second},
		}}

		_, attempts, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageDocument, chain,
			func(_ context.Context, _ string) (*provider.Result, error) {
				return nil, context.DeadlineExceeded
			})

		require.Error(t, err)
		require.Len(t, attempts, 1)
		assert.Equal(t, domain.AttemptTimeout, attempts[0].Outcome)
		assert.True(t, provider.IsRetryable(err))
	})
}

func TestCoordinatorCircuitBreaker(t *testing.T) {
	coord := New(WithSleep(noSleep))
	chain := policy.Chain{Providers: []policy.ProviderPolicy{
		{ID: "flaky", MaxAttempts: 3, Timeout: time.Second, BaseBackoff: time.Millisecond},
	}}
	unavailable := func(_ context.Context, providerID string) (*provider.Result, error) {
		return nil, provider.NewError(provider.ErrorUnavailable, providerID, "down", nil)
	}

	// Two exhausted walks put six transient failures on the provider, past
	// the breaker's threshold.
	for range 2 {
		_, attempts, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageRegistry, chain, unavailable)
		require.Error(t, err)
		assert.Len(t, attempts, 3)
	}

	t.Run("open circuit demotes the provider to a single probe", func(t *testing.T) {
		_, attempts, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageRegistry, chain, unavailable)
		require.Error(t, err)
		assert.Len(t, attempts, 1)
	})

	t.Run("successful probes close the circuit again", func(t *testing.T) {
		healthy := func(_ context.Context, providerID string) (*provider.Result, error) {
			return &provider.Result{ProviderID: providerID, Confidence: 1, Scale: 1}, nil
		}
		for range 2 {
			_, _, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageRegistry, chain, healthy)
			require.NoError(t, err)
		}

		_, attempts, err := coord.Execute(context.Background(), id.NewSessionID(), domain.StageRegistry, chain, unavailable)
		require.Error(t, err)
		assert.Len(t, attempts, 3, "closed circuit restores the full retry budget")
	})
}

func TestBackoff(t *testing.T) {
	pp := policy.ProviderPolicy{BaseBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, backoff(pp, 1))
	assert.Equal(t, 200*time.Millisecond, backoff(pp, 2))
	assert.Equal(t, 300*time.Millisecond, backoff(pp, 3), "doubling is capped at the provider maximum")
	assert.Equal(t, 300*time.Millisecond, backoff(pp, 4))
}

func TestClassify(t *testing.T) {
	t.Run("categorized errors pass through", func(t *testing.T) {
		in := provider.NewError(provider.ErrorRejected, "p", "no", nil)
		assert.Same(t, in, classify(in, "p").(*provider.Error))
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		out := classify(errors.New("boom"), "p")
		assert.Equal(t, provider.ErrorInternal, provider.CategoryOf(out))
		assert.False(t, provider.IsRetryable(out))
	})
}
