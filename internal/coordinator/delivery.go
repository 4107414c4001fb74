package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zenid/internal/domain"
	id "zenid/pkg/domain"
)

// TokenStore tracks delivery tokens so a stage result is applied once.
type TokenStore interface {
	// MarkOnce claims the token. Returns true when this caller is first.
	MarkOnce(ctx context.Context, token string, ttl time.Duration) (bool, error)
	// Release frees a claimed token so a failed apply can be retried.
	Release(ctx context.Context, token string) error
}

// Delivery deduplicates stage-result ingestion. Providers may redeliver on
// network retry; only the first (session, stage, attempt) tuple reaches the
// session state machine, later copies are dropped without effect.
type Delivery struct {
	tokens TokenStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewDelivery(tokens TokenStore, ttl time.Duration, logger *slog.Logger) *Delivery {
	return &Delivery{tokens: tokens, ttl: ttl, logger: logger}
}

// Deliver runs apply exactly once per (session, stage, attempt). A duplicate
// returns nil without invoking apply. When apply fails the token is released
// so a redelivery can try again.
func (d *Delivery) Deliver(ctx context.Context, sessionID id.SessionID, stage domain.Stage, attemptID id.AttemptID, apply func(ctx context.Context) error) error {
	token := deliveryToken(sessionID, stage, attemptID)

	first, err := d.tokens.MarkOnce(ctx, token, d.ttl)
	if err != nil {
		return fmt.Errorf("claiming delivery token: %w", err)
	}
	if !first {
		if d.logger != nil {
			d.logger.DebugContext(ctx, "duplicate stage delivery dropped",
				"session_id", sessionID,
				"stage", stage,
				"attempt_id", attemptID,
			)
		}
		return nil
	}

	if err := apply(ctx); err != nil {
		if relErr := d.tokens.Release(ctx, token); relErr != nil && d.logger != nil {
			d.logger.ErrorContext(ctx, "releasing delivery token", "token", token, "error", relErr)
		}
		return err
	}
	return nil
}

func deliveryToken(sessionID id.SessionID, stage domain.Stage, attemptID id.AttemptID) string {
	return fmt.Sprintf("delivery:%s:%s:%s", sessionID, stage, attemptID)
}
