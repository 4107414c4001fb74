// Package audit exposes the ledger to compliance consumers: per-session
// export, time-window export, and replay verification. It only reads; the
// recorder in pkg/platform/audit owns the write path.
package audit

import (
	"context"
	"log/slog"
	"time"

	"zenid/internal/session"
	id "zenid/pkg/domain"
	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/audit"
)

// MaxExportWindow bounds time-range exports so one request cannot walk the
// whole ledger.
const MaxExportWindow = 31 * 24 * time.Hour

// Service reads the audit ledger.
type Service struct {
	store  audit.Store
	logger *slog.Logger
}

func NewService(store audit.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Export returns the complete ordered ledger for one session.
func (s *Service) Export(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	events, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing session events")
	}
	if len(events) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no audit trail for session %s", sessionID)
	}
	return events, nil
}

// ExportRange returns all events across sessions within [from, to).
func (s *Service) ExportRange(ctx context.Context, from, to time.Time) ([]audit.Event, error) {
	if !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "from must be before to")
	}
	if to.Sub(from) > MaxExportWindow {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "export window exceeds %s", MaxExportWindow)
	}
	events, err := s.store.ListRange(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing events in range")
	}
	return events, nil
}

// Replay reconstructs a session purely from its ledger. A corrupt or gapped
// ledger surfaces as CodeInconsistency, which is the signal compliance cares
// about.
func (s *Service) Replay(ctx context.Context, sessionID id.SessionID) (*session.Session, error) {
	events, err := s.Export(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	replayed, err := session.Replay(events)
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger replay failed",
			"session_id", sessionID,
			"events", len(events),
			"error", err,
		)
		return nil, err
	}
	return replayed, nil
}
