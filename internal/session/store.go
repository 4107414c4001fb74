package session

import (
	"context"

	id "zenid/pkg/domain"
)

// Store persists sessions. Implementations return sentinel.ErrNotFound for
// unknown IDs and sentinel.ErrConflict for duplicate creates; the manager
// translates those to domain errors.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, sessionID id.SessionID) (*Session, error)
	Update(ctx context.Context, s *Session) error
	// ListUnsettled returns sessions that have not reached a terminal phase,
	// for re-arming deadline watchers after a restart.
	ListUnsettled(ctx context.Context) ([]*Session, error)
}
