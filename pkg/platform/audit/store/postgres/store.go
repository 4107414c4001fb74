package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "zenid/pkg/domain"
	audit "zenid/pkg/platform/audit"
	"zenid/pkg/platform/sentinel"
	txcontext "zenid/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL. The (session_id, seq) primary
// key makes the ledger append-only in practice: an out-of-order or duplicate
// sequence number violates the key and the write is rejected, never merged.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the DDL for the audit ledger; applied by migrations or tests.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	event_id   UUID	NOT NULL,
	session_id UUID	NOT NULL,
	seq        BIGINT	NOT NULL,
	event_type TEXT	NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ	NOT NULL,
	PRIMARY KEY (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events (created_at);
`

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_events (event_id, session_id, seq, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.SessionID.String(), event.Seq, string(event.Type), []byte(event.Payload), event.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, session_id, seq, event_type, payload, created_at
		FROM audit_events
		WHERE session_id = $1
		ORDER BY seq ASC`,
		sessionID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRange(ctx context.Context, from, to time.Time) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, session_id, seq, event_type, payload, created_at
		FROM audit_events
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, seq ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events by range: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) LastSeq(ctx context.Context, sessionID id.SessionID) (uint64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM audit_events WHERE session_id = $1`,
		sessionID.String(),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last audit seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var out []audit.Event
	for rows.Next() {
		var (
			e         audit.Event
			sessionID string
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&e.ID, &sessionID, &e.Seq, &eventType, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		sid, err := id.ParseSessionID(sessionID)
		if err != nil {
			return nil, fmt.Errorf("corrupt session id in audit row: %w", err)
		}
		e.SessionID = sid
		e.Type = audit.EventType(eventType)
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
