package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "zenid/pkg/domain"
	"zenid/pkg/platform/sentinel"
	txcontext "zenid/pkg/platform/tx"
)

// PostgresStore persists sessions. Queryable lifecycle columns sit beside a
// JSONB document holding the full session, so reads need no reassembly joins
// and schema churn stays confined to the document.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL for session storage; applied by migrations or tests.
const Schema = `
CREATE TABLE IF NOT EXISTS verification_sessions (
	session_id UUID	PRIMARY KEY,
	user_id    UUID	NOT NULL,
	policy_id  TEXT	NOT NULL,
	phase      TEXT	NOT NULL,
	created_at TIMESTAMPTZ	NOT NULL,
	deadline   TIMESTAMPTZ	NOT NULL,
	data       JSONB	NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verification_sessions_user ON verification_sessions (user_id);
CREATE INDEX IF NOT EXISTS idx_verification_sessions_phase ON verification_sessions (phase);
`

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO verification_sessions (session_id, user_id, policy_id, phase, created_at, deadline, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID.String(), sess.UserID.String(), sess.PolicyID, string(sess.State.Phase), sess.CreatedAt, sess.Deadline, data,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM verification_sessions WHERE session_id = $1`,
		sessionID.String(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) Update(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE verification_sessions
		SET phase = $2, deadline = $3, data = $4
		WHERE session_id = $1`,
		sess.ID.String(), string(sess.State.Phase), sess.Deadline, data,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUnsettled(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM verification_sessions
		WHERE phase NOT IN ($1, $2)
		ORDER BY created_at ASC`,
		string(PhaseDecided), string(PhaseExpired),
	)
	if err != nil {
		return nil, fmt.Errorf("list unsettled sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}
