package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	id "zenid/pkg/domain"
)

// Recorder assigns per-session sequence numbers and writes events with
// fail-closed semantics: if the append fails, the caller must fail its
// operation, because state is never allowed to run ahead of audit.
type Recorder struct {
	store  Store
	logger *slog.Logger
	outbox chan<- Event

	mu   sync.Mutex
	seqs map[id.SessionID]uint64
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithOutbox attaches a channel feeding the publish worker. Emission is
// non-blocking; a full outbox drops the publish, never the persisted write.
func WithOutbox(outbox chan<- Event) Option {
	return func(r *Recorder) {
		r.outbox = outbox
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		seqs:  make(map[id.SessionID]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record snapshots the payload, assigns the next sequence number for the
// session, and appends. Returns the committed event.
func (r *Recorder) Record(ctx context.Context, sessionID id.SessionID, typ EventType, payload any) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal audit payload: %w", err)
		}
		raw = b
	}

	r.mu.Lock()
	seq, ok := r.seqs[sessionID]
	if !ok {
		last, err := r.store.LastSeq(ctx, sessionID)
		if err != nil {
			r.mu.Unlock()
			return Event{}, fmt.Errorf("load audit sequence: %w", err)
		}
		seq = last
	}
	seq++
	r.seqs[sessionID] = seq
	r.mu.Unlock()

	event := Event{
		ID:        uuid.New(),
		SessionID: sessionID,
		Seq:       seq,
		Type:      typ,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}

	if err := r.store.Append(ctx, event); err != nil {
		// Roll the counter back so the sequence stays gapless on retry.
		r.mu.Lock()
		if r.seqs[sessionID] == seq {
			r.seqs[sessionID] = seq - 1
		}
		r.mu.Unlock()
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"session_id", sessionID,
				"event_type", typ,
				"error", err,
			)
		}
		return Event{}, fmt.Errorf("audit persistence failed: %w", err)
	}

	if r.outbox != nil {
		select {
		case r.outbox <- event:
		default:
			if r.logger != nil {
				r.logger.WarnContext(ctx, "audit outbox full, dropping publish",
					"session_id", sessionID,
					"event_type", typ,
				)
			}
		}
	}

	return event, nil
}
