package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "zenid/pkg/domain"
)

type failingStore struct {
	Store
	fail bool
}

func (s *failingStore) Append(ctx context.Context, event Event) error {
	if s.fail {
		return errors.New("ledger offline")
	}
	return s.Store.Append(ctx, event)
}

func TestRecorderRecord(t *testing.T) {
	ctx := context.Background()
	sessionID := id.NewSessionID()

	t.Run("assigns monotonic sequence numbers from 1", func(t *testing.T) {
		store := newTestStore()
		rec := NewRecorder(store)

		for i := 1; i <= 5; i++ {
			event, err := rec.Record(ctx, sessionID, EventStageSettled, map[string]int{"n": i})
			require.NoError(t, err)
			assert.Equal(t, uint64(i), event.Seq)
		}

		events, err := store.ListBySession(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, events, 5)
	})

	t.Run("sequences are independent per session", func(t *testing.T) {
		rec := NewRecorder(newTestStore())

		a, err := rec.Record(ctx, id.NewSessionID(), EventSessionCreated, nil)
		require.NoError(t, err)
		b, err := rec.Record(ctx, id.NewSessionID(), EventSessionCreated, nil)
		require.NoError(t, err)

		assert.Equal(t, uint64(1), a.Seq)
		assert.Equal(t, uint64(1), b.Seq)
	})

	t.Run("resumes after the persisted sequence", func(t *testing.T) {
		store := newTestStore()
		first := NewRecorder(store)
		_, err := first.Record(ctx, sessionID, EventSessionCreated, nil)
		require.NoError(t, err)
		_, err = first.Record(ctx, sessionID, EventStageSettled, nil)
		require.NoError(t, err)

		// A fresh recorder (process restart) loads the last sequence lazily.
		second := NewRecorder(store)
		event, err := second.Record(ctx, sessionID, EventRiskScored, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), event.Seq)
	})

	t.Run("append failure fails the record and keeps the sequence gapless", func(t *testing.T) {
		store := &failingStore{Store: newTestStore(), fail: true}
		rec := NewRecorder(store)

		_, err := rec.Record(ctx, sessionID, EventSessionCreated, nil)
		require.Error(t, err)

		store.fail = false
		event, err := rec.Record(ctx, sessionID, EventSessionCreated, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), event.Seq, "failed write must not burn a sequence number")
	})

	t.Run("snapshots the payload as json", func(t *testing.T) {
		store := newTestStore()
		rec := NewRecorder(store)

		payload := map[string]any{"outcome": "accepted", "tier": "tier2_standard"}
		event, err := rec.Record(ctx, sessionID, EventDecisionMade, payload)
		require.NoError(t, err)
		assert.JSONEq(t, `{"outcome":"accepted","tier":"tier2_standard"}`, string(event.Payload))
		assert.False(t, event.Timestamp.IsZero())
	})

	t.Run("emits to the outbox without blocking when full", func(t *testing.T) {
		store := newTestStore()
		outbox := make(chan Event, 1)
		rec := NewRecorder(store, WithOutbox(outbox))

		_, err := rec.Record(ctx, sessionID, EventSessionCreated, nil)
		require.NoError(t, err)
		// Outbox now full; the next record must still persist.
		event, err := rec.Record(ctx, sessionID, EventStageSettled, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), event.Seq)

		select {
		case got := <-outbox:
			assert.Equal(t, EventSessionCreated, got.Type)
		case <-time.After(time.Second):
			t.Fatal("expected the first event on the outbox")
		}
	})
}

func TestEventCategory(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventDecisionMade.Category())
	assert.Equal(t, CategoryCompliance, EventSessionExpired.Category())
	assert.Equal(t, CategoryOperations, EventProviderAttempted.Category())
	assert.Equal(t, CategoryOperations, EventType("never_seen").Category())
}
