package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	id "zenid/pkg/domain"
	audit "zenid/pkg/platform/audit"
	"zenid/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger as per-session slices. Append enforces the
// gapless-sequence invariant the same way the SQL store's unique index does.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.SessionID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.SessionID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := uint64(len(s.events[event.SessionID]))
	if event.Seq != seq+1 {
		return sentinel.ErrConflict
	}
	s.events[event.SessionID] = append(s.events[event.SessionID], event)
	return nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[sessionID]...), nil
}

func (s *InMemoryStore) ListRange(_ context.Context, from, to time.Time) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, events := range s.events {
		for _, e := range events {
			if e.Timestamp.Before(from) || e.Timestamp.After(to) {
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *InMemoryStore) LastSeq(_ context.Context, sessionID id.SessionID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.events[sessionID])), nil
}

// Clear drops all events; test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.SessionID][]audit.Event)
}
