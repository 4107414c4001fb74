package audit

import (
	"context"
	"sort"
	"time"

	id "zenid/pkg/domain"
	"zenid/pkg/platform/sentinel"
)

// testStore is a minimal in-process Store for recorder tests. The production
// in-memory implementation lives in store/memory; importing it here would
// cycle.
type testStore struct {
	events map[id.SessionID][]Event
}

func newTestStore() *testStore {
	return &testStore{events: make(map[id.SessionID][]Event)}
}

func (s *testStore) Append(_ context.Context, event Event) error {
	if event.Seq != uint64(len(s.events[event.SessionID]))+1 {
		return sentinel.ErrConflict
	}
	s.events[event.SessionID] = append(s.events[event.SessionID], event)
	return nil
}

func (s *testStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]Event, error) {
	return append([]Event(nil), s.events[sessionID]...), nil
}

func (s *testStore) ListRange(_ context.Context, from, to time.Time) ([]Event, error) {
	var out []Event
	for _, events := range s.events {
		for _, e := range events {
			if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *testStore) LastSeq(_ context.Context, sessionID id.SessionID) (uint64, error) {
	return uint64(len(s.events[sessionID])), nil
}
