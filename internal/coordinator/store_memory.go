package coordinator

import (
	"context"
	"sync"
	"time"
)

// InMemoryTokenStore backs Delivery for single-process deployments and tests.
type InMemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *InMemoryTokenStore) MarkOnce(_ context.Context, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.tokens[token]; ok && expiry.After(now) {
		return false, nil
	}
	s.prune(now)
	s.tokens[token] = now.Add(ttl)
	return true, nil
}

func (s *InMemoryTokenStore) Release(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

// prune is called under the lock on each claim; token volume is bounded by
// in-flight sessions so a linear sweep is fine.
func (s *InMemoryTokenStore) prune(now time.Time) {
	for token, expiry := range s.tokens {
		if !expiry.After(now) {
			delete(s.tokens, token)
		}
	}
}
