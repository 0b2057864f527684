package memory

import (
	"context"
	"sync"

	"rangeday-service/internal/domain"
)

// AggregateStore holds one versioned row per user. Update refuses writes
// whose version no longer matches, so concurrent finalizations for the same
// user cannot silently lose an update.
type AggregateStore struct {
	mu   sync.RWMutex
	rows map[string]domain.UserAggregate
}

func NewAggregateStore() *AggregateStore {
	return &AggregateStore{rows: make(map[string]domain.UserAggregate)}
}

func (s *AggregateStore) Get(_ context.Context, userID string) (domain.UserAggregate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[userID]
	return row, ok, nil
}

func (s *AggregateStore) Update(_ context.Context, aggregate domain.UserAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[aggregate.UserID]
	if ok && current.Version != aggregate.Version {
		return domain.ErrVersionConflict
	}
	if !ok && aggregate.Version != 0 {
		return domain.ErrVersionConflict
	}
	aggregate.Version++
	s.rows[aggregate.UserID] = aggregate
	return nil
}
