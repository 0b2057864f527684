package memory

import (
	"context"
	"sync"
	"time"

	"rangeday-service/internal/domain"
)

// ResponseLog is an append-only in-memory response history. Records are
// never mutated or deleted once appended.
type ResponseLog struct {
	mu        sync.RWMutex
	responses []domain.UserResponse
}

func NewResponseLog() *ResponseLog {
	return &ResponseLog{}
}

// Append records a finalized session's responses as one batch.
func (l *ResponseLog) Append(_ context.Context, responses []domain.UserResponse) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responses = append(l.responses, responses...)
	return nil
}

func (l *ResponseLog) ByUser(_ context.Context, userID string) ([]domain.UserResponse, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.UserResponse
	for _, r := range l.responses {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *ResponseLog) ByDateRange(_ context.Context, start, end time.Time) ([]domain.UserResponse, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.UserResponse
	for _, r := range l.responses {
		if inRange(r.AnsweredAt, start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *ResponseLog) ByQuestionIDs(_ context.Context, ids []string, start, end time.Time) ([]domain.UserResponse, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.UserResponse
	for _, r := range l.responses {
		if _, ok := wanted[r.QuestionID]; ok && inRange(r.AnsweredAt, start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// inRange matches the half-open interval [start, end).
func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
