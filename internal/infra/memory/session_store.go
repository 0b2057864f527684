package memory

import (
	"sync"
	"time"

	"rangeday-service/internal/app"
)

// SessionStore keeps live sessions in memory with TTL eviction. Sessions
// are short-lived by nature; anything the janitor sweeps was abandoned.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]sessionEntry

	stop     chan struct{}
	stopOnce sync.Once
}

type sessionEntry struct {
	session   *app.Session
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	s := &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]sessionEntry),
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = sessionEntry{
		session:   session,
		expiresAt: s.clock().Add(s.ttl),
	}
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok || entry.expiresAt.Before(s.clock()) {
		return nil, false
	}
	return entry.session, true
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Close stops the background janitor.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *SessionStore) janitor() {
	interval := s.ttl
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *SessionStore) sweep() {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		if entry.expiresAt.Before(now) {
			delete(s.sessions, id)
		}
	}
}
