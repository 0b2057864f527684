package memory

import (
	"testing"
	"time"

	"rangeday-service/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(time.Minute)
	defer store.Close()

	day := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	session := app.NewSession("s1", "u1", "Alice", day, []string{"q1"})
	store.Put(session)

	got, ok := store.Get("s1")
	if !ok || got.ID() != "s1" {
		t.Fatalf("expected session present, got ok=%v", ok)
	}

	store.Delete("s1")
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreExpires(t *testing.T) {
	store := NewSessionStore(time.Minute)
	defer store.Close()

	day := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	store.Put(app.NewSession("s1", "u1", "Alice", day, []string{"q1"}))

	// Advance the store's clock past the TTL.
	store.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected expired session to be gone")
	}

	store.sweep()
	store.mu.RLock()
	remaining := len(store.sessions)
	store.mu.RUnlock()
	if remaining != 0 {
		t.Fatalf("sweep left %d expired sessions", remaining)
	}
}
