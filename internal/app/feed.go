package app

import (
	"sync"

	"rangeday-service/internal/domain"
)

// Feed fans today's leaderboard out to live subscribers. Slow consumers
// have their stale snapshot dropped rather than blocking the publisher.
type Feed struct {
	mu          sync.Mutex
	latest      *domain.DailyLeaderboard
	subscribers map[chan domain.DailyLeaderboard]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan domain.DailyLeaderboard]struct{})}
}

// Subscribe returns a channel of leaderboard snapshots, primed with the
// latest one if any exists. The caller must invoke cancel to avoid leaks.
func (f *Feed) Subscribe() (<-chan domain.DailyLeaderboard, func()) {
	ch := make(chan domain.DailyLeaderboard, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if f.latest != nil {
		ch <- *f.latest
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish pushes a fresh snapshot to every subscriber.
func (f *Feed) Publish(lb domain.DailyLeaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = &lb
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale snapshot so the newest one always fits.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
