// Package streak computes day-based play streaks. Streaks reward
// participation, not performance: playing at all keeps the chain alive.
// Day boundaries are always UTC.
package streak

import "time"

// Result is the updated streak pair after a play on "now".
type Result struct {
	Current int
	Best    int
}

// Next computes the streak after playing at "now", given the previous play
// timestamp (nil for a first-time player).
//
//	never played        -> current = 1
//	played today (UTC)  -> unchanged
//	played yesterday    -> current + 1
//	gap of 2+ days      -> reset to 1 (today still counts)
func Next(lastPlayedAt *time.Time, now time.Time, current, best int) Result {
	next := current
	switch {
	case lastPlayedAt == nil:
		next = 1
	default:
		switch daysBetween(*lastPlayedAt, now) {
		case 0:
			// Already played today.
		case 1:
			next = current + 1
			if current <= 0 {
				next = 1
			}
		default:
			next = 1
		}
	}
	if next > best {
		best = next
	}
	return Result{Current: next, Best: best}
}

// daysBetween counts UTC calendar-day boundaries crossed between two
// timestamps, not 24-hour periods.
func daysBetween(earlier, later time.Time) int {
	e := earlier.UTC()
	l := later.UTC()
	eDay := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	lDay := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
	return int(lDay.Sub(eDay).Hours() / 24)
}
