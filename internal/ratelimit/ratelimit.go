// Package ratelimit implements the per-user admission quota as a fixed
// window counter: the counter resets at discrete intervals rather than
// sliding continuously, so a burst spanning a window boundary may pass
// up to twice the cap. This matches the documented behavior and is kept
// as-is.
package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Counter is the persisted quota document for one user.
type Counter struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"start_time"`
}

// CounterStore runs fn against the user's counter as a single atomic
// read-modify-write. When fn returns an error the counter must be left
// unchanged. A zero Counter is handed to fn when none exists yet.
type CounterStore interface {
	Update(userID string, fn func(c *Counter) error) error
}

// ErrRateLimited is returned when the quota for the current window is
// exhausted.
var ErrRateLimited = errors.New("rate limit exceeded")

type Limiter struct {
	counters CounterStore
	max      int
	window   time.Duration
}

func New(counters CounterStore, max int, window time.Duration) *Limiter {
	return &Limiter{counters: counters, max: max, window: window}
}

// Admit charges one request against the user's window. Two concurrent
// calls for the same user can never both pass the cap: the whole
// check-and-increment runs inside one store transaction.
func (l *Limiter) Admit(userID string, now time.Time) error {
	if userID == "" {
		return fmt.Errorf("admit: empty user id")
	}
	err := l.counters.Update(userID, func(c *Counter) error {
		switch {
		case c.WindowStart.IsZero(), now.Sub(c.WindowStart) > l.window:
			c.Count = 1
			c.WindowStart = now
		case c.Count >= l.max:
			return ErrRateLimited
		default:
			c.Count++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return ErrRateLimited
		}
		return fmt.Errorf("rate limit update: %w", err)
	}
	return nil
}
