package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memCounters serializes updates with a mutex, mirroring the
// single-writer guarantee the bolt store provides.
type memCounters struct {
	mu       sync.Mutex
	counters map[string]Counter
}

func newMemCounters() *memCounters {
	return &memCounters{counters: make(map[string]Counter)}
}

func (m *memCounters) Update(userID string, fn func(c *Counter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counters[userID]
	if err := fn(&c); err != nil {
		return err
	}
	m.counters[userID] = c
	return nil
}

func TestAdmitWithinWindow(t *testing.T) {
	l := New(newMemCounters(), 20, time.Minute)
	now := time.Unix(1000, 0)

	for i := 0; i < 20; i++ {
		require.NoError(t, l.Admit("u1", now.Add(time.Duration(i)*time.Second)), "request %d", i+1)
	}
	err := l.Admit("u1", now.Add(30*time.Second))
	require.ErrorIs(t, err, ErrRateLimited, "21st request in the window must be rejected")

	// still rejected until the window rolls over
	err = l.Admit("u1", now.Add(59*time.Second))
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestWindowReset(t *testing.T) {
	counters := newMemCounters()
	l := New(counters, 20, time.Minute)
	now := time.Unix(1000, 0)

	for i := 0; i < 20; i++ {
		require.NoError(t, l.Admit("u1", now))
	}
	require.ErrorIs(t, l.Admit("u1", now), ErrRateLimited)

	// 61s after windowStart: fresh window, fresh counter
	later := now.Add(61 * time.Second)
	require.NoError(t, l.Admit("u1", later))
	require.Equal(t, 1, counters.counters["u1"].Count)
	require.Equal(t, later, counters.counters["u1"].WindowStart)
}

func TestWindowResetIndependentOfOldCount(t *testing.T) {
	l := New(newMemCounters(), 5, time.Minute)
	now := time.Unix(1000, 0)

	require.NoError(t, l.Admit("u1", now))
	// gap larger than the window always admits, whatever the old count
	require.NoError(t, l.Admit("u1", now.Add(2*time.Minute)))
}

func TestUsersAreIndependent(t *testing.T) {
	l := New(newMemCounters(), 2, time.Minute)
	now := time.Unix(1000, 0)

	require.NoError(t, l.Admit("a", now))
	require.NoError(t, l.Admit("a", now))
	require.ErrorIs(t, l.Admit("a", now), ErrRateLimited)
	require.NoError(t, l.Admit("b", now))
}

func TestRejectedCheckLeavesCounterUnchanged(t *testing.T) {
	counters := newMemCounters()
	l := New(counters, 3, time.Minute)
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Admit("u1", now))
	}
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, l.Admit("u1", now), ErrRateLimited)
	}
	require.Equal(t, 3, counters.counters["u1"].Count)
}

func TestConcurrentAdmissions(t *testing.T) {
	counters := newMemCounters()
	max := 20
	l := New(counters, max, time.Minute)
	now := time.Unix(1000, 0)

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Admit("u1", now); err == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	got := 0
	for range admitted {
		got++
	}
	require.Equal(t, max, got, "concurrent checks must never increment past the cap")
	require.Equal(t, max, counters.counters["u1"].Count)
}

func TestEmptyUserID(t *testing.T) {
	l := New(newMemCounters(), 20, time.Minute)
	require.Error(t, l.Admit("", time.Now()))
}
