package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// LocalStore is an in-process sliding-window store: a mutex-guarded map of
// request timestamps per (limiter, client key) with a periodic stale-entry
// sweep. Correct only for single-instance deployment; multi-instance setups
// need the shared Redis store.
type LocalStore struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	profiles Profiles
	clock    clockwork.Clock
}

// NewLocalStore creates a local sliding-window store.
func NewLocalStore(profiles Profiles, clock clockwork.Clock) *LocalStore {
	return &LocalStore{
		windows:  make(map[string][]time.Time),
		profiles: profiles,
		clock:    clock,
	}
}

var _ Limiter = (*LocalStore)(nil)

// Allow checks and records one request. Never returns an error: the local
// store has no external dependency to fail.
func (s *LocalStore) Allow(_ context.Context, limiter, clientKey string) (Decision, error) {
	prof := s.profiles.Get(limiter)
	now := s.clock.Now()
	cutoff := now.Add(-prof.Window)
	key := limiter + ":" + clientKey

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := trimBefore(s.windows[key], cutoff)

	if len(kept) >= prof.Max {
		oldest := kept[0]
		s.windows[key] = kept
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    oldest.Add(prof.Window),
			RetryAfter: prof.Window - now.Sub(oldest),
		}, nil
	}

	kept = append(kept, now)
	s.windows[key] = kept
	return Decision{
		Allowed:   true,
		Remaining: prof.Max - len(kept),
		ResetAt:   kept[0].Add(prof.Window),
	}, nil
}

// trimBefore drops timestamps at or before cutoff. Timestamps are appended in
// order, so the slice stays sorted.
func trimBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

// Sweep removes entries whose every timestamp fell out of its window,
// returning the number of entries removed. Prevents unbounded growth from
// one-off clients.
func (s *LocalStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, stamps := range s.windows {
		prof := s.profiles.Get(limiterName(key))
		kept := trimBefore(stamps, now.Add(-prof.Window))
		if len(kept) == 0 {
			delete(s.windows, key)
			removed++
			continue
		}
		s.windows[key] = kept
	}
	return removed
}

// Size returns the number of tracked (limiter, client) entries.
func (s *LocalStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func limiterName(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

// StartSweeper starts a background goroutine that periodically sweeps stale
// entries. Returns a stop function that must be called at shutdown.
func (s *LocalStore) StartSweeper(interval time.Duration) func() {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				removed := s.Sweep()
				if removed > 0 {
					slog.Debug("Swept stale rate-limit entries",
						"removed", removed,
						"remaining", s.Size(),
					)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
