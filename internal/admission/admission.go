// Package admission gates every mutating request with a per-client
// sliding-window budget. One Allow interface, two interchangeable backends:
// a shared Redis store (required across multiple instances) and a local
// in-process store (single-instance deployments and the fail-open fallback).
package admission

import (
	"context"
	"time"
)

// Profile names. Numeric limits are deployment policy, set in config.
const (
	ProfileDefault    = "default"
	ProfileSearch     = "search"
	ProfileSubmission = "submission"
	ProfileVote       = "vote"
)

// Profile is one named sliding-window budget.
type Profile struct {
	Max    int
	Window time.Duration
}

// Profiles maps limiter names to budgets.
type Profiles map[string]Profile

// Get returns the named profile, falling back to the default profile for
// unknown limiter names.
func (p Profiles) Get(name string) Profile {
	if prof, ok := p[name]; ok {
		return prof
	}
	return p[ProfileDefault]
}

// Stricter halves every budget (minimum 1 request per window). Used as the
// local fallback while the shared store is unreachable: fail open, but keep
// abuse bounded.
func (p Profiles) Stricter() Profiles {
	out := make(Profiles, len(p))
	for name, prof := range p {
		max := prof.Max / 2
		if max < 1 {
			max = 1
		}
		out[name] = Profile{Max: max, Window: prof.Window}
	}
	return out
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// Degraded marks a decision made by the local fallback because the shared
	// store was unreachable.
	Degraded bool
}

// Limiter is the single admission-control interface. Backends are selected at
// startup by configuration, never branched per call site. A returned error
// means the backend itself failed, not that the request was over budget.
type Limiter interface {
	Allow(ctx context.Context, limiter, clientKey string) (Decision, error)
}
