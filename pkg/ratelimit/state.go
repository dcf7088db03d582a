// Package ratelimit tracks the GitHub search rate-limit state: whether the
// last search ran into the result cap or quota, when it ran, and the quota
// reported by the X-RateLimit-* response headers. The state drives the
// search cooldown and can be shared across processes via Redis.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyLimited        = "ghub:rate_limit:limited"
	RedisKeyLastSearch     = "ghub:rate_limit:last_search"
	RedisKeyRemaining      = "ghub:rate_limit:remaining"
	RedisKeyResetTimestamp = "ghub:rate_limit:reset_timestamp"
)

// DefaultCooldown is the wait imposed after a search was trimmed or rejected.
const DefaultCooldown = 2 * time.Minute

// State is the rate limit state of the search endpoint.
type State struct {
	// Limited is set when the last search was cut short by the remote
	// source (rate limit, result cap or validation rejection).
	Limited bool `json:"limited"`

	// LastSearch is when the last search completed.
	LastSearch time.Time `json:"last_search"`

	// Remaining is the request quota left in the current window, from
	// X-RateLimit-Remaining. -1 until a response carried the header.
	Remaining int `json:"remaining"`

	// ResetAt is when the quota window resets, from X-RateLimit-Reset.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the quota fields were last refreshed.
	LastUpdate time.Time `json:"last_update"`
}

// NewState returns a state with no search history and an unknown quota.
func NewState() State {
	return State{Remaining: -1}
}

// CooldownRemaining returns how long a new search must still wait. It is
// zero unless the last search was limited and cooldown has not elapsed.
func (s *State) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if !s.Limited {
		return 0
	}
	remaining := cooldown - now.Sub(s.LastSearch)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// QuotaExhausted reports whether the last known quota is used up.
func (s *State) QuotaExhausted() bool {
	return s.Remaining == 0
}

// IsStale returns true if the quota data is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// TimeUntilReset returns the duration until the quota window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
