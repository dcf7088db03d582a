package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	ghubRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghub_rate_limit_remaining",
		Help: "Requests remaining in the current GitHub rate limit window",
	})

	ghubLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghub_rate_limit_hits_total",
		Help: "Total number of times a search was cut short by the remote rate limit or result cap",
	})

	ghubCooldownRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghub_cooldown_rejections_total",
		Help: "Total number of searches rejected because the cooldown had not elapsed",
	})
)

// Tracker holds the rate limit state. The in-memory copy is authoritative
// within the process; with a Redis client the state is also persisted so
// that a cooldown outlives the process.
type Tracker struct {
	mu     sync.RWMutex
	state  State
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		state:  NewState(),
		redis:  redisClient,
		logger: logger,
	}
}

// GetState returns the current state. With Redis configured, values found
// there replace the in-memory copy.
func (t *Tracker) GetState(ctx context.Context) (State, error) {
	if t.redis == nil {
		t.mu.RLock()
		defer t.mu.RUnlock()
		return t.state, nil
	}

	limited, err := t.redis.Get(ctx, RedisKeyLimited).Bool()
	if err != nil && err != redis.Nil {
		return t.snapshot(), fmt.Errorf("get limited flag: %w", err)
	}
	if err == redis.Nil {
		t.logger.Debug().Msg("No rate limit state in Redis, using in-memory state")
		return t.snapshot(), nil
	}

	lastSearch, err := t.redis.Get(ctx, RedisKeyLastSearch).Int64()
	if err != nil && err != redis.Nil {
		return t.snapshot(), fmt.Errorf("get last search: %w", err)
	}

	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err != nil && err != redis.Nil {
		return t.snapshot(), fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && err != redis.Nil {
		return t.snapshot(), fmt.Errorf("get reset timestamp: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Limited = limited
	if lastSearch > 0 {
		t.state.LastSearch = time.Unix(0, lastSearch)
	}
	if resetTimestamp > 0 {
		t.state.Remaining = remaining
		t.state.ResetAt = time.Unix(resetTimestamp, 0)
	}
	return t.state, nil
}

// MarkLimited raises the limited flag. Safe to call from concurrent fetches.
func (t *Tracker) MarkLimited(ctx context.Context) error {
	t.mu.Lock()
	already := t.state.Limited
	t.state.Limited = true
	t.mu.Unlock()

	if !already {
		ghubLimitedTotal.Inc()
		t.logger.Warn().Msg("GitHub search limit hit - remaining pages will be skipped")
	}
	return t.persist(ctx)
}

// Reset clears the limited flag at the start of a new search.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	t.state.Limited = false
	t.mu.Unlock()
	return t.persist(ctx)
}

// RecordSearch stores the completion time of a search.
func (t *Tracker) RecordSearch(ctx context.Context, at time.Time) error {
	t.mu.Lock()
	t.state.LastSearch = at
	t.mu.Unlock()
	return t.persist(ctx)
}

// CooldownRemaining returns how long a new search must still wait. When the
// shared state cannot be read the wait is computed from the in-memory state
// and the read error is returned with it.
func (t *Tracker) CooldownRemaining(ctx context.Context, now time.Time, cooldown time.Duration) (time.Duration, error) {
	state, err := t.GetState(ctx)

	wait := state.CooldownRemaining(now, cooldown)
	if wait > 0 {
		ghubCooldownRejectionsTotal.Inc()
		t.logger.Info().
			Dur("wait", wait).
			Time("last_search", state.LastSearch).
			Msg("Search rejected - cooldown active")
	}
	return wait, err
}

// UpdateFromHeaders parses the GitHub rate limit headers and updates the quota.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get("X-RateLimit-Remaining")
	if remainStr == "" {
		// Header not present - fine for mocked or proxied responses
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
	}

	resetStr := headers.Get("X-RateLimit-Reset")
	if resetStr == "" {
		return fmt.Errorf("X-RateLimit-Reset header missing")
	}

	resetEpoch, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse X-RateLimit-Reset header: %w", err)
	}

	t.mu.Lock()
	t.state.Remaining = remain
	t.state.ResetAt = time.Unix(resetEpoch, 0)
	t.state.LastUpdate = time.Now()
	state := t.state
	t.mu.Unlock()

	ghubRateLimitRemaining.Set(float64(remain))

	if state.QuotaExhausted() {
		t.logger.Warn().
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit exhausted")
	} else {
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("GitHub rate limit state updated")
	}

	return t.persist(ctx)
}

func (t *Tracker) snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// persist stores the state in Redis atomically.
func (t *Tracker) persist(ctx context.Context) error {
	if t.redis == nil {
		return nil
	}
	state := t.snapshot()

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyLimited, state.Limited, 0)
	if !state.LastSearch.IsZero() {
		pipe.Set(ctx, RedisKeyLastSearch, state.LastSearch.UnixNano(), 0)
	}
	if !state.ResetAt.IsZero() {
		pipe.Set(ctx, RedisKeyRemaining, state.Remaining, 0)
		pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
