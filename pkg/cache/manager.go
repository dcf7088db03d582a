package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidEntry indicates a Redis entry that could not be decoded
var ErrInvalidEntry = errors.New("invalid cache entry")

// Manager caches full user records by id. It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	users  map[int64]*model.User
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager creates a new cache manager. redisClient may be nil, in which
// case the cache lives in memory only.
func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		users:  make(map[int64]*model.User),
		redis:  redisClient,
		logger: log.With().Str("component", "user-cache").Logger(),
	}
}

// Get returns the cached user with the given id.
func (m *Manager) Get(ctx context.Context, id int64) (*model.User, bool) {
	m.mu.RLock()
	user, ok := m.users[id]
	m.mu.RUnlock()
	if ok {
		CacheHits.WithLabelValues("memory").Inc()
		return user, true
	}

	if m.redis != nil {
		entry, err := m.load(ctx, id)
		switch {
		case err == nil:
			CacheHits.WithLabelValues("redis").Inc()
			CacheEntryAge.Observe(entry.Age().Seconds())
			m.logger.Debug().
				Int64("id", id).
				Dur("age", entry.Age()).
				Msg("Promoted user from Redis")
			user := entry.User
			m.store(&user)
			return &user, true
		case !errors.Is(err, redis.Nil):
			m.logger.Warn().Err(err).Int64("id", id).Msg("Redis cache lookup failed")
		}
	}

	CacheMisses.Inc()
	return nil, false
}

// Put stores user. A nil user or one without an id is ignored.
func (m *Manager) Put(ctx context.Context, user *model.User) {
	if user == nil || user.ID == 0 {
		return
	}
	m.store(user)

	if m.redis == nil {
		return
	}
	data, err := json.Marshal(NewEntry(user))
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		m.logger.Warn().Err(err).Int64("id", user.ID).Msg("Failed to encode cache entry")
		return
	}
	if err := m.redis.Set(ctx, Key(user.ID), data, 0).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		m.logger.Warn().Err(err).Int64("id", user.ID).Msg("Failed to store user in Redis")
	}
}

// Len returns the number of users held in memory.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *Manager) store(user *model.User) {
	m.mu.Lock()
	m.users[user.ID] = user
	n := len(m.users)
	m.mu.Unlock()
	CacheEntries.Set(float64(n))
}

// load reads and decodes the Redis entry of id. A missing key yields redis.Nil.
func (m *Manager) load(ctx context.Context, id int64) (*Entry, error) {
	data, err := m.redis.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			CacheErrors.WithLabelValues("get").Inc()
			return nil, fmt.Errorf("redis get: %w", err)
		}
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.User.ID != id {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: entry for %d holds user %d", ErrInvalidEntry, id, entry.User.ID)
	}
	return &entry, nil
}
