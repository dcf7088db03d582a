package cache

import (
	"time"

	"github.com/Sternrassler/github-user-browser/pkg/model"
)

// Entry is the Redis representation of a cached user.
type Entry struct {
	// User is the full profile as fetched from GitHub
	User model.User `json:"user"`

	// CachedAt is when the profile was stored
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry wraps user for storage.
func NewEntry(user *model.User) *Entry {
	return &Entry{
		User:     *user,
		CachedAt: time.Now(),
	}
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
