package cache

import "strconv"

// KeyPrefix namespaces user entries in Redis.
const KeyPrefix = "ghub:user:"

// Key returns the Redis key of the user with the given id.
//
// Example:
//
//	ghub:user:583231
func Key(id int64) string {
	return KeyPrefix + strconv.FormatInt(id, 10)
}
