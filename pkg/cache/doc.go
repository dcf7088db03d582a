// Package cache provides the user record cache.
//
// Full user profiles are expensive to fetch and never change within a
// session, so every profile fetched by the enrichment stage is kept here and
// reused by later searches instead of being fetched again.
//
// The manager has two layers:
//
// - An in-process map keyed by user id (always present, authoritative)
// - An optional Redis layer that lets the cache outlive the process
//
// A Get that misses memory falls back to Redis and promotes the hit. Redis
// failures are logged and counted but never reported to callers: the memory
// layer alone is a valid cache.
//
// # Basic Usage
//
//	// Memory only
//	manager := cache.NewManager(nil)
//
//	// With Redis
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	manager := cache.NewManager(redisClient)
//
//	manager.Put(ctx, user)
//	if cached, ok := manager.Get(ctx, user.ID); ok {
//		// no detail fetch needed
//	}
//
// # Metrics
//
//   - ghub_cache_hits_total{layer="memory|redis"} - Cache hits
//   - ghub_cache_misses_total - Cache misses
//   - ghub_cache_entries - Entries held in memory
//   - ghub_cache_errors_total{operation} - Redis operation errors
package cache
