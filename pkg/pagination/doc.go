// Package pagination fetches every page of a GitHub search query concurrently.
//
// The search endpoint reports the total match count on page 1 and serves at
// most 100 items per page. The paginator fetches page 1 synchronously to learn
// the total, then fetches pages 2..N concurrently, each with its own
// PageRequest value, and merges them after all have completed.
//
// Example usage:
//
//	p := pagination.New(fetcher, pagination.DefaultConfig())
//	users, err := p.FetchAll(ctx, func() pagination.PageRequest {
//		return pagination.PageRequest{Query: " location:bulgaria language:go"}
//	})
//
// The paginator:
//   - Returns page 1 alone when it already holds every match (one request)
//   - Fans out pages 2..N through an errgroup bounded by MaxConcurrency
//   - Gives every page its own result slot, so there is no shared lock
//   - Merges slots in page order, page 1 first
//   - Treats an empty page from a cancelled or limited fetch as "no data"
//   - Fails the whole query on any other fetch error
package pagination
