// Package enrich upgrades search results to fully loaded users.
//
// A search yields summary users only. The scheduler fetches the detail
// profile of every user in a range of the ResultSet, consulting the user
// cache first so that an id already loaded (in this or an earlier search)
// never triggers a second detail request.
//
// Two modes are provided:
//
//   - LoadWindow fetches serially in position order and writes each user as
//     soon as it arrives. Used for the handful of rows currently on screen.
//   - LoadAll splits the whole set into batches of Config.BatchSize, runs one
//     worker per batch, and merges every worker's private results on the
//     calling goroutine once all workers have finished.
//
// A bulk worker that fails keeps the users it already fetched and stops its
// own batch; the other workers carry on. LoadAll reports how many users were
// requested and loaded and returns the joined worker errors, so callers can
// tell a complete load from a partial one.
package enrich
