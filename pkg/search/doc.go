// Package search runs GitHub user searches end to end.
//
// The Orchestrator turns SearchCriteria into query strings, pages through
// every result with the pagination package, swaps the collected users into
// its ResultSet and loads the details of the first screen of rows. It owns
// the search lifecycle:
//
//	Idle -> Building -> Paginating -> Done | Failed | RateLimited
//
// Every search starts a new generation. Starting a search cancels all work
// of the previous generation, and the ResultSet refuses writes tagged with
// an old generation, so a superseded search can never change the results of
// the current one.
//
// After a search was cut short by GitHub (rate limit or the 1000 result
// cap), a new search is refused until the cooldown has elapsed.
//
// Progress is published as plain status strings to a StatusReporter.
package search
