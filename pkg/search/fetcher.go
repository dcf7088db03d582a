package search

import (
	"context"

	"github.com/Sternrassler/github-user-browser/pkg/client"
	"github.com/Sternrassler/github-user-browser/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SearchClient issues one page of a user search. *client.Client satisfies it.
type SearchClient interface {
	SearchUsers(ctx context.Context, query string, page, perPage int) (*client.SearchUsersResult, error)
}

// PageFetcher fetches single search pages and absorbs the benign failures.
// It implements pagination.Fetcher.
type PageFetcher struct {
	client    SearchClient
	onLimited func(err error)
	logger    zerolog.Logger
}

// NewPageFetcher creates a page fetcher. onLimited, if set, is called each
// time a page is refused by a rate limit or a validation error; callers use
// it to flag the limit and cancel the sibling fetches.
func NewPageFetcher(c SearchClient, onLimited func(err error)) *PageFetcher {
	return &PageFetcher{
		client:    c,
		onLimited: onLimited,
		logger:    log.With().Str("component", "page-fetcher").Logger(),
	}
}

// FetchPage fetches one page. A cancelled or limited fetch yields an empty,
// truncated result and no error; every other failure is returned.
func (f *PageFetcher) FetchPage(ctx context.Context, req pagination.PageRequest) (pagination.PageResult, error) {
	if ctx.Err() != nil {
		return pagination.PageResult{Truncated: true}, nil
	}

	result, err := f.client.SearchUsers(ctx, req.Query, req.Page, req.PerPage)
	if err != nil {
		switch {
		case ctx.Err() != nil || client.IsCancelled(err):
			f.logger.Debug().Int("page", req.Page).Msg("Page fetch cancelled")
			return pagination.PageResult{Truncated: true}, nil
		case client.IsRateLimited(err):
			f.logger.Warn().
				Err(err).
				Int("page", req.Page).
				Msg("Page refused by GitHub, stopping search")
			if f.onLimited != nil {
				f.onLimited(err)
			}
			return pagination.PageResult{Truncated: true}, nil
		default:
			return pagination.PageResult{}, err
		}
	}

	return pagination.PageResult{
		TotalCount: result.TotalCount,
		Items:      result.Items,
		Truncated:  result.IncompleteResults,
	}, nil
}
