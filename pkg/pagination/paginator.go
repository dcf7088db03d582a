package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is the page size used when a request does not set one.
const DefaultPageSize = 100

var (
	ghubPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghub_pages_fetched_total",
		Help: "Total number of search pages fetched",
	})

	ghubPaginationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghub_pagination_duration_seconds",
		Help:    "Duration of fetching all pages of one query",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	})
)

// Config holds paginator configuration
type Config struct {
	// MaxConcurrency bounds the number of pages fetched at once; 0 means
	// one goroutine per page
	MaxConcurrency int
	// PageSize applies when a PageRequest leaves PerPage unset
	PageSize int
}

// DefaultConfig returns safe default configuration for the search API
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		PageSize:       DefaultPageSize,
	}
}

// PageRequest is an immutable description of one page of one query.
type PageRequest struct {
	Query   string
	Page    int
	PerPage int
}

// PageResult is one fetched page.
type PageResult struct {
	// TotalCount is the number of matches reported by the remote source
	TotalCount int
	Items      []model.SummaryUser
	// Truncated is set when the source marked the page incomplete or the
	// fetch was abandoned
	Truncated bool
}

// Fetcher fetches a single page. Implementations return an empty, truncated
// result instead of an error for benign outcomes such as cancellation.
type Fetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (PageResult, error)
}

// Paginator fetches all pages of a query
type Paginator struct {
	fetcher Fetcher
	config  Config
}

// New creates a new paginator
func New(fetcher Fetcher, config Config) *Paginator {
	if config.MaxConcurrency < 0 {
		config.MaxConcurrency = 0
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}

	return &Paginator{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches every page of the query built by newRequest and returns
// the users of all pages, page 1 first. newRequest is called once per page
// and must return a fresh value each time; the paginator sets the page number
// on its own copy.
func (p *Paginator) FetchAll(ctx context.Context, newRequest func() PageRequest) ([]model.SummaryUser, error) {
	start := time.Now()
	defer func() {
		ghubPaginationDuration.Observe(time.Since(start).Seconds())
	}()

	first := p.pageRequest(newRequest, 1, 0)
	firstPage, err := p.fetcher.FetchPage(ctx, first)
	if err != nil {
		return nil, fmt.Errorf("fetch page 1: %w", err)
	}
	ghubPagesFetchedTotal.Inc()

	log.Debug().
		Str("query", first.Query).
		Int("total_count", firstPage.TotalCount).
		Int("page_items", len(firstPage.Items)).
		Msg("First page fetched")

	// Single page optimization
	if firstPage.TotalCount <= len(firstPage.Items) {
		return firstPage.Items, nil
	}

	perPage := first.PerPage
	totalPages := (firstPage.TotalCount + perPage - 1) / perPage

	log.Info().
		Str("query", first.Query).
		Int("total_count", firstPage.TotalCount).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	// one slot per page; each goroutine writes only its own
	pages := make([][]model.SummaryUser, totalPages+1)
	pages[1] = firstPage.Items

	g, gctx := errgroup.WithContext(ctx)
	if p.config.MaxConcurrency > 0 {
		g.SetLimit(p.config.MaxConcurrency)
	}

	for page := 2; page <= totalPages; page++ {
		if ctx.Err() != nil {
			log.Debug().Int("next_page", page).Msg("Search cancelled, not scheduling further pages")
			break
		}

		req := p.pageRequest(newRequest, page, perPage)
		g.Go(func() error {
			result, err := p.fetcher.FetchPage(gctx, req)
			if err != nil {
				return fmt.Errorf("fetch page %d: %w", req.Page, err)
			}
			ghubPagesFetchedTotal.Inc()
			pages[req.Page] = result.Items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().
			Err(err).
			Str("query", first.Query).
			Msg("Page fetch failed")
		return nil, err
	}

	users := make([]model.SummaryUser, 0, firstPage.TotalCount)
	fetchedPages := 0
	for _, items := range pages {
		if len(items) > 0 {
			fetchedPages++
		}
		users = append(users, items...)
	}

	log.Info().
		Str("query", first.Query).
		Int("pages", fetchedPages).
		Int("total_pages", totalPages).
		Int("users", len(users)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return users, nil
}

// pageRequest builds the request for page from a fresh newRequest value.
func (p *Paginator) pageRequest(newRequest func() PageRequest, page, perPage int) PageRequest {
	req := newRequest()
	req.Page = page
	if perPage > 0 {
		req.PerPage = perPage
	}
	if req.PerPage <= 0 {
		req.PerPage = p.config.PageSize
	}
	return req
}
