package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/github-user-browser/pkg/client"
	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of users one bulk worker fetches.
const DefaultBatchSize = 20

// ErrOutOfRange is returned when a requested range does not fit the ResultSet.
var ErrOutOfRange = errors.New("index out of range")

var (
	ghubEnrichFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghub_enrich_fetches_total",
		Help: "Detail fetches issued by the enrichment scheduler by mode and result",
	}, []string{"mode", "result"})

	ghubEnrichCacheSplicesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghub_enrich_cache_splices_total",
		Help: "Users spliced into results from the cache without a detail fetch",
	})

	ghubEnrichWorkers = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghub_enrich_workers",
		Help:    "Number of workers started per bulk load",
		Buckets: []float64{1, 2, 5, 10, 25, 50},
	})
)

// UserFetcher fetches the full profile of a user. *client.Client satisfies it.
type UserFetcher interface {
	GetUser(ctx context.Context, login string) (*model.User, error)
}

// Cache stores full users by id. *cache.Manager satisfies it.
type Cache interface {
	Get(ctx context.Context, id int64) (*model.User, bool)
	Put(ctx context.Context, user *model.User)
}

// Config holds scheduler configuration
type Config struct {
	// BatchSize is the number of users per bulk worker
	BatchSize int
	// MaxWorkers bounds concurrently running bulk workers; 0 starts all at once
	MaxWorkers int
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
	}
}

// Pending is a ResultSet position whose user still needs a detail fetch.
type Pending struct {
	Index int
	ID    int64
	Login string
}

// Report summarizes one load.
type Report struct {
	// Requested is the number of users that needed a detail fetch
	Requested int
	// Loaded is the number of users fetched
	Loaded int
	// Failed is the number of batches stopped by an error
	Failed int
	// Workers is the number of bulk workers started
	Workers int
}

// Missing returns the number of requested users that were not loaded.
func (r Report) Missing() int {
	return r.Requested - r.Loaded
}

// Scheduler loads full users into a ResultSet.
type Scheduler struct {
	fetcher UserFetcher
	cache   Cache
	config  Config
	logger  zerolog.Logger
}

// New creates a new scheduler
func New(fetcher UserFetcher, cache Cache, config Config) *Scheduler {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.MaxWorkers < 0 {
		config.MaxWorkers = 0
	}

	return &Scheduler{
		fetcher: fetcher,
		cache:   cache,
		config:  config,
		logger:  log.With().Str("component", "enrich").Logger(),
	}
}

// UsersToLoad inspects positions [start, start+count) of rs. Users found in
// the cache are written into rs immediately; the rest are returned in
// position order. Positions already holding a full user are skipped.
func (s *Scheduler) UsersToLoad(ctx context.Context, rs *model.ResultSet, gen uint64, start, count int) ([]Pending, error) {
	n := rs.Len()
	if start < 0 || start >= n {
		return nil, fmt.Errorf("start %d with %d results: %w", start, n, ErrOutOfRange)
	}
	if count < 0 || start+count > n {
		return nil, fmt.Errorf("count %d from start %d with %d results: %w", count, start, n, ErrOutOfRange)
	}

	var pending []Pending
	for idx := start; idx < start+count; idx++ {
		record, ok := rs.At(idx)
		if !ok || record.IsFull() {
			continue
		}
		if user, ok := s.cache.Get(ctx, record.ID()); ok {
			rs.SetUser(gen, idx, user)
			ghubEnrichCacheSplicesTotal.Inc()
			continue
		}
		pending = append(pending, Pending{Index: idx, ID: record.ID(), Login: record.Login()})
	}
	return pending, nil
}

// LoadWindow loads positions [start, start+count) one user at a time. Each
// user is stored as soon as it arrives. The first failure stops the load and
// is returned; cancellation stops it silently.
func (s *Scheduler) LoadWindow(ctx context.Context, rs *model.ResultSet, gen uint64, start, count int) (Report, error) {
	pending, err := s.UsersToLoad(ctx, rs, gen, start, count)
	if err != nil {
		return Report{}, err
	}

	report := Report{Requested: len(pending)}
	for _, p := range pending {
		if ctx.Err() != nil {
			return report, nil
		}

		user, err := s.fetcher.GetUser(ctx, p.Login)
		if err != nil {
			if ctx.Err() != nil || client.IsCancelled(err) {
				ghubEnrichFetchesTotal.WithLabelValues("window", "cancelled").Inc()
				return report, nil
			}
			ghubEnrichFetchesTotal.WithLabelValues("window", "error").Inc()
			report.Failed = 1
			return report, fmt.Errorf("load user %s: %w", p.Login, err)
		}
		ghubEnrichFetchesTotal.WithLabelValues("window", "ok").Inc()

		s.cache.Put(ctx, user)
		rs.SetUser(gen, p.Index, user)
		report.Loaded++
	}

	s.logger.Debug().
		Int("start", start).
		Int("count", count).
		Int("fetched", report.Loaded).
		Msg("Window loaded")

	return report, nil
}

// batchResult is what one bulk worker collected.
type batchResult struct {
	users map[int]*model.User
	err   error
}

// LoadAll loads every user of rs. Pending users are split into batches of
// Config.BatchSize, one worker per batch, each fetching serially into its
// own map. After all workers finish the results are merged into the cache
// and rs on the calling goroutine. Users fetched by a failing worker are
// still merged; the failures are returned joined.
func (s *Scheduler) LoadAll(ctx context.Context, rs *model.ResultSet, gen uint64) (Report, error) {
	n := rs.Len()
	if n == 0 {
		return Report{}, nil
	}

	pending, err := s.UsersToLoad(ctx, rs, gen, 0, n)
	if err != nil {
		return Report{}, err
	}

	report := Report{Requested: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	batches := partition(pending, s.config.BatchSize)
	report.Workers = len(batches)
	ghubEnrichWorkers.Observe(float64(len(batches)))

	s.logger.Info().
		Int("users", len(pending)).
		Int("workers", len(batches)).
		Int("batch_size", s.config.BatchSize).
		Msg("Starting bulk load")
	start := time.Now()

	results := make([]batchResult, len(batches))

	// workers never return an error so that one failure does not cancel the rest
	var g errgroup.Group
	if s.config.MaxWorkers > 0 {
		g.SetLimit(s.config.MaxWorkers)
	}
	for i, batch := range batches {
		g.Go(func() error {
			results[i] = s.loadBatch(ctx, batch)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, result := range results {
		for idx, user := range result.users {
			s.cache.Put(ctx, user)
			rs.SetUser(gen, idx, user)
			report.Loaded++
		}
		if result.err != nil {
			report.Failed++
			errs = append(errs, result.err)
		}
	}

	event := s.logger.Info()
	if len(errs) > 0 {
		event = s.logger.Warn().Err(errors.Join(errs...))
	}
	event.
		Int("requested", report.Requested).
		Int("loaded", report.Loaded).
		Int("failed_batches", report.Failed).
		Dur("duration", time.Since(start)).
		Msg("Bulk load finished")

	return report, errors.Join(errs...)
}

// loadBatch fetches batch serially, stopping at the first failure.
func (s *Scheduler) loadBatch(ctx context.Context, batch []Pending) batchResult {
	result := batchResult{users: make(map[int]*model.User, len(batch))}
	for _, p := range batch {
		if ctx.Err() != nil {
			return result
		}

		user, err := s.fetcher.GetUser(ctx, p.Login)
		if err != nil {
			if ctx.Err() != nil || client.IsCancelled(err) {
				ghubEnrichFetchesTotal.WithLabelValues("bulk", "cancelled").Inc()
				return result
			}
			ghubEnrichFetchesTotal.WithLabelValues("bulk", "error").Inc()
			result.err = fmt.Errorf("load user %s: %w", p.Login, err)
			return result
		}
		ghubEnrichFetchesTotal.WithLabelValues("bulk", "ok").Inc()
		result.users[p.Index] = user
	}
	return result
}

// partition splits pending into consecutive batches of at most size.
func partition(pending []Pending, size int) [][]Pending {
	batches := make([][]Pending, 0, (len(pending)+size-1)/size)
	for start := 0; start < len(pending); start += size {
		end := min(start+size, len(pending))
		batches = append(batches, pending[start:end])
	}
	return batches
}
