package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Sternrassler/github-user-browser/pkg/enrich"
	"github.com/Sternrassler/github-user-browser/pkg/export"
	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/Sternrassler/github-user-browser/pkg/pagination"
	"github.com/Sternrassler/github-user-browser/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultVisibleRows is the number of rows loaded in full after a search.
const DefaultVisibleRows = 11

// Status messages
const (
	StatusSearching      = "Searching GitHub"
	StatusNoResults      = "There are no results to export"
	StatusExportFetching = "Fetching all results data from GitHub.. Please wait, it may take a few minutes"
	StatusDataLoaded     = "Data loaded"

	StatusExportCancelled  = "Export cancelled, no data was persisted"
	StatusExportSuperseded = "Export cancelled, a new search replaced the results"
)

// Export errors
var (
	ErrNothingToExport  = errors.New("no results to export")
	ErrExportCancelled  = errors.New("export cancelled before all users were loaded")
	ErrExportSuperseded = errors.New("export superseded by a new search")
)

var (
	ghubSearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghub_searches_total",
		Help: "Total searches by outcome",
	}, []string{"outcome"})

	ghubSearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghub_search_results",
		Help:    "Number of users returned per search",
		Buckets: []float64{0, 10, 100, 250, 500, 1000},
	})
)

// Phase is the lifecycle state of the current search.
type Phase int

// Search phases
const (
	PhaseIdle Phase = iota
	PhaseBuilding
	PhasePaginating
	PhaseDone
	PhaseFailed
	PhaseRateLimited
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBuilding:
		return "building"
	case PhasePaginating:
		return "paginating"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	case PhaseRateLimited:
		return "rate_limited"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// StatusReporter receives every status message.
type StatusReporter interface {
	ReportStatus(status string)
}

// StatusFunc adapts a function to StatusReporter.
type StatusFunc func(status string)

// ReportStatus implements StatusReporter.
func (f StatusFunc) ReportStatus(status string) {
	f(status)
}

// Remote is the GitHub API used by the orchestrator. *client.Client satisfies it.
type Remote interface {
	SearchClient
	enrich.UserFetcher
}

// Config holds orchestrator configuration
type Config struct {
	// Cooldown is the wait imposed after a limited search
	Cooldown time.Duration
	// VisibleRows is the size of a windowed load
	VisibleRows int
	// Pagination configures the page fan-out
	Pagination pagination.Config
	// Enrich configures detail loading
	Enrich enrich.Config
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		Cooldown:    ratelimit.DefaultCooldown,
		VisibleRows: DefaultVisibleRows,
		Pagination:  pagination.DefaultConfig(),
		Enrich:      enrich.DefaultConfig(),
	}
}

// Orchestrator owns the results of the current search.
type Orchestrator struct {
	remote    Remote
	tracker   *ratelimit.Tracker
	scheduler *enrich.Scheduler
	results   *model.ResultSet
	reporter  StatusReporter
	config    Config
	logger    zerolog.Logger
	now       func() time.Time

	mu        sync.Mutex
	gen       uint64
	genCtx    context.Context
	genCancel context.CancelFunc
	status    string
	phase     Phase
}

// New creates a new orchestrator. reporter may be nil.
func New(remote Remote, cache enrich.Cache, tracker *ratelimit.Tracker, reporter StatusReporter, config Config) *Orchestrator {
	if config.Cooldown <= 0 {
		config.Cooldown = ratelimit.DefaultCooldown
	}
	if config.VisibleRows <= 0 {
		config.VisibleRows = DefaultVisibleRows
	}
	if reporter == nil {
		reporter = StatusFunc(func(string) {})
	}
	logger := log.With().Str("component", "search").Logger()
	if tracker == nil {
		tracker = ratelimit.NewTracker(nil, logger)
	}

	genCtx, genCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		remote:    remote,
		tracker:   tracker,
		scheduler: enrich.New(remote, cache, config.Enrich),
		results:   model.NewResultSet(),
		reporter:  reporter,
		config:    config,
		logger:    logger,
		now:       time.Now,
		genCtx:    genCtx,
		genCancel: genCancel,
	}
}

// Search runs a complete search for criteria and returns the final status.
// Errors never escape: they end the search and become the status.
func (o *Orchestrator) Search(ctx context.Context, criteria model.SearchCriteria) string {
	wait, err := o.tracker.CooldownRemaining(ctx, o.now(), o.config.Cooldown)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Could not read shared rate limit state, using in-memory cooldown")
	}
	if wait > 0 {
		ghubSearchesTotal.WithLabelValues("cooldown").Inc()
		msg := fmt.Sprintf("GitHub search rate exceeded. You need to wait for %d more minutes", ceilMinutes(wait))
		o.setStatus(msg)
		return msg
	}

	gen, genCtx := o.nextGeneration(ctx)
	workCtx, cancelWork := withGeneration(ctx, genCtx)
	defer cancelWork()
	start := o.now()

	if err := o.tracker.Reset(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to clear rate limit flag")
	}
	o.publish(gen, PhaseBuilding, StatusSearching)

	queries := criteria.QueryStrings()
	o.logger.Info().
		Uint64("generation", gen).
		Strs("queries", queries).
		Msg("Search started")

	// a limited page cancels the remaining pages but not the generation
	pageCtx, cancelPages := context.WithCancel(workCtx)
	defer cancelPages()
	fetcher := NewPageFetcher(o.remote, func(error) {
		if !o.isCurrent(gen) {
			return
		}
		if err := o.tracker.MarkLimited(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to store rate limit flag")
		}
		cancelPages()
	})
	paginator := pagination.New(fetcher, o.config.Pagination)

	o.setPhase(gen, PhasePaginating)
	var users []model.SummaryUser
	for _, query := range queries {
		page, err := paginator.FetchAll(pageCtx, func() pagination.PageRequest {
			return pagination.PageRequest{Query: query, PerPage: o.config.Pagination.PageSize}
		})
		if err != nil {
			return o.fail(gen, err)
		}
		users = append(users, page...)
	}

	if workCtx.Err() != nil {
		if !o.isCurrent(gen) {
			o.logger.Debug().Uint64("generation", gen).Msg("Search superseded, discarding results")
			return o.Status()
		}
		return o.fail(gen, fmt.Errorf("search cancelled: %w", workCtx.Err()))
	}

	if !o.results.Replace(gen, users) {
		o.logger.Debug().Uint64("generation", gen).Msg("Search superseded, discarding results")
		return o.Status()
	}

	if err := o.tracker.RecordSearch(ctx, o.now()); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to record search time")
	}
	state, err := o.tracker.GetState(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to read rate limit state")
	}

	ghubSearchResults.Observe(float64(len(users)))
	if state.Limited {
		ghubSearchesTotal.WithLabelValues("trimmed").Inc()
		o.publish(gen, PhaseRateLimited, fmt.Sprintf(
			"Results were trimmed to %d by GitHub's API. Next search should be in at least %d minutes",
			len(users), ceilMinutes(o.config.Cooldown)))
	} else {
		ghubSearchesTotal.WithLabelValues("ok").Inc()
		o.publish(gen, PhaseDone, fmt.Sprintf("Results found: %d", len(users)))
	}

	o.logger.Info().
		Uint64("generation", gen).
		Int("results", len(users)).
		Bool("limited", state.Limited).
		Dur("duration", o.now().Sub(start)).
		Msg("Search finished")

	status := o.Status()
	if err := o.loadVisible(workCtx, gen, 0); err != nil {
		o.logger.Warn().Err(err).Msg("Loading first rows failed")
		o.publish(gen, o.Phase(), err.Error())
		return err.Error()
	}
	return status
}

// LoadVisible loads the users of one screen starting at start. It does
// nothing when there are no results or start is past the end.
func (o *Orchestrator) LoadVisible(ctx context.Context, start int) error {
	ctx, gen, cancel := o.generationContext(ctx)
	defer cancel()
	return o.loadVisible(ctx, gen, start)
}

func (o *Orchestrator) loadVisible(ctx context.Context, gen uint64, start int) error {
	n := o.results.Len()
	if n == 0 || start >= n || start < 0 {
		return nil
	}
	count := min(o.config.VisibleRows, n-start)
	_, err := o.scheduler.LoadWindow(ctx, o.results, gen, start, count)
	return err
}

// LoadAll loads every user of the current results.
func (o *Orchestrator) LoadAll(ctx context.Context) (enrich.Report, error) {
	ctx, gen, cancel := o.generationContext(ctx)
	defer cancel()
	return o.scheduler.LoadAll(ctx, o.results, gen)
}

// Export loads every user and writes the results to dest as CSV. Every
// step is published as a status and the final status is returned. The
// error is nil only when the file was written with every user loaded; a
// load that fails, is cancelled or is overtaken by a new search writes
// nothing.
func (o *Orchestrator) Export(ctx context.Context, dest string) (string, error) {
	ctx, gen, cancel := o.generationContext(ctx)
	defer cancel()

	if o.results.Len() == 0 {
		o.setStatus(StatusNoResults)
		return StatusNoResults, ErrNothingToExport
	}

	o.setStatus(StatusExportFetching)
	report, err := o.scheduler.LoadAll(ctx, o.results, gen)
	if err != nil {
		o.logger.Warn().
			Err(err).
			Int("missing", report.Missing()).
			Msg("Export aborted, not all users could be loaded")
		o.setStatus(err.Error())
		return err.Error(), fmt.Errorf("load users: %w", err)
	}
	if !o.isCurrent(gen) {
		return o.exportSuperseded(gen, dest)
	}
	if ctx.Err() != nil || report.Missing() > 0 {
		o.logger.Warn().
			Int("missing", report.Missing()).
			Str("path", dest).
			Msg("Export cancelled before all users were loaded")
		o.setStatus(StatusExportCancelled)
		return StatusExportCancelled, ErrExportCancelled
	}
	o.setStatus(StatusDataLoaded)

	records := o.results.Snapshot()
	if o.results.Generation() != gen {
		return o.exportSuperseded(gen, dest)
	}

	o.setStatus("Persisting user data in: " + dest)
	if err := export.WriteFile(dest, records); err != nil {
		o.logger.Error().Err(err).Str("path", dest).Msg("Export failed")
		msg := "Error persisting data in " + dest
		o.setStatus(msg)
		return msg, err
	}

	msg := "Data persisted in: " + dest
	o.setStatus(msg)
	o.logger.Info().Str("path", dest).Int("rows", len(records)).Msg("Results exported")
	return msg, nil
}

// exportSuperseded reports an export whose results were replaced by a new
// search. The status of the new search is left in place.
func (o *Orchestrator) exportSuperseded(gen uint64, dest string) (string, error) {
	o.logger.Info().
		Uint64("generation", gen).
		Str("path", dest).
		Msg("Export dropped, results replaced by a new search")
	o.reporter.ReportStatus(StatusExportSuperseded)
	return StatusExportSuperseded, ErrExportSuperseded
}

// Status returns the last published status.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Phase returns the phase of the current search.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Results returns a snapshot of the current results.
func (o *Orchestrator) Results() []model.Record {
	return o.results.Snapshot()
}

// ResultSet returns the live result set.
func (o *Orchestrator) ResultSet() *model.ResultSet {
	return o.results
}

// Close cancels all outstanding work.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.genCancel()
}

// nextGeneration cancels the running generation and starts a new one with
// empty results. The generation outlives ctx; it ends with the next search.
func (o *Orchestrator) nextGeneration(ctx context.Context) (uint64, context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.genCancel()
	o.gen = o.results.Clear()
	o.genCtx, o.genCancel = context.WithCancel(context.WithoutCancel(ctx))
	o.phase = PhaseIdle
	return o.gen, o.genCtx
}

// generationContext derives from ctx a context that is also cancelled when
// the current generation ends.
func (o *Orchestrator) generationContext(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	o.mu.Lock()
	genCtx, gen := o.genCtx, o.gen
	o.mu.Unlock()

	ctx, cancel := withGeneration(ctx, genCtx)
	return ctx, gen, cancel
}

// withGeneration returns a child of ctx that is cancelled when genCtx is.
func withGeneration(ctx, genCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(genCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (o *Orchestrator) isCurrent(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.gen
}

func (o *Orchestrator) fail(gen uint64, err error) string {
	o.mu.Lock()
	current := gen == o.gen
	if current {
		o.genCancel()
	}
	o.mu.Unlock()

	if !current {
		return o.Status()
	}

	ghubSearchesTotal.WithLabelValues("failed").Inc()
	o.logger.Error().Err(err).Uint64("generation", gen).Msg("Search failed")
	o.publish(gen, PhaseFailed, err.Error())
	return err.Error()
}

// publish sets phase and status if gen is still current.
func (o *Orchestrator) publish(gen uint64, phase Phase, status string) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.phase = phase
	o.status = status
	o.mu.Unlock()

	o.reporter.ReportStatus(status)
}

func (o *Orchestrator) setPhase(gen uint64, phase Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.gen {
		o.phase = phase
	}
}

func (o *Orchestrator) setStatus(status string) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()

	o.reporter.ReportStatus(status)
}

// ceilMinutes rounds d up to whole minutes.
func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
