package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/github-user-browser/pkg/cache"
	"github.com/Sternrassler/github-user-browser/pkg/client"
	"github.com/Sternrassler/github-user-browser/pkg/config"
	"github.com/Sternrassler/github-user-browser/pkg/enrich"
	"github.com/Sternrassler/github-user-browser/pkg/logging"
	"github.com/Sternrassler/github-user-browser/pkg/pagination"
	"github.com/Sternrassler/github-user-browser/pkg/ratelimit"
	"github.com/Sternrassler/github-user-browser/pkg/search"
	"github.com/redis/go-redis/v9"
)

// app wires the components of one ghbrowse process.
type app struct {
	redis   *redis.Client
	tracker *ratelimit.Tracker
	cache   *cache.Manager
	client  *client.Client
	orch    *search.Orchestrator
}

// newApp builds every component from cfg. Status messages go to reporter.
func newApp(ctx context.Context, cfg config.Config, reporter search.StatusReporter) (*app, error) {
	a := &app{}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		logging.NewLogger("ghbrowse").Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	}

	a.tracker = ratelimit.NewTracker(a.redis, logging.NewLogger("ratelimit"))
	a.cache = cache.NewManager(a.redis)

	clientCfg := client.DefaultConfig(
		client.StaticCredentials{Username: cfg.GitHub.Username, Secret: cfg.GitHub.Token},
		cfg.GitHub.UserAgent,
	)
	clientCfg.BaseURL = cfg.GitHub.BaseURL
	clientCfg.Tracker = a.tracker
	clientCfg.RequestsPerSecond = cfg.GitHub.RequestsPerSecond
	clientCfg.Burst = cfg.GitHub.Burst
	clientCfg.Timeout = cfg.GitHub.Timeout
	clientCfg.Retry.MaxAttempts = cfg.GitHub.MaxAttempts

	c, err := client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create github client: %w", err)
	}
	a.client = c

	a.orch = search.New(a.client, a.cache, a.tracker, reporter, search.Config{
		Cooldown:    cfg.Search.Cooldown,
		VisibleRows: cfg.Search.VisibleRows,
		Pagination: pagination.Config{
			MaxConcurrency: cfg.Search.MaxConcurrency,
			PageSize:       cfg.Search.PageSize,
		},
		Enrich: enrich.Config{
			BatchSize:  cfg.Search.BatchSize,
			MaxWorkers: cfg.Search.MaxWorkers,
		},
	})

	return a, nil
}

// Close stops outstanding work and releases the Redis connection.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
