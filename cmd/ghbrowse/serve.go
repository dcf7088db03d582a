package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/github-user-browser/pkg/enrich"
	"github.com/Sternrassler/github-user-browser/pkg/logging"
	"github.com/Sternrassler/github-user-browser/pkg/metrics"
	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/Sternrassler/github-user-browser/pkg/search"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve searches over HTTP",
	Long: `Serve exposes one search session over HTTP:

  GET  /health                  liveness
  GET  /metrics                 Prometheus metrics
  POST /search                  run a search, body {"location", "language", "min_repos", "contributed_in"}
  GET  /status                  status message, phase and result count
  GET  /results?start=&count=   a range of results
  POST /load?start=             load one screen of profiles starting at start
  POST /load?all=true           load every profile
  POST /export                  write all results as CSV, body {"path"}`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := logging.NewLogger("server")

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	reporter := search.StatusFunc(func(status string) {
		logger.Info().Str("status", status).Msg("Status")
	})
	a, err := newApp(ctx, cfg, reporter)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(a.orch, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("user_agent", cfg.GitHub.UserAgent).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// session is the part of the orchestrator the HTTP front-end drives.
type session interface {
	Search(ctx context.Context, criteria model.SearchCriteria) string
	LoadVisible(ctx context.Context, start int) error
	LoadAll(ctx context.Context) (enrich.Report, error)
	Export(ctx context.Context, dest string) (string, error)
	Status() string
	Phase() search.Phase
	Results() []model.Record
}

type server struct {
	session session
	logger  zerolog.Logger
}

func newServer(s session, logger zerolog.Logger) *server {
	return &server{session: s, logger: logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /results", s.handleResults)
	mux.HandleFunc("POST /load", s.handleLoad)
	mux.HandleFunc("POST /export", s.handleExport)
	return mux
}

type searchRequest struct {
	Location      string `json:"location"`
	Language      string `json:"language"`
	MinRepos      *int   `json:"min_repos"`
	ContributedIn string `json:"contributed_in"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Phase   string `json:"phase"`
	Results int    `json:"results"`
}

type resultsResponse struct {
	Start   int         `json:"start"`
	Total   int         `json:"total"`
	Results []resultRow `json:"results"`
}

type loadResponse struct {
	Requested int    `json:"requested"`
	Loaded    int    `json:"loaded"`
	Failed    int    `json:"failed"`
	Workers   int    `json:"workers"`
	Error     string `json:"error,omitempty"`
}

type exportRequest struct {
	Path string `json:"path"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid search request: %v", err))
		return
	}

	// the search belongs to the session, not to this request
	ctx := context.WithoutCancel(r.Context())
	s.session.Search(ctx, model.SearchCriteria{
		Location:      req.Location,
		Language:      req.Language,
		MinRepos:      req.MinRepos,
		ContributedIn: req.ContributedIn,
	})
	s.handleStatus(w, r)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, http.StatusOK)
}

func (s *server) writeStatus(w http.ResponseWriter, code int) {
	writeJSON(w, code, statusResponse{
		Status:  s.session.Status(),
		Phase:   s.session.Phase().String(),
		Results: len(s.session.Results()),
	})
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	records := s.session.Results()

	start, err := intParam(r, "start", 0)
	if err != nil || start < 0 {
		writeError(w, http.StatusBadRequest, "start must be a non-negative integer")
		return
	}
	count, err := intParam(r, "count", len(records))
	if err != nil || count < 0 {
		writeError(w, http.StatusBadRequest, "count must be a non-negative integer")
		return
	}

	start = min(start, len(records))
	end := min(start+count, len(records))
	rows := make([]resultRow, 0, end-start)
	for _, rec := range records[start:end] {
		rows = append(rows, toRow(rec))
	}

	writeJSON(w, http.StatusOK, resultsResponse{Start: start, Total: len(records), Results: rows})
}

func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		report, err := s.session.LoadAll(r.Context())
		resp := loadResponse{
			Requested: report.Requested,
			Loaded:    report.Loaded,
			Failed:    report.Failed,
			Workers:   report.Workers,
		}
		status := http.StatusOK
		if err != nil {
			resp.Error = err.Error()
			status = http.StatusBadGateway
		}
		writeJSON(w, status, resp)
		return
	}

	start, err := intParam(r, "start", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an integer")
		return
	}
	if err := s.session.LoadVisible(r.Context(), start); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, enrich.ErrOutOfRange) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	s.handleStatus(w, r)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "export request needs a path")
		return
	}

	_, err := s.session.Export(context.WithoutCancel(r.Context()), req.Path)
	switch {
	case err == nil:
		s.handleStatus(w, r)
	case errors.Is(err, search.ErrNothingToExport), errors.Is(err, search.ErrExportSuperseded),
		errors.Is(err, search.ErrExportCancelled):
		s.writeStatus(w, http.StatusConflict)
	default:
		s.logger.Warn().Err(err).Str("path", req.Path).Msg("Export failed")
		s.writeStatus(w, http.StatusInternalServerError)
	}
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
