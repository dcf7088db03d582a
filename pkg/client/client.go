// Package client provides the GitHub REST client used for user search and
// user detail lookups, with request pacing, error classification and
// optional retry.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/Sternrassler/github-user-browser/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for GitHub client operations.
var (
	ghubRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghub_requests_total",
		Help: "Total GitHub requests by endpoint and status",
	}, []string{"endpoint", "status"})

	ghubRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghub_request_duration_seconds",
		Help:    "GitHub request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	ghubErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghub_errors_total",
		Help: "Total GitHub errors by class",
	}, []string{"class"})
)

// Endpoint labels used in metrics and logs.
const (
	endpointSearchUsers = "search_users"
	endpointGetUser     = "get_user"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// MaxPageSize is the largest per_page value the search endpoint accepts.
const MaxPageSize = 100

// Client talks to the GitHub REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	creds      CredentialsProvider
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the REST API, DefaultBaseURL unless testing
	BaseURL string

	// User-Agent header (REQUIRED by GitHub)
	UserAgent string

	// Credentials supplies the username and secret for basic auth
	Credentials CredentialsProvider

	// Tracker receives the X-RateLimit-* headers of every response (optional)
	Tracker *ratelimit.Tracker

	// Pacing
	RequestsPerSecond float64 // <= 0 disables pacing
	Burst             int

	// Timeout per HTTP request
	Timeout time.Duration

	// Retry for server and network errors. One attempt means no retry.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(creds CredentialsProvider, userAgent string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         userAgent,
		Credentials:       creds,
		RequestsPerSecond: 10,
		Burst:             10,
		Timeout:           30 * time.Second,
		Retry:             DefaultRetryConfig(),
	}
}

// New creates a new GitHub client.
func New(cfg Config) (*Client, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credentials provider is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(limit, burst),
		creds:   cfg.Credentials,
		tracker: cfg.Tracker,
		config:  cfg,
		logger:  log.With().Str("component", "github-client").Logger(),
	}, nil
}

// SearchUsersResult is one page of the user search endpoint.
type SearchUsersResult struct {
	TotalCount        int                 `json:"total_count"`
	IncompleteResults bool                `json:"incomplete_results"`
	Items             []model.SummaryUser `json:"items"`
}

// SearchUsers fetches one page of users matching query.
func (c *Client) SearchUsers(ctx context.Context, query string, page, perPage int) (*SearchUsersResult, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1 (got %d)", page)
	}
	if perPage < 1 || perPage > MaxPageSize {
		return nil, fmt.Errorf("per_page must be between 1 and %d (got %d)", MaxPageSize, perPage)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var result SearchUsersResult
	if err := c.get(ctx, endpointSearchUsers, "/search/users", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUser fetches the full profile of login.
func (c *Client) GetUser(ctx context.Context, login string) (*model.User, error) {
	if login == "" {
		return nil, fmt.Errorf("login is required")
	}

	var user model.User
	if err := c.get(ctx, endpointGetUser, "/users/"+url.PathEscape(login), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// get performs a GET request with pacing, auth, classification and retry,
// decoding a successful JSON body into out.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if err := ctx.Err(); err != nil {
		return &APIError{ErrorClass: ErrorClassCancelled, Message: "request not sent", Err: err}
	}

	username, secret := c.creds.Credentials()
	if username == "" || secret == "" {
		return ErrMissingCredentials
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	startTime := time.Now()
	defer func() {
		ghubRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	return retryWithBackoff(ctx, c.config.Retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return &APIError{ErrorClass: ErrorClassCancelled, Message: "request not sent", Err: ctx.Err()}
			}
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.SetBasicAuth(username, secret)
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/vnd.github+json")

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("path", path).
			Msg("Executing GitHub request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errClass := c.classifyError(ctx, nil, nil, err)
			ghubErrorsTotal.WithLabelValues(string(errClass)).Inc()
			ghubRequestsTotal.WithLabelValues(endpoint, string(errClass)).Inc()
			if errClass != ErrorClassCancelled {
				c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			}
			return &APIError{ErrorClass: errClass, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		if c.tracker != nil {
			if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		ghubRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			message := errorMessage(resp, body)
			errClass := c.classifyError(ctx, resp, []byte(message), nil)
			ghubErrorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Str("message", message).
				Msg("GitHub request error")

			return &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Message:    message,
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if ctx.Err() != nil {
				return &APIError{ErrorClass: ErrorClassCancelled, Message: "response aborted", Err: ctx.Err()}
			}
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return nil
	})
}

// classifyError categorizes a failed request for observability and handling.
func (c *Client) classifyError(ctx context.Context, resp *http.Response, message []byte, err error) ErrorClass {
	var errClass ErrorClass
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		errClass = ErrorClassCancelled
	case err != nil:
		errClass = ErrorClassNetwork
	case resp.StatusCode == http.StatusTooManyRequests:
		errClass = ErrorClassRateLimit
	case resp.StatusCode == http.StatusForbidden &&
		(resp.Header.Get("X-RateLimit-Remaining") == "0" ||
			strings.Contains(strings.ToLower(string(message)), "rate limit")):
		errClass = ErrorClassRateLimit
	case resp.StatusCode == http.StatusUnprocessableEntity:
		errClass = ErrorClassValidation
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		errClass = ErrorClassClient
	case resp.StatusCode >= 500:
		errClass = ErrorClassServer
	}

	c.logger.Debug().Str("class", string(errClass)).Msg("Error classified")
	return errClass
}

// errorMessage extracts the "message" field of a GitHub error body,
// falling back to the HTTP status text.
func errorMessage(resp *http.Response, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return resp.Status
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
