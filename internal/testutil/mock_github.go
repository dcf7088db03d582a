// Package testutil provides testing utilities for the GitHub user browser.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/github-user-browser/pkg/model"
)

// DefaultMaxResults mirrors GitHub's cap on retrievable search results.
const DefaultMaxResults = 1000

// MockGitHub is a configurable mock of the GitHub search and user endpoints.
type MockGitHub struct {
	server *httptest.Server

	mu         sync.RWMutex
	users      []model.User
	totalCount int // reported total_count, 0 means len(users)
	maxResults int
	pageStatus map[int]int
	pageDelay  map[int]time.Duration
	userStatus map[string]int
	userDelay  time.Duration
	username   string
	secret     string

	// Tracking
	searchRequests int
	pageRequests   map[int]int
	userRequests   map[string]int
	lastHeader     http.Header
}

// NewMockGitHub creates a mock server serving the given users in order.
func NewMockGitHub(users []model.User) *MockGitHub {
	m := &MockGitHub{
		users:        users,
		maxResults:   DefaultMaxResults,
		pageStatus:   make(map[int]int),
		pageDelay:    make(map[int]time.Duration),
		userStatus:   make(map[string]int),
		pageRequests: make(map[int]int),
		userRequests: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search/users", m.handleSearch)
	mux.HandleFunc("/users/", m.handleUser)
	m.server = httptest.NewServer(mux)

	return m
}

// GenerateUsers returns n users with ids starting at 1.
func GenerateUsers(n int) []model.User {
	users := make([]model.User, n)
	for i := range users {
		id := int64(i + 1)
		hireable := i%2 == 0
		users[i] = model.User{
			ID:          id,
			Login:       fmt.Sprintf("user%d", id),
			Name:        fmt.Sprintf("User %d", id),
			Email:       fmt.Sprintf("user%d@example.com", id),
			Company:     "Example Ltd",
			Location:    "Bulgaria",
			HTMLURL:     fmt.Sprintf("https://github.com/user%d", id),
			URL:         fmt.Sprintf("https://api.github.com/users/user%d", id),
			Type:        "User",
			Hireable:    &hireable,
			PublicRepos: i % 7,
		}
	}
	return users
}

// URL returns the mock server URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// SetUsers replaces the served users.
func (m *MockGitHub) SetUsers(users []model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = users
}

// SetTotalCount overrides the total_count reported by the search endpoint.
func (m *MockGitHub) SetTotalCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalCount = n
}

// SetMaxResults changes the cap past which pages answer 422.
func (m *MockGitHub) SetMaxResults(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxResults = n
}

// SetPageStatus makes the given search page answer with status.
func (m *MockGitHub) SetPageStatus(page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageStatus[page] = status
}

// SetPageDelay delays the given search page.
func (m *MockGitHub) SetPageDelay(page int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageDelay[page] = d
}

// SetUserStatus makes the detail endpoint of login answer with status.
func (m *MockGitHub) SetUserStatus(login string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userStatus[login] = status
}

// SetUserDelay delays every detail response.
func (m *MockGitHub) SetUserDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userDelay = d
}

// RequireAuth makes every endpoint demand the given basic auth pair.
func (m *MockGitHub) RequireAuth(username, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username = username
	m.secret = secret
}

// SearchRequests returns the number of search requests served.
func (m *MockGitHub) SearchRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchRequests
}

// PageRequests returns how often page was requested.
func (m *MockGitHub) PageRequests(page int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageRequests[page]
}

// UserRequests returns how often the detail of login was requested.
func (m *MockGitHub) UserRequests(login string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userRequests[login]
}

// TotalUserRequests returns the number of detail requests served.
func (m *MockGitHub) TotalUserRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.userRequests {
		total += n
	}
	return total
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockGitHub) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// Reset clears all tracking counters.
func (m *MockGitHub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchRequests = 0
	m.pageRequests = make(map[int]int)
	m.userRequests = make(map[string]int)
	m.lastHeader = nil
}

func (m *MockGitHub) authorized(r *http.Request) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == m.username && pass == m.secret
}

func (m *MockGitHub) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 30
	}

	m.mu.Lock()
	m.searchRequests++
	m.pageRequests[page]++
	m.lastHeader = r.Header.Clone()
	status := m.pageStatus[page]
	delay := m.pageDelay[page]
	maxResults := m.maxResults
	total := m.totalCount
	if total == 0 {
		total = len(m.users)
	}
	m.mu.Unlock()

	writeRateLimitHeaders(w)

	if !m.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		writeError(w, status, fmt.Sprintf("page %d failed", page))
		return
	}

	start := (page - 1) * perPage
	if maxResults > 0 && start >= maxResults {
		writeError(w, http.StatusUnprocessableEntity, "Only the first 1000 search results are available")
		return
	}

	m.mu.RLock()
	items := make([]model.SummaryUser, 0, perPage)
	for i := start; i < start+perPage && i < len(m.users); i++ {
		items = append(items, m.users[i].Summary())
	}
	m.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_count":        total,
		"incomplete_results": false,
		"items":              items,
	})
}

func (m *MockGitHub) handleUser(w http.ResponseWriter, r *http.Request) {
	login := strings.TrimPrefix(r.URL.Path, "/users/")

	m.mu.Lock()
	m.userRequests[login]++
	m.lastHeader = r.Header.Clone()
	status := m.userStatus[login]
	delay := m.userDelay
	m.mu.Unlock()

	writeRateLimitHeaders(w)

	if !m.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		writeError(w, status, fmt.Sprintf("user %s failed", login))
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Login == login {
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Not Found")
}

func writeRateLimitHeaders(w http.ResponseWriter) {
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "4999")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"message":           message,
		"documentation_url": "https://docs.github.com/rest",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
