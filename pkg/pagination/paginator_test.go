package pagination

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves available users in pages of the requested size.
type fakeFetcher struct {
	mu        sync.Mutex
	total     int // reported total_count
	available int // users actually served
	requests  []PageRequest
	limitAt   int // page from which fetches come back empty; 0 disables
	onLimit   func()
	failAt    int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, req PageRequest) (PageResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if ctx.Err() != nil {
		return PageResult{Truncated: true}, nil
	}
	if f.failAt != 0 && req.Page == f.failAt {
		return PageResult{}, errors.New("boom")
	}
	if f.limitAt != 0 && req.Page >= f.limitAt {
		if f.onLimit != nil {
			f.onLimit()
		}
		return PageResult{Truncated: true}, nil
	}

	start := (req.Page - 1) * req.PerPage
	end := start + req.PerPage
	if end > f.available {
		end = f.available
	}
	var items []model.SummaryUser
	for i := start; i < end; i++ {
		items = append(items, model.SummaryUser{ID: int64(i + 1), Login: fmt.Sprintf("user%d", i+1)})
	}
	return PageResult{TotalCount: f.total, Items: items}, nil
}

func (f *fakeFetcher) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pages []int
	for _, r := range f.requests {
		pages = append(pages, r.Page)
	}
	sort.Ints(pages)
	return pages
}

func query() PageRequest {
	return PageRequest{Query: " location:bulgaria"}
}

func TestFetchAll_SinglePage(t *testing.T) {
	f := &fakeFetcher{total: 42, available: 42}
	p := New(f, DefaultConfig())

	users, err := p.FetchAll(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, users, 42)
	assert.Equal(t, []int{1}, f.pages())
}

func TestFetchAll_EmptyResult(t *testing.T) {
	f := &fakeFetcher{}
	p := New(f, DefaultConfig())

	users, err := p.FetchAll(context.Background(), query)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, []int{1}, f.pages())
}

func TestFetchAll_AllPagesInOrder(t *testing.T) {
	f := &fakeFetcher{total: 250, available: 250}
	p := New(f, Config{MaxConcurrency: 2, PageSize: 100})

	users, err := p.FetchAll(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, users, 250)
	assert.Equal(t, []int{1, 2, 3}, f.pages())

	for i, u := range users {
		assert.Equal(t, int64(i+1), u.ID, "position %d", i)
	}
}

func TestFetchAll_EachPageHasItsOwnRequest(t *testing.T) {
	f := &fakeFetcher{total: 30, available: 30}
	p := New(f, Config{PageSize: 10})

	_, err := p.FetchAll(context.Background(), query)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.requests, 3)
	for _, r := range f.requests {
		assert.Equal(t, " location:bulgaria", r.Query)
		assert.Equal(t, 10, r.PerPage)
	}
}

func TestFetchAll_RequestPerPageWins(t *testing.T) {
	f := &fakeFetcher{total: 9, available: 9}
	p := New(f, DefaultConfig())

	users, err := p.FetchAll(context.Background(), func() PageRequest {
		return PageRequest{Query: "q", PerPage: 3}
	})
	require.NoError(t, err)
	assert.Len(t, users, 9)
	assert.Equal(t, []int{1, 2, 3}, f.pages())
}

func TestFetchAll_LimitedAfterFirstPageKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeFetcher{total: 500, available: 500, limitAt: 2, onLimit: cancel}
	p := New(f, Config{MaxConcurrency: 1, PageSize: 100})

	users, err := p.FetchAll(ctx, query)
	require.NoError(t, err)
	assert.Len(t, users, 100)
	assert.Equal(t, int64(1), users[0].ID)
}

func TestFetchAll_CapBelowTotal(t *testing.T) {
	// more matches reported than the source will serve
	f := &fakeFetcher{total: 1500, available: 1000, limitAt: 11}
	p := New(f, DefaultConfig())

	users, err := p.FetchAll(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, users, 1000)
	assert.Len(t, f.pages(), 15)
}

func TestFetchAll_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{total: 300, available: 300}
	p := New(f, DefaultConfig())

	users, err := p.FetchAll(ctx, query)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, []int{1}, f.pages())
}

func TestFetchAll_ErrorFailsQuery(t *testing.T) {
	f := &fakeFetcher{total: 300, available: 300, failAt: 2}
	p := New(f, DefaultConfig())

	users, err := p.FetchAll(context.Background(), query)
	require.Error(t, err)
	assert.Nil(t, users)
	assert.Contains(t, err.Error(), "fetch page 2")
}

func TestFetchAll_FirstPageError(t *testing.T) {
	f := &fakeFetcher{failAt: 1}
	p := New(f, DefaultConfig())

	_, err := p.FetchAll(context.Background(), query)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch page 1")
}

func TestNew_NormalizesConfig(t *testing.T) {
	p := New(&fakeFetcher{}, Config{MaxConcurrency: -3})
	assert.Equal(t, 0, p.config.MaxConcurrency)
	assert.Equal(t, DefaultPageSize, p.config.PageSize)
}
