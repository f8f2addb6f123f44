package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeCache struct {
	mu    sync.Mutex
	items map[string]string
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]string)}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	return v, ok
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
	f.sets++
	return nil
}

const sampleResponse = `{
	"status": "ok",
	"articles": [
		{
			"source": {"name": "Example Times"},
			"author": "A. Reporter",
			"title": "Local orchestra premieres new symphony",
			"description": "The piece was met with a standing ovation.",
			"url": "https://example.com/symphony",
			"urlToImage": "https://example.com/symphony.jpg",
			"publishedAt": "2025-01-10T10:00:00Z"
		},
		{
			"source": {"name": "Example Times"},
			"title": "",
			"url": "https://example.com/untitled"
		}
	]
}`

func TestHeadlinesWithoutKeyServesMock(t *testing.T) {
	svc := NewService("", "https://unused.example.com", nil)

	result, err := svc.Headlines(context.Background(), "technology")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Mock {
		t.Error("expected mock headlines without an API key")
	}
	if len(result.Articles) == 0 {
		t.Error("mock set must not be empty")
	}
	if result.Category != "technology" {
		t.Errorf("category = %q", result.Category)
	}
}

func TestHeadlinesFetchAndCache(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Query().Get("apiKey") != "test-key" {
			t.Errorf("missing api key in query: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("category") != "science" {
			t.Errorf("missing category in query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	cache := newFakeCache()
	svc := NewService("test-key", server.URL, cache)

	result, err := svc.Headlines(context.Background(), "science")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Mock {
		t.Error("live fetch must not be marked mock")
	}
	// article without a title is dropped
	if len(result.Articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(result.Articles))
	}
	if result.Articles[0].Source != "Example Times" {
		t.Errorf("source = %q", result.Articles[0].Source)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}

	// second call is served from cache
	cached, err := svc.Headlines(context.Background(), "science")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cached.Cached {
		t.Error("second call should be served from cache")
	}
	if hits != 1 {
		t.Errorf("upstream hit %d times, want 1", hits)
	}
}

func TestHeadlinesUpstreamFailureFallsBackToMock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	svc := NewService("bad-key", server.URL, newFakeCache())

	result, err := svc.Headlines(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Mock {
		t.Error("expected mock fallback on upstream failure")
	}
}

func TestCacheKey(t *testing.T) {
	if cacheKey("") != "news:headlines:general" {
		t.Errorf("empty category key = %q", cacheKey(""))
	}
	if cacheKey("sports") != "news:headlines:sports" {
		t.Errorf("sports key = %q", cacheKey("sports"))
	}
}
