package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/logger"
)

const (
	requestTimeout = 10 * time.Second
	cacheTTL       = 30 * time.Minute
)

// Article is one headline returned to practice readers
type Article struct {
	Source      string `json:"source"`
	Author      string `json:"author,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Headlines is a fetched batch with its origin marked, so clients can
// tell mock data from live data.
type Headlines struct {
	Articles []Article `json:"articles"`
	Category string    `json:"category,omitempty"`
	Mock     bool      `json:"mock"`
	Cached   bool      `json:"cached"`
}

// Cacher is the TTL cache surface the service needs
type Cacher interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Service fetches headlines from an external news API. Without an API
// key it serves a fixed mock set so the reading feature still works in
// development.
type Service struct {
	httpClient *http.Client
	cache      Cacher
	apiKey     string
	apiURL     string
	log        *logger.Logger
}

func NewService(apiKey, apiURL string, cache Cacher) *Service {
	return &Service{
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
		apiKey:     apiKey,
		apiURL:     apiURL,
		log:        logger.Default().WithComponent("news"),
	}
}

// apiResponse is the raw headline API response shape
type apiResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func cacheKey(category string) string {
	if category == "" {
		category = "general"
	}
	return "news:headlines:" + category
}

// Headlines returns cached or freshly fetched headlines for a category
func (s *Service) Headlines(ctx context.Context, category string) (*Headlines, error) {
	if s.apiKey == "" {
		return mockHeadlines(category), nil
	}

	key := cacheKey(category)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var cached Headlines
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				cached.Cached = true
				return &cached, nil
			}
		}
	}

	result, err := apperrors.RetryWithResult(ctx, apperrors.NewsRetryConfig(), func(ctx context.Context) (*Headlines, error) {
		return s.fetch(ctx, category)
	})
	if err != nil {
		s.log.Warn(ctx, "headline fetch failed, serving mock set", map[string]interface{}{
			"category": category,
			"error":    err.Error(),
		})
		return mockHeadlines(category), nil
	}

	if s.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			s.cache.Set(ctx, key, string(raw), cacheTTL)
		}
	}

	return result, nil
}

func (s *Service) fetch(ctx context.Context, category string) (*Headlines, error) {
	endpoint, err := url.Parse(s.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid news API URL: %w", err)
	}

	q := endpoint.Query()
	q.Set("apiKey", s.apiKey)
	q.Set("pageSize", "20")
	if category != "" {
		q.Set("category", category)
	} else {
		q.Set("country", "us")
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if apperrors.HTTPRetryableStatus(resp.StatusCode) {
			return nil, apperrors.NewsError(fmt.Sprintf("news API returned %d", resp.StatusCode))
		}
		// auth and quota rejections do not clear on retry
		return nil, fmt.Errorf("news API rejected request with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Status != "ok" {
		return nil, apperrors.NewsError("news API reported status " + parsed.Status)
	}

	out := &Headlines{
		Articles: make([]Article, 0, len(parsed.Articles)),
		Category: category,
	}
	for _, a := range parsed.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}
		out.Articles = append(out.Articles, Article{
			Source:      a.Source.Name,
			Author:      a.Author,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			PublishedAt: a.PublishedAt,
		})
	}

	return out, nil
}

// mockHeadlines returns a fixed practice set used when no API key is
// configured or the upstream is down.
func mockHeadlines(category string) *Headlines {
	return &Headlines{
		Articles: []Article{
			{
				Source:      "FollowRead Sample",
				Title:       "Scientists map the deepest known coral reef",
				Description: "Researchers completed a survey of a reef system thriving far below the sunlight zone.",
				URL:         "https://example.com/news/coral-reef",
				PublishedAt: "2025-01-15T08:00:00Z",
			},
			{
				Source:      "FollowRead Sample",
				Title:       "City libraries report record borrowing of language courses",
				Description: "Demand for self-study material has doubled over the past two years.",
				URL:         "https://example.com/news/language-learning",
				PublishedAt: "2025-01-14T12:30:00Z",
			},
			{
				Source:      "FollowRead Sample",
				Title:       "New rail link cuts cross-border travel time in half",
				Description: "The high-speed line opened to passengers after six years of construction.",
				URL:         "https://example.com/news/rail-link",
				PublishedAt: "2025-01-13T09:15:00Z",
			},
		},
		Category: category,
		Mock:     true,
	}
}
