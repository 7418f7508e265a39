package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tensionmonitor/internal/domain"
	"tensionmonitor/internal/ports"
)

const (
	defaultBaseURL = "https://newsapi.org"
	pageSize       = 10
	lookback       = 24 * time.Hour
)

// Client queries the NewsAPI "everything" endpoint for one keyword at a time.
// It is the primary provider of the fetcher.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
}

var _ ports.SearchProvider = (*Client)(nil)

// NewClient builds a reusable client; baseURL falls back to the public API.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Name identifies the provider in logs.
func (c *Client) Name() string {
	return "newsapi"
}

type searchResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search returns up to pageSize articles published within the lookback window.
func (c *Client) Search(ctx context.Context, keyword string) ([]domain.Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("newsapi: api key not configured")
	}

	query := url.Values{}
	query.Set("q", keyword)
	query.Set("language", "en")
	query.Set("sortBy", "publishedAt")
	query.Set("pageSize", fmt.Sprint(pageSize))
	query.Set("from", c.now().UTC().Add(-lookback).Format(time.RFC3339))

	endpoint := c.baseURL + "/v2/everything?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned %s for %q", resp.Status, keyword)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	articles := make([]domain.Article, 0, len(payload.Articles))
	for _, item := range payload.Articles {
		publishedAt, _ := time.Parse(time.RFC3339, item.PublishedAt)
		articles = append(articles, domain.Article{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.URL,
			Source:      item.Source.Name,
			PublishedAt: publishedAt,
		})
	}

	return articles, nil
}
