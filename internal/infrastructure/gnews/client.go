package gnews

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
	defaultBaseURL = "https://gnews.io"
	maxResults     = 10
	lookback       = 24 * time.Hour
)

// Client queries the GNews search endpoint. It serves as the fallback
// provider when the primary returns nothing for a keyword.
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
	return "gnews"
}

type searchResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search returns up to maxResults recent articles for the keyword.
func (c *Client) Search(ctx context.Context, keyword string) ([]domain.Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gnews: api key not configured")
	}

	query := url.Values{}
	query.Set("q", keyword)
	query.Set("lang", "en")
	query.Set("sortby", "publishedAt")
	query.Set("max", fmt.Sprint(maxResults))
	query.Set("from", c.now().UTC().Add(-lookback).Format(time.RFC3339))
	query.Set("apikey", c.apiKey)

	endpoint := c.baseURL + "/api/v4/search?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gnews returned %s for %q", resp.Status, keyword)
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
