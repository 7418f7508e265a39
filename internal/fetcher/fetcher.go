package fetcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"tensionmonitor/internal/domain"
	"tensionmonitor/internal/htmltext"
	"tensionmonitor/internal/ports"
)

// DefaultKeywords are the topical queries sent to every provider each cycle.
var DefaultKeywords = []string{
	"military conflict",
	"nuclear threat",
	"diplomatic crisis",
	"economic sanctions",
	"cyber attack infrastructure",
	"war escalation",
}

const (
	// providerTimeout bounds each provider call.
	providerTimeout = 10 * time.Second
	// keywordInterval is the token-bucket refill rate between keyword queries.
	keywordInterval = 300 * time.Millisecond
)

// Fetcher implements ports.NewsSource over a ranked provider list. For each
// keyword it walks the providers in order until one returns articles, then
// merges every keyword's results into a single URL-deduplicated batch.
type Fetcher struct {
	providers []ports.SearchProvider
	keywords  []string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ ports.NewsSource = (*Fetcher)(nil)

// New wires the ranked provider list; the first entry is the primary.
func New(providers []ports.SearchProvider, keywords []string, logger *slog.Logger) *Fetcher {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	return &Fetcher{
		providers: providers,
		keywords:  keywords,
		limiter:   rate.NewLimiter(rate.Every(keywordInterval), 1),
		logger:    logger,
	}
}

// FetchLatest runs one keyword sweep. A provider failure for one keyword is
// logged and skipped; a fully failed sweep is an empty batch, never an error.
func (f *Fetcher) FetchLatest(ctx context.Context) []domain.Article {
	seen := map[string]struct{}{}
	var batch []domain.Article

	for _, keyword := range f.keywords {
		if err := f.limiter.Wait(ctx); err != nil {
			f.warn("fetch aborted", "error", err)
			return batch
		}

		articles := f.searchKeyword(ctx, keyword)
		kept := 0
		for _, article := range articles {
			if article.Title == "" || article.URL == "" {
				continue
			}
			if _, dup := seen[article.URL]; dup {
				continue
			}
			seen[article.URL] = struct{}{}

			article.Title = htmltext.Flatten(article.Title)
			article.Description = htmltext.Flatten(article.Description)
			batch = append(batch, article)
			kept++
		}

		f.debug("keyword done", "keyword", keyword, "fetched", len(articles), "kept", kept)
	}

	f.debug("fetch done", "articles", len(batch))
	return batch
}

// searchKeyword tries providers in rank order until one yields results.
func (f *Fetcher) searchKeyword(ctx context.Context, keyword string) []domain.Article {
	for _, provider := range f.providers {
		callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		articles, err := provider.Search(callCtx, keyword)
		cancel()

		if err != nil {
			f.warn("provider failed", "provider", provider.Name(), "keyword", keyword, "error", err)
			continue
		}
		if len(articles) == 0 {
			f.debug("provider empty", "provider", provider.Name(), "keyword", keyword)
			continue
		}

		return articles
	}

	return nil
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *Fetcher) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
