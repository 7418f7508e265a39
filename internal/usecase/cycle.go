package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tensionmonitor/internal/domain"
	"tensionmonitor/internal/ports"
	"tensionmonitor/internal/tension"
)

// articleInterval is the token-bucket refill rate between article
// classifications, bounding the request rate against the gateway.
const articleInterval = 500 * time.Millisecond

// AlertDispatcher consumes queued critical events after the batch.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, event domain.NewsEvent) error
}

// CycleDeps wires all driven adapters into the ingestion cycle.
type CycleDeps struct {
	Source     ports.NewsSource
	Repository ports.EventRepository
	Classifier ports.Classifier
	Translator ports.Translator
	Dispatcher AlertDispatcher
	Logger     *slog.Logger
}

// Cycle implements the single-flight ingestion workflow: fetch, dedup,
// classify, score, persist, alert. The running flag and the in-cycle tension
// accumulator are the only mutable state, and both are owned here.
type Cycle struct {
	source     ports.NewsSource
	repository ports.EventRepository
	classifier ports.Classifier
	translator ports.Translator
	dispatcher AlertDispatcher
	logger     *slog.Logger

	running atomic.Bool
	limiter *rate.Limiter
}

// NewCycle constructs the orchestration component.
func NewCycle(deps CycleDeps) *Cycle {
	return &Cycle{
		source:     deps.Source,
		repository: deps.Repository,
		classifier: deps.Classifier,
		translator: deps.Translator,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		limiter:    rate.NewLimiter(rate.Every(articleInterval), 1),
	}
}

// Run executes one ingestion cycle. A trigger arriving while a cycle is in
// flight is dropped with a warning, never queued. The guard is released on
// every exit path.
func (c *Cycle) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		c.warn("cycle already running, trigger dropped")
		return nil
	}
	defer c.running.Store(false)

	started := time.Now()
	articles := c.source.FetchLatest(ctx)
	if len(articles) == 0 {
		c.info("no articles fetched, cycle skipped")
		return nil
	}

	value := c.startingTension(ctx)
	c.info("cycle started", "articles", len(articles), "tension", value)

	var (
		queued   []domain.NewsEvent
		inserted int
	)

	for _, article := range articles {
		// Spacing is enforced before every article so failed or skipped
		// inserts cannot collapse the interval between gateway calls. The
		// bucket starts full, so the first article proceeds immediately.
		if err := c.limiter.Wait(ctx); err != nil {
			c.warn("cycle interrupted", "error", err)
			break
		}

		event, ok, err := c.processArticle(ctx, article, &value)
		if err != nil {
			c.warn("article failed", "url", article.URL, "error", err)
			continue
		}
		if !ok {
			continue
		}
		inserted++

		if c.isCritical(event) {
			queued = append(queued, event)
		}
	}

	sample := domain.TensionSample{
		Value: value,
		Notes: fmt.Sprintf("cycle processed %d articles, %d new events", len(articles), inserted),
	}
	if err := c.repository.InsertTensionSample(ctx, sample); err != nil {
		c.warn("persist tension sample failed", "error", err)
	}

	for _, event := range queued {
		if err := c.dispatcher.Dispatch(ctx, event); err != nil {
			c.warn("alert dispatch failed", "event_id", event.ID, "url", event.Article.URL, "error", err)
		}
	}

	level := tension.Classify(value)
	c.info("cycle done",
		"duration", time.Since(started).Round(time.Millisecond),
		"new_events", inserted,
		"alerts", len(queued),
		"tension", value,
		"level", level.Name)

	return nil
}

// processArticle runs the per-article pipeline. It returns ok=false for a
// benign skip (already stored) and a non-nil error for anything that should
// be logged without aborting the cycle.
func (c *Cycle) processArticle(ctx context.Context, article domain.Article, value *float64) (domain.NewsEvent, bool, error) {
	exists, err := c.repository.EventExists(ctx, article.URL)
	if err != nil {
		// The insert's uniqueness constraint is authoritative; a failed
		// pre-check is logged and the article proceeds.
		c.warn("dedup pre-check failed", "url", article.URL, "error", err)
	}
	if exists {
		return domain.NewsEvent{}, false, nil
	}

	classification, err := c.classifier.Classify(ctx, article.Title, article.Description)
	if err != nil {
		c.warn("classification failed, using fallback", "url", article.URL, "error", err)
		classification = domain.FallbackClassification(article.Title)
	}

	titles, err := c.translator.TranslateTitle(ctx, article.Title)
	if err != nil {
		c.warn("translation failed, using original title", "url", article.URL, "error", err)
		titles = fallbackTitles(article.Title)
	}

	event := domain.NewsEvent{
		Article:        article,
		Classification: classification,
		TensionDelta:   tension.Delta(classification.Category, classification.ImpactScore, article.Title),
		Titles:         titles,
	}

	id, err := c.repository.InsertEvent(ctx, event)
	if errors.Is(err, ports.ErrDuplicateEvent) {
		return domain.NewsEvent{}, false, nil
	}
	if err != nil {
		return domain.NewsEvent{}, false, fmt.Errorf("insert event: %w", err)
	}
	event.ID = id

	*value = tension.Apply(*value, event.TensionDelta)

	return event, true, nil
}

// isCritical applies every alert signal; any one of them is sufficient.
func (c *Cycle) isCritical(event domain.NewsEvent) bool {
	return event.Classification.IsCritical ||
		event.Classification.ImpactScore >= 8 ||
		tension.ShouldAlert(event.Classification.ImpactScore, event.Article.Title, event.Article.Description)
}

// startingTension seeds the accumulator from the latest persisted sample so
// restarts resume the series.
func (c *Cycle) startingTension(ctx context.Context) float64 {
	sample, err := c.repository.LatestTensionSample(ctx)
	if err != nil {
		c.warn("load latest tension failed, starting at 50", "error", err)
		return 50
	}
	return sample.Value
}

func fallbackTitles(title string) map[string]string {
	titles := make(map[string]string, len(domain.TranslationLanguages))
	for _, lang := range domain.TranslationLanguages {
		titles[lang] = title
	}
	return titles
}

func (c *Cycle) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Cycle) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
