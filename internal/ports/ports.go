package ports

import (
	"context"
	"errors"
	"time"

	"tensionmonitor/internal/domain"
)

// ErrDuplicateEvent marks an InsertEvent that lost the race on the url
// uniqueness constraint. Callers treat it as "already processed".
var ErrDuplicateEvent = errors.New("event url already stored")

// SearchProvider queries one external news search API for a single keyword.
// Implementations return an empty slice for "no results"; transport errors
// surface as errors so the caller can fall back to another provider.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, keyword string) ([]domain.Article, error)
}

// NewsSource pulls one deduplicated batch of fresh articles per cycle.
type NewsSource interface {
	FetchLatest(ctx context.Context) []domain.Article
}

// Classifier sends article text to the reasoning gateway. A returned error
// means the caller must substitute domain.FallbackClassification.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (domain.Classification, error)
}

// Translator produces per-language titles. On error the caller falls back to
// the original title for every language.
type Translator interface {
	TranslateTitle(ctx context.Context, title string) (map[string]string, error)
}

// EventRepository persists events, tension samples, alerts, and subscriber
// lookups. Individual inserts rely on store-level uniqueness for conflict
// detection; no cross-call transactions are assumed.
type EventRepository interface {
	EventExists(ctx context.Context, url string) (bool, error)
	InsertEvent(ctx context.Context, event domain.NewsEvent) (int64, error)
	InsertTensionSample(ctx context.Context, sample domain.TensionSample) error
	LatestTensionSample(ctx context.Context) (domain.TensionSample, error)
	InsertAlert(ctx context.Context, alert domain.Alert) (int64, error)
	SetAlertNotifiedCount(ctx context.Context, alertID int64, count int) error
	ListEligibleSubscribers(ctx context.Context) ([]domain.Subscriber, error)
}

// Notifier delivers alert text to a chat. Text arrives already escaped for
// the channel's markup dialect.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
