package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"tensionmonitor/internal/domain"
	"tensionmonitor/internal/ports"
)

const uniqueViolation = "23505"

// PostgresRepository implements ports.EventRepository on a relational store.
// Uniqueness on news_events.url is the authoritative dedup boundary.
type PostgresRepository struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
}

var _ ports.EventRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires an sqlx handle.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type dbSample struct {
	ID        int64          `db:"id"`
	Value     float64        `db:"value"`
	Notes     sql.NullString `db:"notes"`
	CreatedAt time.Time      `db:"created_at"`
}

type dbSubscriber struct {
	ID                   int64 `db:"id"`
	ChatID               int64 `db:"chat_id"`
	IsPremium            bool  `db:"is_premium"`
	NotificationsEnabled bool  `db:"notifications_enabled"`
}

// EventExists reports whether an event with the URL is already stored. This
// is an optimization only; InsertEvent remains authoritative.
func (r *PostgresRepository) EventExists(ctx context.Context, url string) (bool, error) {
	query, args, err := r.builder.
		Select("1").
		From("news_events").
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query event by url: %w", err)
	}

	return true, nil
}

// InsertEvent stores one classified event. A unique-violation on url comes
// back as ErrDuplicateEvent so callers can distinguish a lost race from a
// genuine persistence failure.
func (r *PostgresRepository) InsertEvent(ctx context.Context, event domain.NewsEvent) (int64, error) {
	titles, err := json.Marshal(event.Titles)
	if err != nil {
		return 0, fmt.Errorf("marshal titles: %w", err)
	}

	query, args, err := r.builder.
		Insert("news_events").
		Columns("url", "title", "description", "source", "published_at",
			"category", "impact_score", "is_critical",
			"summary_pt", "summary_en", "keywords", "tension_delta", "titles").
		Values(event.Article.URL, event.Article.Title, event.Article.Description,
			event.Article.Source, event.Article.PublishedAt,
			string(event.Classification.Category), event.Classification.ImpactScore,
			event.Classification.IsCritical,
			event.Classification.SummaryPT, event.Classification.SummaryEN,
			pq.StringArray(event.Classification.Keywords), event.TensionDelta, titles).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, ports.ErrDuplicateEvent
		}
		return 0, fmt.Errorf("insert event: %w", err)
	}

	return id, nil
}

// InsertTensionSample appends one point to the tension series.
func (r *PostgresRepository) InsertTensionSample(ctx context.Context, sample domain.TensionSample) error {
	query, args, err := r.builder.
		Insert("tension_samples").
		Columns("value", "notes").
		Values(sample.Value, sample.Notes).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert tension sample: %w", err)
	}

	return nil
}

// LatestTensionSample returns the newest sample. Empty history yields a
// synthetic sample at 50 so a fresh deployment starts below baseline.
func (r *PostgresRepository) LatestTensionSample(ctx context.Context) (domain.TensionSample, error) {
	query, args, err := r.builder.
		Select("id", "value", "notes", "created_at").
		From("tension_samples").
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.TensionSample{}, fmt.Errorf("build query: %w", err)
	}

	var row dbSample
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TensionSample{Value: 50}, nil
		}
		return domain.TensionSample{}, fmt.Errorf("query latest sample: %w", err)
	}

	return domain.TensionSample{
		ID:        row.ID,
		Value:     row.Value,
		Notes:     row.Notes.String,
		CreatedAt: row.CreatedAt,
	}, nil
}

// InsertAlert stores one alert row and returns its id.
func (r *PostgresRepository) InsertAlert(ctx context.Context, alert domain.Alert) (int64, error) {
	query, args, err := r.builder.
		Insert("alerts").
		Columns("event_id", "title", "message", "severity", "category", "is_active", "notified_count").
		Values(alert.EventID, alert.Title, alert.Message,
			string(alert.Severity), string(alert.Category), alert.IsActive, alert.NotifiedCount).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}

	return id, nil
}

// SetAlertNotifiedCount records how many personal deliveries succeeded.
func (r *PostgresRepository) SetAlertNotifiedCount(ctx context.Context, alertID int64, count int) error {
	query, args, err := r.builder.
		Update("alerts").
		Set("notified_count", count).
		Where(sq.Eq{"id": alertID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update alert: %w", err)
	}

	return nil
}

// ListEligibleSubscribers returns premium users with notifications enabled
// and a registered chat id.
func (r *PostgresRepository) ListEligibleSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	query, args, err := r.builder.
		Select("id", "chat_id", "is_premium", "notifications_enabled").
		From("subscribers").
		Where(sq.Eq{"is_premium": true, "notifications_enabled": true}).
		Where(sq.NotEq{"chat_id": 0}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []dbSubscriber
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}

	return lo.Map(rows, func(row dbSubscriber, _ int) domain.Subscriber {
		return domain.Subscriber{
			ID:                   row.ID,
			ChatID:               row.ChatID,
			IsPremium:            row.IsPremium,
			NotificationsEnabled: row.NotificationsEnabled,
		}
	}), nil
}
