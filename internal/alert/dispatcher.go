// Package alert turns critical news events into persisted alerts and fans
// them out to the global channel and to eligible subscribers.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tensionmonitor/internal/domain"
	"tensionmonitor/internal/infrastructure/telegram"
	"tensionmonitor/internal/ports"
)

// Dispatcher persists alerts and delivers them. A zero channel id disables
// the global broadcast; a nil notifier disables delivery entirely. Neither
// is an error.
type Dispatcher struct {
	repo      ports.EventRepository
	notifier  ports.Notifier
	channelID int64
	logger    *slog.Logger
}

// NewDispatcher wires the repository and notification channel.
func NewDispatcher(repo ports.EventRepository, notifier ports.Notifier, channelID int64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		notifier:  notifier,
		channelID: channelID,
		logger:    logger,
	}
}

// Dispatch persists one alert for the event, broadcasts to the global
// channel, then delivers to each eligible subscriber independently. Only the
// persistence step can fail the dispatch; delivery failures are logged and
// swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.NewsEvent) error {
	severity := domain.SeverityForScore(event.Classification.ImpactScore)

	record := domain.Alert{
		EventID:  event.ID,
		Title:    event.Article.Title,
		Message:  plainMessage(event, severity),
		Severity: severity,
		Category: event.Classification.Category,
		IsActive: true,
	}

	alertID, err := d.repo.InsertAlert(ctx, record)
	if err != nil {
		return fmt.Errorf("persist alert: %w", err)
	}

	if d.notifier == nil {
		return nil
	}

	text := formatMessage(event, severity)

	if d.channelID != 0 {
		if err := d.notifier.Send(ctx, d.channelID, text); err != nil {
			d.warn("channel broadcast failed", "alert_id", alertID, "error", err)
		}
	}

	delivered := d.fanOut(ctx, alertID, text)
	if delivered > 0 {
		if err := d.repo.SetAlertNotifiedCount(ctx, alertID, delivered); err != nil {
			d.warn("update notified count failed", "alert_id", alertID, "error", err)
		}
	}

	return nil
}

// fanOut delivers to every eligible subscriber, isolating failures, and
// returns the number of successful deliveries.
func (d *Dispatcher) fanOut(ctx context.Context, alertID int64, text string) int {
	subscribers, err := d.repo.ListEligibleSubscribers(ctx)
	if err != nil {
		d.warn("list subscribers failed", "alert_id", alertID, "error", err)
		return 0
	}

	delivered := 0
	for _, sub := range subscribers {
		if err := d.notifier.Send(ctx, sub.ChatID, text); err != nil {
			d.warn("personal delivery failed", "alert_id", alertID, "subscriber", sub.ID, "error", err)
			continue
		}
		delivered++
	}

	return delivered
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

// formatMessage builds the MarkdownV2 alert text. Interpolated values are
// escaped; the markup skeleton is not.
func formatMessage(event domain.NewsEvent, severity domain.Severity) string {
	summary := event.Classification.SummaryEN
	if summary == "" {
		summary = event.Article.Description
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n", severityEmoji(severity), telegram.Escape(severityHeading(severity)))
	fmt.Fprintf(&b, "*%s*\n\n", telegram.Escape(event.Article.Title))
	if summary != "" {
		fmt.Fprintf(&b, "%s\n\n", telegram.Escape(summary))
	}
	fmt.Fprintf(&b, "Category: %s \\| Impact: %s/10\n",
		telegram.Escape(string(event.Classification.Category)),
		telegram.Escape(fmt.Sprintf("%.1f", event.Classification.ImpactScore)))
	b.WriteString(telegram.Escape(event.Article.URL))

	return b.String()
}

// plainMessage is the unescaped variant stored on the alert row.
func plainMessage(event domain.NewsEvent, severity domain.Severity) string {
	summary := event.Classification.SummaryEN
	if summary == "" {
		summary = event.Article.Description
	}
	return fmt.Sprintf("%s: %s (%s, impact %.1f) %s",
		severityHeading(severity), event.Article.Title,
		event.Classification.Category, event.Classification.ImpactScore,
		event.Article.URL)
}

func severityHeading(severity domain.Severity) string {
	switch severity {
	case domain.SeverityCritical:
		return "CRITICAL ALERT"
	case domain.SeverityHigh:
		return "HIGH ALERT"
	default:
		return "ALERT"
	}
}

func severityEmoji(severity domain.Severity) string {
	switch severity {
	case domain.SeverityCritical:
		return "🚨"
	case domain.SeverityHigh:
		return "⚠️"
	default:
		return "📢"
	}
}
