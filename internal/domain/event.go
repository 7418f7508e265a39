package domain

import (
	"time"
	"unicode/utf8"
)

// Article is a core entity describing one news item returned by a search provider.
// Identity is the URL; everything else is provider metadata.
type Article struct {
	Title       string
	Description string
	URL         string
	Source      string
	PublishedAt time.Time
}

// Category buckets an event by the kind of tension it signals.
type Category string

const (
	CategoryMilitary   Category = "military"
	CategoryNuclear    Category = "nuclear"
	CategoryDiplomatic Category = "diplomatic"
	CategoryEconomic   Category = "economic"
	CategoryCyber      Category = "cyber"
	CategoryOther      Category = "other"
)

// KnownCategory reports whether value is one of the fixed category names.
func KnownCategory(value string) bool {
	switch Category(value) {
	case CategoryMilitary, CategoryNuclear, CategoryDiplomatic,
		CategoryEconomic, CategoryCyber, CategoryOther:
		return true
	}
	return false
}

// Classification captures the LLM verdict for one article.
type Classification struct {
	Category    Category
	ImpactScore float64
	IsCritical  bool
	SummaryPT   string
	SummaryEN   string
	Keywords    []string
}

const fallbackSummaryLimit = 200

// FallbackClassification is a deterministic safe default used whenever the
// gateway returns something unparseable. It never aborts a batch.
func FallbackClassification(title string) Classification {
	summary := title
	if len(summary) > fallbackSummaryLimit {
		cut := fallbackSummaryLimit
		// Back up to a rune boundary so the stored summary stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut]
	}
	return Classification{
		Category:    CategoryOther,
		ImpactScore: 3,
		IsCritical:  false,
		SummaryPT:   summary,
		SummaryEN:   summary,
		Keywords:    nil,
	}
}

// TranslationLanguages are the per-language title targets, in schema order.
var TranslationLanguages = []string{"pt", "es", "ar", "fa"}

// NewsEvent is the persisted record: article, verdict, computed tension delta,
// and per-language titles. Created exactly once per distinct URL.
type NewsEvent struct {
	ID             int64
	Article        Article
	Classification Classification
	TensionDelta   float64
	Titles         map[string]string
	CreatedAt      time.Time
}

// TensionSample is one point of the append-only tension series.
// The current tension is always the most recent sample.
type TensionSample struct {
	ID        int64
	Value     float64
	Notes     string
	CreatedAt time.Time
}

// Severity grades an alert.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForScore derives alert severity from an event's impact score.
func SeverityForScore(impact float64) Severity {
	switch {
	case impact >= 9:
		return SeverityCritical
	case impact >= 7:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Alert references exactly one NewsEvent. Lifecycle is create then optional
// deactivate; alerts are never deleted.
type Alert struct {
	ID            int64
	EventID       int64
	Title         string
	Message       string
	Severity      Severity
	Category      Category
	IsActive      bool
	NotifiedCount int
	CreatedAt     time.Time
}

// Subscriber is a user eligible for personal alert delivery.
type Subscriber struct {
	ID                   int64
	ChatID               int64
	IsPremium            bool
	NotificationsEnabled bool
}
