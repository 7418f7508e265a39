// Package tension holds the pure math behind the tension index: per-event
// deltas, the mean-reverting accumulator, level classification, and the
// alert heuristic. Everything here is stateless and side-effect free.
package tension

import (
	"math"
	"strings"

	"tensionmonitor/internal/domain"
)

const (
	// Baseline is the mean-reversion target of the index.
	Baseline = 60.0
	// Gravity is the fraction of the gap to baseline removed per application.
	Gravity = 0.02

	minValue = 0.0
	maxValue = 100.0
)

var categoryWeights = map[domain.Category]float64{
	domain.CategoryMilitary:   8,
	domain.CategoryNuclear:    6,
	domain.CategoryEconomic:   5,
	domain.CategoryCyber:      4,
	domain.CategoryDiplomatic: 3,
	domain.CategoryOther:      1,
}

// criticalKeywords escalate a delta when present in the title. English plus
// Portuguese equivalents, matched against the lowercased title.
var criticalKeywords = []string{
	"strike", "missile", "invasion", "attack", "bombing", "nuclear",
	"ataque", "míssil", "invasão", "bombardeio",
}

// deEscalationKeywords flip a delta negative. A title can match both lists;
// both multipliers are applied in sequence, critical first.
var deEscalationKeywords = []string{
	"ceasefire", "peace", "agreement", "truce", "deal",
	"cessar-fogo", "paz", "acordo", "trégua",
}

// alertKeywords trigger an alert regardless of the gateway's own verdict.
var alertKeywords = []string{
	"nuclear", "invasion", "declaration of war", "missile strike",
	"invasão", "declaração de guerra", "ataque nuclear",
}

// Delta computes the tension contribution of one classified event.
// Base weight by category, scaled by AI influence (0.5 at score 0, 1.5 at
// score 10), then the keyword multipliers in sequence.
func Delta(category domain.Category, aiScore float64, title string) float64 {
	base, ok := categoryWeights[category]
	if !ok {
		base = categoryWeights[domain.CategoryOther]
	}

	aiScore = clamp(aiScore, 0, 10)
	delta := base * (0.5 + aiScore/10)

	lower := strings.ToLower(title)
	if containsAny(lower, criticalKeywords) {
		delta *= 1.3
	}
	if containsAny(lower, deEscalationKeywords) {
		delta *= -0.5
	}

	return round2(delta)
}

// Apply folds a delta into the current index value: raw sum, then a gravity
// pull toward the baseline, then clamp to [0,100].
func Apply(current, delta float64) float64 {
	raw := current + delta
	result := raw + (Baseline-raw)*Gravity
	return round2(clamp(result, minValue, maxValue))
}

// Level is a display bucket of the index.
type Level struct {
	Name  string
	Label string
	Color string
}

// Classify maps an index value to its level. Lower bounds are inclusive.
func Classify(value float64) Level {
	switch {
	case value >= 90:
		return Level{Name: "critical", Label: "Critical", Color: "#7f1d1d"}
	case value >= 75:
		return Level{Name: "high", Label: "High", Color: "#dc2626"}
	case value >= 55:
		return Level{Name: "moderate", Label: "Moderate", Color: "#f59e0b"}
	case value >= 35:
		return Level{Name: "low", Label: "Low", Color: "#84cc16"}
	default:
		return Level{Name: "stable", Label: "Stable", Color: "#22c55e"}
	}
}

// ShouldAlert reports whether an event warrants an alert on its own, either
// by impact score or by a critical keyword in its text. This is independent
// of the gateway's IsCritical flag; either signal is sufficient.
func ShouldAlert(impactScore float64, title, description string) bool {
	if impactScore >= 8 {
		return true
	}
	return containsAny(strings.ToLower(title+" "+description), alertKeywords)
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
