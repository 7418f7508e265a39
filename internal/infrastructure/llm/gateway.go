package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"tensionmonitor/internal/domain"
	"tensionmonitor/internal/ports"
)

const (
	callTimeout = 15 * time.Second

	classifyPrompt = `You are a geopolitical analyst. Classify the news item and respond with JSON only, no prose, no markdown fences:
{"category":"military|nuclear|diplomatic|economic|cyber|other","impact_score":0-10,"is_critical":true|false,"summary_pt":"...","summary_en":"...","keywords":["..."]}`

	translatePrompt = `Translate the news title. Respond with JSON only, no prose, no markdown fences:
{"pt":"...","es":"...","ar":"...","fa":"..."}`
)

// Gateway talks to an OpenAI-compatible chat-completion endpoint for both
// classification and title translation. It is deliberately not retried; one
// call per article per cycle.
type Gateway struct {
	client *openai.Client
	model  string
}

var _ ports.Classifier = (*Gateway)(nil)
var _ ports.Translator = (*Gateway)(nil)

// NewGateway builds a gateway; endpoint may be empty to use the public API.
func NewGateway(endpoint, apiKey, model string) *Gateway {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &Gateway{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Classify sends title and description for scoring. Any transport, parse, or
// schema failure returns an error; the caller substitutes
// domain.FallbackClassification instead of aborting the batch.
func (g *Gateway) Classify(ctx context.Context, title, description string) (domain.Classification, error) {
	content, err := g.complete(ctx, classifyPrompt, fmt.Sprintf("Title: %s\nDescription: %s", title, description))
	if err != nil {
		return domain.Classification{}, err
	}
	return parseClassification(content)
}

// TranslateTitle returns per-language titles keyed by language code.
func (g *Gateway) TranslateTitle(ctx context.Context, title string) (map[string]string, error) {
	content, err := g.complete(ctx, translatePrompt, title)
	if err != nil {
		return nil, err
	}
	return parseTranslation(content, title)
}

func (g *Gateway) complete(ctx context.Context, system, user string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}

	return resp.Choices[0].Message.Content, nil
}

type classificationPayload struct {
	Category    string   `json:"category"`
	ImpactScore float64  `json:"impact_score"`
	IsCritical  bool     `json:"is_critical"`
	SummaryPT   string   `json:"summary_pt"`
	SummaryEN   string   `json:"summary_en"`
	Keywords    []string `json:"keywords"`
}

func parseClassification(content string) (domain.Classification, error) {
	var payload classificationPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return domain.Classification{}, fmt.Errorf("decode classification: %w", err)
	}

	category := strings.ToLower(strings.TrimSpace(payload.Category))
	if !domain.KnownCategory(category) {
		return domain.Classification{}, fmt.Errorf("unknown category %q", payload.Category)
	}

	score := payload.ImpactScore
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	return domain.Classification{
		Category:    domain.Category(category),
		ImpactScore: score,
		IsCritical:  payload.IsCritical,
		SummaryPT:   payload.SummaryPT,
		SummaryEN:   payload.SummaryEN,
		Keywords:    payload.Keywords,
	}, nil
}

func parseTranslation(content, original string) (map[string]string, error) {
	var payload map[string]string
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, fmt.Errorf("decode translation: %w", err)
	}

	titles := make(map[string]string, len(domain.TranslationLanguages))
	for _, lang := range domain.TranslationLanguages {
		if value := strings.TrimSpace(payload[lang]); value != "" {
			titles[lang] = value
		} else {
			titles[lang] = original
		}
	}

	return titles, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, before JSON decoding.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		content = content[idx+1:]
	} else {
		content = strings.TrimPrefix(content, "json")
	}

	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
