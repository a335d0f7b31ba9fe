package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"echoreach/internal/models"
)

const responderSystemPrompt = `You write short, warm, human replies for a product's official social account.
Rules:
- Stay under %d characters.
- Match the tone of the post you reply to.
- Never promise features, timelines, or refunds.
- No hashtags unless the original post uses them.

Respond with a JSON object only:
{"text": "the reply", "confidence": 0.0-1.0}`

// LLMResponder drafts reply and quote text through an OpenAI-compatible
// chat completions endpoint.
type LLMResponder struct {
	provider *providerClient
}

// NewLLMResponder creates a responder against the given provider.
func NewLLMResponder(baseURL, apiKey, model string, timeout time.Duration) *LLMResponder {
	return &LLMResponder{provider: newProviderClient(baseURL, apiKey, model, timeout)}
}

// Generate drafts response text for the decided action. maxLength bounds the
// allowed reply length; the engine still verifies it before executing.
func (r *LLMResponder) Generate(ctx context.Context, post models.Post, item models.ClassifiedItem, action models.ActionKind, maxLength int) (models.GeneratedResponse, error) {
	system := fmt.Sprintf(responderSystemPrompt, maxLength)
	userMessage := fmt.Sprintf("Action: %s\nCategory: %s\nSentiment: %s\nAuthor: @%s\n\nPost:\n%s",
		action, item.Category, item.Sentiment, post.CounterpartyHandle, post.Text)

	content, err := r.provider.completeJSON(ctx, system, userMessage, 0.7)
	if err != nil {
		return models.GeneratedResponse{}, err
	}

	var raw struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &raw); err != nil {
		return models.GeneratedResponse{}, fmt.Errorf("failed to parse generated response: %w", err)
	}
	if raw.Text == "" {
		return models.GeneratedResponse{}, fmt.Errorf("model returned empty response text")
	}

	return models.GeneratedResponse{
		Text:       raw.Text,
		Confidence: raw.Confidence,
		Length:     len([]rune(raw.Text)),
	}, nil
}
