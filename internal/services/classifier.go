package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"echoreach/internal/models"
)

const classifierSystemPrompt = `You are a social media triage assistant. Classify the inbound post into exactly one category:
- support_request: the author needs help with the product
- community_building: a genuine conversation opportunity
- product_feedback: concrete suggestions or praise about the product
- complaint: negative experience that needs care
- spam: promotional junk, scams, or bot content
- general: everything else

Respond with a JSON object only:
{"category": "...", "confidence": 0.0-1.0, "keywords": ["..."], "sentiment": "positive|neutral|negative", "engagement_opportunity": true|false, "reasoning": "one sentence"}`

// LLMClassifier classifies inbound posts through an OpenAI-compatible
// chat completions endpoint using JSON mode.
type LLMClassifier struct {
	provider *providerClient
}

// NewLLMClassifier creates a classifier against the given provider.
func NewLLMClassifier(baseURL, apiKey, model string, timeout time.Duration) *LLMClassifier {
	return &LLMClassifier{provider: newProviderClient(baseURL, apiKey, model, timeout)}
}

// Classify returns a classification for the post. On any provider failure
// the caller falls back to heuristics, so errors here carry full context.
func (c *LLMClassifier) Classify(ctx context.Context, post models.Post) (models.ClassifiedItem, error) {
	userMessage := fmt.Sprintf("Author: @%s\nEngagement: %d likes, %d retweets, %d replies\n\nPost:\n%s",
		post.CounterpartyHandle, post.Engagement.Likes, post.Engagement.Retweets, post.Engagement.Replies, post.Text)

	content, err := c.provider.completeJSON(ctx, classifierSystemPrompt, userMessage, 0.2)
	if err != nil {
		return models.ClassifiedItem{}, err
	}

	var raw struct {
		Category              string   `json:"category"`
		Confidence            float64  `json:"confidence"`
		Keywords              []string `json:"keywords"`
		Sentiment             string   `json:"sentiment"`
		EngagementOpportunity bool     `json:"engagement_opportunity"`
		Reasoning             string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &raw); err != nil {
		return models.ClassifiedItem{}, fmt.Errorf("failed to parse classification: %w", err)
	}

	category := models.IntentCategory(raw.Category)
	if !category.Valid() {
		return models.ClassifiedItem{}, fmt.Errorf("model returned unknown category %q", raw.Category)
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return models.ClassifiedItem{}, fmt.Errorf("model returned confidence %v out of range", raw.Confidence)
	}

	return models.ClassifiedItem{
		Category:              category,
		Confidence:            raw.Confidence,
		Keywords:              raw.Keywords,
		Sentiment:             models.Sentiment(raw.Sentiment),
		EngagementOpportunity: raw.EngagementOpportunity,
		Reasoning:             raw.Reasoning,
	}, nil
}
