package agent

import (
	"strings"

	"echoreach/internal/models"
)

// Crude keyword tables for the fallback classifier. These only run when the
// classification collaborator is down, so recall matters more than precision.
var (
	supportHints  = []string{"help", "issue", "broken", "error", "not working", "how do i", "can't", "cannot"}
	spamHints     = []string{"follow back", "dm me", "click here", "free crypto", "giveaway"}
	positiveHints = []string{"love", "thanks", "thank you", "awesome", "great", "amazing"}
	negativeHints = []string{"hate", "terrible", "worst", "awful", "disappointed", "refund"}
)

// heuristicClassify synthesizes a low-confidence classification from simple
// keyword presence so an item always reaches a decision even when the
// classifier collaborator is unavailable.
func heuristicClassify(post models.Post) models.ClassifiedItem {
	text := strings.ToLower(post.Text)

	category := models.CategoryGeneral
	switch {
	case containsAny(text, spamHints):
		category = models.CategorySpam
	case containsAny(text, supportHints):
		category = models.CategorySupportRequest
	case strings.Contains(text, "?"):
		category = models.CategoryCommunityBuilding
	}

	sentiment := models.SentimentNeutral
	if containsAny(text, negativeHints) {
		sentiment = models.SentimentNegative
	} else if containsAny(text, positiveHints) {
		sentiment = models.SentimentPositive
	}

	return models.ClassifiedItem{
		Category:              category,
		Confidence:            0.3,
		Sentiment:             sentiment,
		EngagementOpportunity: category == models.CategorySupportRequest || category == models.CategoryCommunityBuilding,
		Priority:              models.TierLow,
		Reasoning:             "heuristic fallback classification",
	}
}

func containsAny(text string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}
