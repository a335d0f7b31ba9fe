package models

// IntentCategory is the fixed taxonomy the classifier maps posts into.
type IntentCategory string

const (
	CategorySupportRequest    IntentCategory = "support_request"
	CategoryCommunityBuilding IntentCategory = "community_building"
	CategoryProductFeedback   IntentCategory = "product_feedback"
	CategoryComplaint         IntentCategory = "complaint"
	CategorySpam              IntentCategory = "spam"
	CategoryGeneral           IntentCategory = "general"
)

// Valid reports whether the category is part of the taxonomy.
func (c IntentCategory) Valid() bool {
	switch c {
	case CategorySupportRequest, CategoryCommunityBuilding, CategoryProductFeedback,
		CategoryComplaint, CategorySpam, CategoryGeneral:
		return true
	}
	return false
}

// Sentiment of a post as judged by the classifier.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// PriorityTier buckets items for ordering before numeric scoring.
type PriorityTier string

const (
	TierHigh   PriorityTier = "high"
	TierMedium PriorityTier = "medium"
	TierLow    PriorityTier = "low"
)

// ClassifiedItem is the immutable result of intent analysis for one post.
type ClassifiedItem struct {
	Category              IntentCategory `json:"category"`
	Confidence            float64        `json:"confidence"` // 0..1
	Keywords              []string       `json:"keywords,omitempty"`
	Sentiment             Sentiment      `json:"sentiment"`
	EngagementOpportunity bool           `json:"engagement_opportunity"`
	Priority              PriorityTier   `json:"priority"`
	Reasoning             string         `json:"reasoning,omitempty"`
}

// ClassificationResult distinguishes a confident classifier judgment from a
// heuristic stand-in produced after a collaborator failure. Both flow
// through the same decision path; only logs and audit records differ.
type ClassificationResult struct {
	Item     ClassifiedItem `json:"item"`
	Degraded bool           `json:"degraded"`
	// Reason is set when Degraded is true and names the collaborator failure.
	Reason string `json:"reason,omitempty"`
}
