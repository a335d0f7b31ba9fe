package models

import "time"

// ActionKind is what the agent does about an item.
type ActionKind string

const (
	ActionReply   ActionKind = "reply"
	ActionQuote   ActionKind = "quote"
	ActionRetweet ActionKind = "retweet"
	ActionLike    ActionKind = "like"
	ActionIgnore  ActionKind = "ignore"
	ActionFlag    ActionKind = "flag"
)

// AgentDecision is the ephemeral verdict for one item. It is not persisted;
// the event sink records the terminal outcome instead.
type AgentDecision struct {
	ShouldAct  bool         `json:"should_act"`
	Priority   PriorityTier `json:"priority"`
	Action     ActionKind   `json:"action"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
}

// GeneratedResponse is a candidate reply from the response generator.
type GeneratedResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Length     int     `json:"length"`
}

// AgentAction is the materialized plan for an approved decision.
type AgentAction struct {
	PostID         string               `json:"post_id"`
	Post           Post                 `json:"post"`
	Classification ClassificationResult `json:"classification"`
	Response       *GeneratedResponse   `json:"response,omitempty"`
	PriorityScore  int                  `json:"priority_score"` // 0..200
	Action         ActionKind           `json:"action"`
}

// Outcome is the terminal disposition of one processed item.
type Outcome string

const (
	OutcomeActed   Outcome = "acted"
	OutcomeIgnored Outcome = "ignored"
	OutcomeFlagged Outcome = "flagged"
	OutcomeFailed  Outcome = "failed"
)

// ItemResult is what the engine reports back per item, with enough context
// to reconstruct why the decision was made.
type ItemResult struct {
	PostID        string         `json:"post_id"`
	Outcome       Outcome        `json:"outcome"`
	Action        ActionKind     `json:"action"`
	Category      IntentCategory `json:"category"`
	Degraded      bool           `json:"degraded_classification"`
	PriorityScore int            `json:"priority_score,omitempty"`
	Reason        string         `json:"reason"`
	ExecutedID    string         `json:"executed_id,omitempty"` // ID returned by the API for writes
	DecidedAt     time.Time      `json:"decided_at"`
}
