package models

import "time"

// Event is one structured audit record emitted by the decision engine or
// the gateway. Events are written asynchronously and never block core logic.
type Event struct {
	ID             string         `json:"id" bson:"_id"`
	Time           time.Time      `json:"time" bson:"time"`
	PostID         string         `json:"post_id" bson:"post_id"`
	CounterpartyID string         `json:"counterparty_id,omitempty" bson:"counterparty_id,omitempty"`
	Outcome        Outcome        `json:"outcome" bson:"outcome"`
	Action         ActionKind     `json:"action,omitempty" bson:"action,omitempty"`
	Category       IntentCategory `json:"category,omitempty" bson:"category,omitempty"`
	Degraded       bool           `json:"degraded,omitempty" bson:"degraded,omitempty"`
	PriorityScore  int            `json:"priority_score,omitempty" bson:"priority_score,omitempty"`
	Reason         string         `json:"reason" bson:"reason"`
	ExecutedID     string         `json:"executed_id,omitempty" bson:"executed_id,omitempty"`
}
