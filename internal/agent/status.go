package agent

import "log"

// ItemStatus represents valid processing states for an inbound item.
type ItemStatus string

const (
	StatusNew        ItemStatus = "new"
	StatusClassified ItemStatus = "classified"
	StatusDecided    ItemStatus = "decided"
	StatusExecuted   ItemStatus = "executed"
	StatusIgnored    ItemStatus = "ignored"
	StatusFlagged    ItemStatus = "flagged"
)

// validTransitions defines the allowed state transitions for items.
// Any transition not listed here is invalid and will be rejected.
var validTransitions = map[ItemStatus]map[ItemStatus]bool{
	StatusNew: {
		StatusClassified: true,
	},
	StatusClassified: {
		StatusDecided: true,
		StatusFlagged: true,
	},
	StatusDecided: {
		StatusExecuted: true,
		StatusIgnored:  true,
		StatusFlagged:  true,
	},
	// Terminal states have no outgoing transitions. Items are processed once;
	// re-evaluating a post means starting over with a new item.
	StatusExecuted: {},
	StatusIgnored:  {},
	StatusFlagged:  {},
}

// TransitionItemStatus validates and performs an item status transition.
// Returns the new status if valid, or the current status if the transition is invalid.
func TransitionItemStatus(current, desired ItemStatus) ItemStatus {
	allowed, exists := validTransitions[current]
	if !exists || !allowed[desired] {
		log.Printf("⚠️ [STATE] Invalid item transition: %s → %s (rejected)", current, desired)
		return current
	}
	return desired
}

// IsTerminal returns true if the status is a final state.
func IsTerminal(status ItemStatus) bool {
	return status == StatusExecuted || status == StatusIgnored || status == StatusFlagged
}
