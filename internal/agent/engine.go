package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"echoreach/internal/config"
	"echoreach/internal/logging"
	"echoreach/internal/models"
	"echoreach/internal/services"
)

// Classifier is the intent-analysis collaborator.
type Classifier interface {
	Classify(ctx context.Context, post models.Post) (models.ClassifiedItem, error)
}

// Responder is the response-generation collaborator.
type Responder interface {
	Generate(ctx context.Context, post models.Post, item models.ClassifiedItem, action models.ActionKind, maxLength int) (models.GeneratedResponse, error)
}

// Executor performs approved write actions. The API gateway satisfies this.
type Executor interface {
	Reply(ctx context.Context, text, inReplyToID string) (string, error)
	Quote(ctx context.Context, text, quoteID string) (string, error)
	Retweet(ctx context.Context, tweetID string) error
	Like(ctx context.Context, tweetID string) error
}

// PolicySource serves the active decision policy.
type PolicySource interface {
	Current() config.Policy
}

// EventRecorder accepts audit events. The event log satisfies this.
type EventRecorder interface {
	Record(event models.Event)
}

// Engine runs inbound items through classify, decide, gate, generate, score
// and execute. It is safe for concurrent use; the runtime state serializes
// the quota and cooldown checks.
type Engine struct {
	classifier Classifier
	responder  Responder
	executor   Executor
	policies   PolicySource
	state      *RuntimeState
	events     EventRecorder
	metrics    *services.Metrics
}

// New creates an engine. events and metrics may be nil.
func New(classifier Classifier, responder Responder, executor Executor, policies PolicySource, state *RuntimeState, events EventRecorder, metrics *services.Metrics) *Engine {
	return &Engine{
		classifier: classifier,
		responder:  responder,
		executor:   executor,
		policies:   policies,
		state:      state,
		events:     events,
		metrics:    metrics,
	}
}

// State exposes the runtime gate counters for the status surface.
func (e *Engine) State() *RuntimeState { return e.state }

// ProcessItem runs one inbound item to a terminal outcome. It never returns
// an error: every failure mode maps to an outcome so a bad item cannot take
// down a batch.
func (e *Engine) ProcessItem(ctx context.Context, post models.Post) models.ItemResult {
	started := time.Now()
	logger := logging.WithItem(post.ID, post.CounterpartyID)
	policy := e.policies.Current()
	status := StatusNew

	classification := e.classify(ctx, post)
	status = TransitionItemStatus(status, StatusClassified)
	if classification.Degraded {
		logger.Warn("classification degraded, using heuristics", "reason", classification.Reason)
		e.recordDegraded()
	}

	decision := makeDecision(classification.Item, post, policy)
	status = TransitionItemStatus(status, StatusDecided)
	logger.Debug("decision made",
		"should_act", decision.ShouldAct,
		"action", decision.Action,
		"confidence", decision.Confidence,
		"tier", decision.Priority)

	if !decision.ShouldAct {
		return e.finish(post, classification, status, StatusIgnored, models.ItemResult{
			Outcome: models.OutcomeIgnored,
			Reason:  decision.Reasoning,
		})
	}

	// Gate. The reservation holds the quota slot and the counterparty's
	// cooldown through generation and execution.
	if err := e.state.Reserve(post.CounterpartyID, policy.MaxDailyActions, policy.Cooldown()); err != nil {
		logger.Info("gated", "reason", err.Error())
		return e.finish(post, classification, status, StatusIgnored, models.ItemResult{
			Outcome: models.OutcomeIgnored,
			Action:  decision.Action,
			Reason:  err.Error(),
		})
	}

	var response *models.GeneratedResponse
	if decision.Action == models.ActionReply || decision.Action == models.ActionQuote {
		generated, err := e.responder.Generate(ctx, post, classification.Item, decision.Action, policy.MaxResponseLength)
		if err != nil {
			e.state.Release(post.CounterpartyID)
			logger.Warn("response generation unavailable", "error", err)
			return e.finish(post, classification, status, StatusIgnored, models.ItemResult{
				Outcome: models.OutcomeIgnored,
				Action:  decision.Action,
				Reason:  fmt.Sprintf("response generation unavailable: %v", err),
			})
		}
		response = &generated
	}

	action := models.AgentAction{
		PostID:         post.ID,
		Post:           post,
		Classification: classification,
		Response:       response,
		PriorityScore:  scorePriority(decision, classification.Item, response),
		Action:         decision.Action,
	}

	if reason := checkResponsePolicy(response, policy); reason != "" {
		e.state.Release(post.CounterpartyID)
		logger.Warn("response blocked by policy", "reason", reason)
		return e.finish(post, classification, status, StatusFlagged, models.ItemResult{
			Outcome:       models.OutcomeFlagged,
			Action:        decision.Action,
			PriorityScore: action.PriorityScore,
			Reason:        reason,
		})
	}

	executedID, err := e.execute(ctx, action)
	if err != nil {
		e.state.Release(post.CounterpartyID)
		logger.Error("action failed", "action", decision.Action, "error", err)
		return e.finish(post, classification, status, StatusFlagged, models.ItemResult{
			Outcome:       models.OutcomeFailed,
			Action:        decision.Action,
			PriorityScore: action.PriorityScore,
			Reason:        err.Error(),
		})
	}

	e.state.Commit(post.CounterpartyID)
	e.recordLatency(started)
	e.recordActed(decision.Action)
	logger.Info("action executed", "action", decision.Action, "executed_id", executedID, "priority", action.PriorityScore)

	return e.finish(post, classification, status, StatusExecuted, models.ItemResult{
		Outcome:       models.OutcomeActed,
		Action:        decision.Action,
		PriorityScore: action.PriorityScore,
		Reason:        decision.Reasoning,
		ExecutedID:    executedID,
	})
}

// ProcessBatch runs items concurrently with a bounded worker pool. Results
// come back in input order.
func (e *Engine) ProcessBatch(ctx context.Context, posts []models.Post, workers int) []models.ItemResult {
	if workers <= 0 {
		workers = 4
	}
	results := make([]models.ItemResult, len(posts))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, post := range posts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, post models.Post) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.ProcessItem(ctx, post)
		}(i, post)
	}
	wg.Wait()
	return results
}

func (e *Engine) classify(ctx context.Context, post models.Post) models.ClassificationResult {
	item, err := e.classifier.Classify(ctx, post)
	if err != nil {
		return models.ClassificationResult{
			Item:     heuristicClassify(post),
			Degraded: true,
			Reason:   err.Error(),
		}
	}
	return models.ClassificationResult{Item: item}
}

func (e *Engine) execute(ctx context.Context, action models.AgentAction) (string, error) {
	switch action.Action {
	case models.ActionReply:
		return e.executor.Reply(ctx, action.Response.Text, action.PostID)
	case models.ActionQuote:
		return e.executor.Quote(ctx, action.Response.Text, action.PostID)
	case models.ActionRetweet:
		return "", e.executor.Retweet(ctx, action.PostID)
	case models.ActionLike:
		return "", e.executor.Like(ctx, action.PostID)
	default:
		return "", fmt.Errorf("unexecutable action kind %q", action.Action)
	}
}

func (e *Engine) finish(post models.Post, classification models.ClassificationResult, current, terminal ItemStatus, result models.ItemResult) models.ItemResult {
	TransitionItemStatus(current, terminal)

	result.PostID = post.ID
	result.Category = classification.Item.Category
	result.Degraded = classification.Degraded
	result.DecidedAt = time.Now()

	e.recordOutcome(result.Outcome)
	if e.events != nil {
		e.events.Record(models.Event{
			PostID:         post.ID,
			CounterpartyID: post.CounterpartyID,
			Outcome:        result.Outcome,
			Action:         result.Action,
			Category:       result.Category,
			Degraded:       result.Degraded,
			PriorityScore:  result.PriorityScore,
			Reason:         result.Reason,
			ExecutedID:     result.ExecutedID,
		})
	}
	return result
}

// makeDecision applies the policy rules to one classified item.
func makeDecision(item models.ClassifiedItem, post models.Post, policy config.Policy) models.AgentDecision {
	engagement := post.Engagement.Likes + post.Engagement.Retweets + post.Engagement.Replies

	shouldAct := item.EngagementOpportunity && item.Confidence >= policy.DetectionThreshold
	tier := item.Priority
	if tier == "" {
		tier = models.TierLow
		if shouldAct {
			tier = models.TierMedium
		}
	}

	reasons := []string{}
	if shouldAct {
		reasons = append(reasons, fmt.Sprintf("%s with confidence %.2f", item.Category, item.Confidence))
	}
	if engagement > policy.HighEngagementThreshold {
		shouldAct = true
		reasons = append(reasons, fmt.Sprintf("high engagement (%d)", engagement))
	}
	if kw := matchPriorityKeyword(post.Text, policy.PriorityKeywords); kw != "" {
		shouldAct = true
		tier = models.TierHigh
		reasons = append(reasons, fmt.Sprintf("priority keyword %q", kw))
	}

	action := models.ActionLike
	if item.Category == models.CategorySupportRequest || item.Category == models.CategoryCommunityBuilding {
		action = models.ActionReply
	}
	if item.Sentiment == models.SentimentPositive && engagement > policy.HighEngagementThreshold {
		action = models.ActionQuote
	} else if item.Sentiment == models.SentimentPositive && engagement > policy.ModerateEngagementThreshold {
		action = models.ActionRetweet
	}

	confidence := math.Min(0.95, item.Confidence*0.8+math.Min(float64(engagement)/100, 1)*0.2)

	reasoning := strings.Join(reasons, "; ")
	if !shouldAct {
		reasoning = fmt.Sprintf("below threshold: confidence %.2f, engagement %d, opportunity %v",
			item.Confidence, engagement, item.EngagementOpportunity)
	}

	return models.AgentDecision{
		ShouldAct:  shouldAct,
		Priority:   tier,
		Action:     action,
		Confidence: confidence,
		Reasoning:  reasoning,
	}
}

// scorePriority produces the 0..200 ranking used to order competing actions.
func scorePriority(decision models.AgentDecision, item models.ClassifiedItem, response *models.GeneratedResponse) int {
	score := 25
	switch decision.Priority {
	case models.TierHigh:
		score = 100
	case models.TierMedium:
		score = 50
	}

	score += int(math.Floor(decision.Confidence * 50))
	if item.EngagementOpportunity {
		score += 30
	}
	if item.Category == models.CategorySupportRequest {
		score += 40
	}
	if item.Sentiment == models.SentimentPositive {
		score += 20
	}
	if response != nil && response.Confidence > 0.8 {
		score += 25
	}

	if score < 0 {
		score = 0
	}
	if score > 200 {
		score = 200
	}
	return score
}

// checkResponsePolicy verifies a generated response against the blocked-term
// list and the length cap. Returns an empty string when the response passes.
func checkResponsePolicy(response *models.GeneratedResponse, policy config.Policy) string {
	if response == nil {
		return ""
	}
	lower := strings.ToLower(response.Text)
	for _, term := range policy.BlockedTerms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return fmt.Sprintf("response contains blocked term %q", term)
		}
	}
	if policy.MaxResponseLength > 0 && response.Length > policy.MaxResponseLength {
		return fmt.Sprintf("response length %d exceeds limit %d", response.Length, policy.MaxResponseLength)
	}
	return ""
}

func matchPriorityKeyword(text string, keywords []string) string {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}

func (e *Engine) recordDegraded() {
	if e.metrics != nil {
		e.metrics.RecordDegradedClassification()
	}
}

func (e *Engine) recordOutcome(outcome models.Outcome) {
	if e.metrics != nil {
		e.metrics.RecordDecision(string(outcome))
	}
}

func (e *Engine) recordActed(action models.ActionKind) {
	if e.metrics != nil {
		e.metrics.RecordAction(string(action))
	}
}

func (e *Engine) recordLatency(started time.Time) {
	if e.metrics != nil {
		e.metrics.RecordDecisionLatency(time.Since(started).Seconds())
	}
}
