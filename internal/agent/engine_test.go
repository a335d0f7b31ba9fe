package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"echoreach/internal/config"
	"echoreach/internal/models"
)

type stubClassifier struct {
	item models.ClassifiedItem
	err  error
}

func (s *stubClassifier) Classify(_ context.Context, _ models.Post) (models.ClassifiedItem, error) {
	return s.item, s.err
}

type stubResponder struct {
	text string
	conf float64
	err  error
}

func (s *stubResponder) Generate(_ context.Context, _ models.Post, _ models.ClassifiedItem, _ models.ActionKind, _ int) (models.GeneratedResponse, error) {
	if s.err != nil {
		return models.GeneratedResponse{}, s.err
	}
	return models.GeneratedResponse{Text: s.text, Confidence: s.conf, Length: len([]rune(s.text))}, nil
}

type stubExecutor struct {
	mu      sync.Mutex
	replies int
	likes   int
	err     error
}

func (s *stubExecutor) Reply(_ context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.replies++
	return "555", nil
}

func (s *stubExecutor) Quote(_ context.Context, _, _ string) (string, error) {
	return s.Reply(nil, "", "")
}

func (s *stubExecutor) Retweet(_ context.Context, _ string) error {
	_, err := s.Reply(nil, "", "")
	return err
}

func (s *stubExecutor) Like(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.likes++
	return nil
}

func (s *stubExecutor) executed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replies + s.likes
}

type staticPolicy struct{ policy config.Policy }

func (s staticPolicy) Current() config.Policy { return s.policy }

func testPolicy() config.Policy {
	return config.Policy{
		DetectionThreshold:          0.7,
		HighEngagementThreshold:     100,
		ModerateEngagementThreshold: 20,
		MaxResponseLength:           280,
		MaxDailyActions:             50,
		CooldownMinutes:             60,
	}
}

func newTestEngine(classifier Classifier, responder Responder, executor Executor, policy config.Policy, state *RuntimeState) *Engine {
	if state == nil {
		state = NewRuntimeState()
	}
	return New(classifier, responder, executor, staticPolicy{policy}, state, nil, nil)
}

func communityPost(id, counterparty string) models.Post {
	return models.Post{
		ID:                 id,
		Text:               "anyone know a good designer?",
		CounterpartyID:     counterparty,
		CounterpartyHandle: "someone",
		CreatedAt:          time.Now(),
		Engagement:         models.EngagementMetrics{Likes: 5, Retweets: 1},
	}
}

func TestCommunityPostGetsReply(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:              models.CategoryCommunityBuilding,
		Confidence:            0.9,
		Sentiment:             models.SentimentNeutral,
		EngagementOpportunity: true,
	}}
	executor := &stubExecutor{}
	engine := newTestEngine(classifier, &stubResponder{text: "happy to help!", conf: 0.9}, executor, testPolicy(), nil)

	result := engine.ProcessItem(context.Background(), communityPost("p1", "u1"))

	if result.Outcome != models.OutcomeActed {
		t.Fatalf("outcome = %s, want %s (reason: %s)", result.Outcome, models.OutcomeActed, result.Reason)
	}
	if result.Action != models.ActionReply {
		t.Errorf("action = %s, want reply", result.Action)
	}
	if result.ExecutedID != "555" {
		t.Errorf("executed id = %q, want 555", result.ExecutedID)
	}
	if executor.replies != 1 {
		t.Errorf("replies executed = %d, want 1", executor.replies)
	}
}

func TestBelowThresholdIgnored(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:              models.CategoryGeneral,
		Confidence:            0.4,
		Sentiment:             models.SentimentNeutral,
		EngagementOpportunity: true,
	}}
	executor := &stubExecutor{}
	engine := newTestEngine(classifier, &stubResponder{text: "hi"}, executor, testPolicy(), nil)

	result := engine.ProcessItem(context.Background(), communityPost("p1", "u1"))

	if result.Outcome != models.OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", result.Outcome)
	}
	if result.Reason == "" {
		t.Error("ignored outcome must carry reasoning")
	}
	if executor.executed() != 0 {
		t.Errorf("executor ran %d actions, want 0", executor.executed())
	}
}

func TestPriorityKeywordForcesAction(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:   models.CategoryGeneral,
		Confidence: 0.2,
		Sentiment:  models.SentimentNeutral,
	}}
	policy := testPolicy()
	policy.PriorityKeywords = []string{"designer"}
	executor := &stubExecutor{}
	engine := newTestEngine(classifier, &stubResponder{text: "hi"}, executor, policy, nil)

	result := engine.ProcessItem(context.Background(), communityPost("p1", "u1"))

	if result.Outcome != models.OutcomeActed {
		t.Fatalf("outcome = %s, want acted (reason: %s)", result.Outcome, result.Reason)
	}
	if !strings.Contains(result.Reason, "designer") {
		t.Errorf("reason %q should name the matched keyword", result.Reason)
	}
}

func TestCooldownAllowsAtMostOneAction(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:              models.CategoryCommunityBuilding,
		Confidence:            0.9,
		EngagementOpportunity: true,
	}}
	executor := &stubExecutor{}
	engine := newTestEngine(classifier, &stubResponder{text: "hi", conf: 0.9}, executor, testPolicy(), nil)

	posts := []models.Post{communityPost("p1", "same-user"), communityPost("p2", "same-user")}
	results := engine.ProcessBatch(context.Background(), posts, 2)

	acted := 0
	for _, r := range results {
		if r.Outcome == models.OutcomeActed {
			acted++
		} else if r.Reason != ErrCooldownActive.Error() {
			t.Errorf("non-acted item reason = %q, want %q", r.Reason, ErrCooldownActive.Error())
		}
	}
	if acted != 1 {
		t.Fatalf("acted = %d, want exactly 1 within cooldown", acted)
	}
	if executor.executed() != 1 {
		t.Errorf("executor ran %d actions, want 1", executor.executed())
	}
}

func TestDailyQuotaEnforcedUntilReset(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:              models.CategoryCommunityBuilding,
		Confidence:            0.9,
		EngagementOpportunity: true,
	}}
	policy := testPolicy()
	policy.MaxDailyActions = 2
	state := NewRuntimeState()
	engine := newTestEngine(classifier, &stubResponder{text: "hi", conf: 0.9}, &stubExecutor{}, policy, state)

	for i, counterparty := range []string{"u1", "u2"} {
		result := engine.ProcessItem(context.Background(), communityPost("p", counterparty))
		if result.Outcome != models.OutcomeActed {
			t.Fatalf("item %d: outcome = %s, want acted", i, result.Outcome)
		}
	}

	result := engine.ProcessItem(context.Background(), communityPost("p3", "u3"))
	if result.Outcome != models.OutcomeIgnored {
		t.Fatalf("over-quota outcome = %s, want ignored", result.Outcome)
	}
	if !strings.Contains(result.Reason, "quota") {
		t.Errorf("reason %q should cite the quota", result.Reason)
	}

	state.ResetDaily(policy.Cooldown())
	result = engine.ProcessItem(context.Background(), communityPost("p4", "u4"))
	if result.Outcome != models.OutcomeActed {
		t.Errorf("post-reset outcome = %s, want acted", result.Outcome)
	}
}

func TestGenerationFailureReleasesQuota(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:              models.CategorySupportRequest,
		Confidence:            0.9,
		EngagementOpportunity: true,
	}}
	policy := testPolicy()
	policy.MaxDailyActions = 1
	engine := newTestEngine(classifier, &stubResponder{err: errors.New("provider down")}, &stubExecutor{}, policy, nil)

	result := engine.ProcessItem(context.Background(), communityPost("p1", "u1"))
	if result.Outcome != models.OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored on generation failure", result.Outcome)
	}

	// The failed item must not burn the quota slot or start a cooldown.
	snapshot := engine.State().Snapshot(policy.Cooldown())
	if snapshot.DailyActions != 0 {
		t.Errorf("daily actions = %d after release, want 0", snapshot.DailyActions)
	}
}

func TestBlockedTermFlagsWithoutPosting(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:              models.CategorySupportRequest,
		Confidence:            0.9,
		EngagementOpportunity: true,
	}}
	policy := testPolicy()
	policy.BlockedTerms = []string{"refund"}
	executor := &stubExecutor{}
	engine := newTestEngine(classifier, &stubResponder{text: "we will refund you", conf: 0.9}, executor, policy, nil)

	result := engine.ProcessItem(context.Background(), communityPost("p1", "u1"))

	if result.Outcome != models.OutcomeFlagged {
		t.Fatalf("outcome = %s, want flagged", result.Outcome)
	}
	if !strings.Contains(result.Reason, "refund") {
		t.Errorf("reason %q should name the blocked term", result.Reason)
	}
	if executor.executed() != 0 {
		t.Errorf("executor ran %d actions, blocked response must never post", executor.executed())
	}
}

func TestOverlongResponseFlagged(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:              models.CategorySupportRequest,
		Confidence:            0.9,
		EngagementOpportunity: true,
	}}
	policy := testPolicy()
	policy.MaxResponseLength = 10
	executor := &stubExecutor{}
	engine := newTestEngine(classifier, &stubResponder{text: "this reply is much longer than ten characters"}, executor, policy, nil)

	result := engine.ProcessItem(context.Background(), communityPost("p1", "u1"))

	if result.Outcome != models.OutcomeFlagged {
		t.Fatalf("outcome = %s, want flagged", result.Outcome)
	}
	if executor.executed() != 0 {
		t.Error("overlong response must never post")
	}
}

func TestClassifierFailureFallsBackToHeuristics(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("classifier down")}
	engine := newTestEngine(classifier, &stubResponder{text: "hi"}, &stubExecutor{}, testPolicy(), nil)

	post := communityPost("p1", "u1")
	post.Text = "help, the app is broken"
	result := engine.ProcessItem(context.Background(), post)

	if !result.Degraded {
		t.Fatal("result should be marked degraded")
	}
	if result.Category != models.CategorySupportRequest {
		t.Errorf("heuristic category = %s, want support_request", result.Category)
	}
	// Heuristic confidence 0.3 sits below the detection threshold.
	if result.Outcome != models.OutcomeIgnored {
		t.Errorf("outcome = %s, want ignored", result.Outcome)
	}
}

func TestExecutionFailureReleasesQuota(t *testing.T) {
	classifier := &stubClassifier{item: models.ClassifiedItem{
		Category:              models.CategoryCommunityBuilding,
		Confidence:            0.9,
		EngagementOpportunity: true,
	}}
	policy := testPolicy()
	engine := newTestEngine(classifier, &stubResponder{text: "hi", conf: 0.9}, &stubExecutor{err: errors.New("api down")}, policy, nil)

	result := engine.ProcessItem(context.Background(), communityPost("p1", "u1"))
	if result.Outcome != models.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", result.Outcome)
	}

	snapshot := engine.State().Snapshot(policy.Cooldown())
	if snapshot.DailyActions != 0 {
		t.Errorf("daily actions = %d after failed execution, want 0", snapshot.DailyActions)
	}
	if snapshot.ActiveCooldowns != 0 {
		t.Errorf("active cooldowns = %d, failed execution must not start a cooldown", snapshot.ActiveCooldowns)
	}
}

func TestMakeDecision(t *testing.T) {
	policy := testPolicy()
	tests := []struct {
		name       string
		item       models.ClassifiedItem
		engagement models.EngagementMetrics
		wantAct    bool
		wantAction models.ActionKind
	}{
		{
			name: "confident community post replies",
			item: models.ClassifiedItem{
				Category: models.CategoryCommunityBuilding, Confidence: 0.9, EngagementOpportunity: true,
			},
			engagement: models.EngagementMetrics{Likes: 5, Retweets: 1},
			wantAct:    true,
			wantAction: models.ActionReply,
		},
		{
			name: "positive high engagement quotes",
			item: models.ClassifiedItem{
				Category: models.CategoryGeneral, Confidence: 0.8, Sentiment: models.SentimentPositive, EngagementOpportunity: true,
			},
			engagement: models.EngagementMetrics{Likes: 150},
			wantAct:    true,
			wantAction: models.ActionQuote,
		},
		{
			name: "positive moderate engagement retweets",
			item: models.ClassifiedItem{
				Category: models.CategoryGeneral, Confidence: 0.8, Sentiment: models.SentimentPositive, EngagementOpportunity: true,
			},
			engagement: models.EngagementMetrics{Likes: 30},
			wantAct:    true,
			wantAction: models.ActionRetweet,
		},
		{
			name: "high engagement overrides low confidence",
			item: models.ClassifiedItem{
				Category: models.CategoryGeneral, Confidence: 0.3,
			},
			engagement: models.EngagementMetrics{Likes: 200},
			wantAct:    true,
			wantAction: models.ActionLike,
		},
		{
			name: "no opportunity and low engagement ignored",
			item: models.ClassifiedItem{
				Category: models.CategoryGeneral, Confidence: 0.9,
			},
			engagement: models.EngagementMetrics{Likes: 2},
			wantAct:    false,
			wantAction: models.ActionLike,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := models.Post{ID: "p", Text: "some post", Engagement: tt.engagement}
			decision := makeDecision(tt.item, post, policy)
			if decision.ShouldAct != tt.wantAct {
				t.Errorf("shouldAct = %v, want %v", decision.ShouldAct, tt.wantAct)
			}
			if decision.Action != tt.wantAction {
				t.Errorf("action = %s, want %s", decision.Action, tt.wantAction)
			}
			if decision.Confidence > 0.95 {
				t.Errorf("confidence %v exceeds cap", decision.Confidence)
			}
		})
	}
}

func TestDecisionConfidenceFormula(t *testing.T) {
	item := models.ClassifiedItem{Category: models.CategoryGeneral, Confidence: 0.9, EngagementOpportunity: true}
	post := models.Post{Text: "x", Engagement: models.EngagementMetrics{Likes: 50}}

	decision := makeDecision(item, post, testPolicy())

	want := 0.9*0.8 + 0.5*0.2
	if diff := decision.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", decision.Confidence, want)
	}
}
