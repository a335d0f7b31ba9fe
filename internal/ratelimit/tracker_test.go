package ratelimit

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time          { return c.current }
func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func headersFor(remaining int, resetAt time.Time, limit int) http.Header {
	h := http.Header{}
	h.Set("x-rate-limit-remaining", strconv.Itoa(remaining))
	h.Set("x-rate-limit-reset", strconv.FormatInt(resetAt.Unix(), 10))
	if limit > 0 {
		h.Set("x-rate-limit-limit", strconv.Itoa(limit))
	}
	return h
}

func TestTracker_ExhaustedUntilReset(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	tr := NewTrackerWithClock(clock.Now)

	tr.RecordFromResponse("search", headersFor(0, clock.current.Add(60*time.Second), 450))

	if !tr.IsLimited("search") {
		t.Error("endpoint with remaining=0 and future reset should be limited")
	}

	clock.Advance(30 * time.Second)
	if !tr.IsLimited("search") {
		t.Error("should still be limited before reset")
	}

	clock.Advance(31 * time.Second)
	if tr.IsLimited("search") {
		t.Error("should not be limited once reset time has passed")
	}
	// The expired window must be discarded, not reused.
	if d := tr.RetryDelay("search"); d != 0 {
		t.Errorf("retry delay after expiry = %v, want 0", d)
	}
}

func TestTracker_RemainingCallsNotLimited(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	tr := NewTrackerWithClock(clock.Now)

	tr.RecordFromResponse("search", headersFor(3, clock.current.Add(900*time.Second), 450))

	if tr.IsLimited("search") {
		t.Error("endpoint with remaining=3 should not be limited")
	}
	if d := tr.RetryDelay("search"); d != 0 {
		t.Errorf("retry delay with quota left = %v, want 0", d)
	}
}

func TestTracker_RetryDelayIncludesBuffer(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	tr := NewTrackerWithClock(clock.Now)

	tr.RecordFromResponse("search", headersFor(0, clock.current.Add(60*time.Second), 0))

	want := 60*time.Second + RetryBuffer
	if d := tr.RetryDelay("search"); d != want {
		t.Errorf("retry delay = %v, want %v", d, want)
	}
}

func TestTracker_HardLimitError(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		wantDelay  time.Duration
	}{
		{"no hint uses default backoff", 0, DefaultBackoff + RetryBuffer},
		{"short hint raised to default", 10 * time.Second, DefaultBackoff + RetryBuffer},
		{"honored hint", 5 * time.Minute, 5*time.Minute + RetryBuffer},
		{"capped at max backoff", time.Hour, MaxBackoff + RetryBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
			tr := NewTrackerWithClock(clock.Now)

			tr.RecordHardLimitError("tweets", tt.retryAfter)

			if !tr.IsLimited("tweets") {
				t.Fatal("hard limit should mark endpoint as limited")
			}
			if d := tr.RetryDelay("tweets"); d != tt.wantDelay {
				t.Errorf("retry delay = %v, want %v", d, tt.wantDelay)
			}
		})
	}
}

func TestTracker_ResponseOverwritesWindow(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	tr := NewTrackerWithClock(clock.Now)

	tr.RecordHardLimitError("search", 0)
	if !tr.IsLimited("search") {
		t.Fatal("expected limited after hard limit")
	}

	// A later response with fresh quota replaces the synthesized window.
	tr.RecordFromResponse("search", headersFor(100, clock.current.Add(900*time.Second), 450))
	if tr.IsLimited("search") {
		t.Error("fresh response headers should overwrite the exhausted window")
	}
}

func TestTracker_MissingHeadersIgnored(t *testing.T) {
	tr := NewTracker()
	tr.RecordFromResponse("search", http.Header{})
	if tr.IsLimited("search") {
		t.Error("responses without rate headers must not create windows")
	}
}

func TestTracker_ClearAndSnapshot(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	tr := NewTrackerWithClock(clock.Now)

	tr.RecordFromResponse("search", headersFor(0, clock.current.Add(time.Minute), 450))
	tr.RecordFromResponse("tweets", headersFor(40, clock.current.Add(time.Minute), 50))

	snap := tr.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snap))
	}
	for _, s := range snap {
		if s.Endpoint == "search" && (!s.Limited || s.Message == "") {
			t.Errorf("search status should be limited with a message, got %+v", s)
		}
		if s.Endpoint == "tweets" && s.Limited {
			t.Errorf("tweets status should not be limited, got %+v", s)
		}
	}

	tr.Clear("search")
	if tr.IsLimited("search") {
		t.Error("cleared endpoint should not be limited")
	}

	tr.ClearAll()
	if got := len(tr.Snapshot()); got != 0 {
		t.Errorf("snapshot after ClearAll = %d entries, want 0", got)
	}
}
