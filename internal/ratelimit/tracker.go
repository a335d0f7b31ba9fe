package ratelimit

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultBackoff is used when a 429 arrives without a Retry-After hint.
	DefaultBackoff = 60 * time.Second

	// MaxBackoff caps synthesized windows so callers never stall unboundedly.
	MaxBackoff = 15 * time.Minute

	// RetryBuffer is added on top of the window reset time before retrying.
	RetryBuffer = 2 * time.Second

	// lowWaterMark triggers a warning log when remaining calls drop below it.
	lowWaterMark = 5
)

// Window tracks the server-reported quota for one endpoint.
type Window struct {
	Endpoint  string    `json:"endpoint"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Limit     int       `json:"limit,omitempty"` // 0 when the server didn't report it
}

// Status is a dashboard-friendly view of one window.
type Status struct {
	Endpoint  string    `json:"endpoint"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit,omitempty"`
	ResetAt   time.Time `json:"reset_at"`
	Limited   bool      `json:"limited"`
	Message   string    `json:"message"`
}

// Tracker interprets rate-limit signals handed to it by the gateway. It
// never touches the network itself, which keeps it a pure state machine:
// no window -> active window -> exhausted -> expired -> no window.
type Tracker struct {
	mu      sync.Mutex
	windows map[string]*Window
	now     func() time.Time
}

// NewTracker creates a tracker using the wall clock.
func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock creates a tracker with an injected clock for tests.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		windows: make(map[string]*Window),
		now:     now,
	}
}

// IsLimited reports whether the endpoint is exhausted. An expired window is
// discarded and the endpoint reported as not limited: a stale remaining
// count must never be trusted past its reset time.
func (t *Tracker) IsLimited(endpoint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[endpoint]
	if !ok {
		return false
	}
	if !t.now().Before(w.ResetAt) {
		delete(t.windows, endpoint)
		return false
	}
	return w.Remaining <= 0
}

// RecordFromResponse overwrites the endpoint's window from response headers.
// Understood headers: x-rate-limit-remaining, x-rate-limit-reset (epoch
// seconds), x-rate-limit-limit.
func (t *Tracker) RecordFromResponse(endpoint string, headers http.Header) {
	remaining, err := strconv.Atoi(headers.Get("x-rate-limit-remaining"))
	if err != nil {
		return // no rate headers on this response
	}
	resetEpoch, err := strconv.ParseInt(headers.Get("x-rate-limit-reset"), 10, 64)
	if err != nil {
		return
	}
	limit, _ := strconv.Atoi(headers.Get("x-rate-limit-limit"))

	t.mu.Lock()
	defer t.mu.Unlock()

	t.windows[endpoint] = &Window{
		Endpoint:  endpoint,
		Remaining: remaining,
		ResetAt:   time.Unix(resetEpoch, 0),
		Limit:     limit,
	}

	if remaining <= lowWaterMark {
		log.Printf("⚠️  [RATE-TRACKER] Endpoint %s down to %d calls (resets %s)",
			endpoint, remaining, time.Unix(resetEpoch, 0).Format(time.RFC3339))
	}
}

// RecordHardLimitError synthesizes an exhausted window after the API
// rejected a call as over-quota. retryAfter <= 0 falls back to the default
// backoff; the result is capped at MaxBackoff.
func (t *Tracker) RecordHardLimitError(endpoint string, retryAfter time.Duration) {
	if retryAfter < DefaultBackoff {
		retryAfter = DefaultBackoff
	}
	if retryAfter > MaxBackoff {
		retryAfter = MaxBackoff
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	resetAt := t.now().Add(retryAfter)
	t.windows[endpoint] = &Window{
		Endpoint:  endpoint,
		Remaining: 0,
		ResetAt:   resetAt,
	}
	log.Printf("🚫 [RATE-TRACKER] Hard limit on %s, backing off until %s",
		endpoint, resetAt.Format(time.RFC3339))
}

// RetryDelay returns how long a caller should wait before retrying the
// endpoint, including a small fixed buffer. Zero when not limited.
func (t *Tracker) RetryDelay(endpoint string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[endpoint]
	if !ok {
		return 0
	}
	now := t.now()
	if !now.Before(w.ResetAt) {
		delete(t.windows, endpoint)
		return 0
	}
	if w.Remaining > 0 {
		return 0
	}
	return w.ResetAt.Sub(now) + RetryBuffer
}

// Clear removes the window for one endpoint.
func (t *Tracker) Clear(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, endpoint)
}

// ClearAll removes every tracked window.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = make(map[string]*Window)
	log.Println("🧹 [RATE-TRACKER] All rate windows cleared")
}

// Snapshot returns the current status of every tracked endpoint, with a
// human-readable message for the dashboard. Expired windows are dropped.
func (t *Tracker) Snapshot() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	statuses := make([]Status, 0, len(t.windows))
	for endpoint, w := range t.windows {
		if !now.Before(w.ResetAt) {
			delete(t.windows, endpoint)
			continue
		}
		s := Status{
			Endpoint:  endpoint,
			Remaining: w.Remaining,
			Limit:     w.Limit,
			ResetAt:   w.ResetAt,
			Limited:   w.Remaining <= 0,
		}
		if s.Limited {
			s.Message = fmt.Sprintf("rate limited, try again in %s", w.ResetAt.Sub(now).Round(time.Second))
		} else {
			s.Message = fmt.Sprintf("%d calls remaining until %s", w.Remaining, w.ResetAt.Format(time.Kitchen))
		}
		statuses = append(statuses, s)
	}
	return statuses
}
