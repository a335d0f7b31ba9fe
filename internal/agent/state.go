package agent

import (
	"errors"
	"sync"
	"time"
)

// Gate rejection reasons. The engine records these verbatim in audit events.
var (
	ErrDailyQuotaExceeded = errors.New("daily action quota exhausted")
	ErrCooldownActive     = errors.New("rate limited or cooldown")
)

// RuntimeState holds the mutable gate counters: the daily action count and
// per-counterparty cooldowns. All access goes through Reserve/Commit/Release
// so that two items for the same counterparty processed concurrently can
// never both execute inside one cooldown window.
type RuntimeState struct {
	mu           sync.Mutex
	now          func() time.Time
	dailyActions int
	lastReset    time.Time
	lastAction   map[string]time.Time // counterparty -> last committed action
	reserved     map[string]time.Time // counterparty -> in-flight reservation
}

// NewRuntimeState creates state with the wall clock.
func NewRuntimeState() *RuntimeState {
	return NewRuntimeStateWithClock(time.Now)
}

// NewRuntimeStateWithClock creates state with an injected clock for tests.
func NewRuntimeStateWithClock(now func() time.Time) *RuntimeState {
	return &RuntimeState{
		now:        now,
		lastReset:  now(),
		lastAction: make(map[string]time.Time),
		reserved:   make(map[string]time.Time),
	}
}

// Reserve atomically claims a quota slot and the counterparty's cooldown.
// On success the caller must finish with either Commit (action executed)
// or Release (action not executed, slot returned).
func (s *RuntimeState) Reserve(counterpartyID string, maxDaily int, cooldown time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxDaily > 0 && s.dailyActions >= maxDaily {
		return ErrDailyQuotaExceeded
	}
	if _, inFlight := s.reserved[counterpartyID]; inFlight {
		return ErrCooldownActive
	}
	if last, ok := s.lastAction[counterpartyID]; ok && s.now().Sub(last) < cooldown {
		return ErrCooldownActive
	}

	s.dailyActions++
	s.reserved[counterpartyID] = s.now()
	return nil
}

// Commit finalizes a reservation after a successful execution, starting the
// counterparty's cooldown window.
func (s *RuntimeState) Commit(counterpartyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reserved[counterpartyID]; !ok {
		return
	}
	delete(s.reserved, counterpartyID)
	s.lastAction[counterpartyID] = s.now()
}

// Release returns a reserved slot after a failed execution. The quota count
// is rolled back and no cooldown starts, so the item can be retried later.
func (s *RuntimeState) Release(counterpartyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reserved[counterpartyID]; !ok {
		return
	}
	delete(s.reserved, counterpartyID)
	if s.dailyActions > 0 {
		s.dailyActions--
	}
}

// ResetDaily zeroes the daily action counter and prunes cooldown entries
// older than maxCooldown. Called by the scheduled midnight job.
func (s *RuntimeState) ResetDaily(maxCooldown time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dailyActions = 0
	s.lastReset = s.now()
	cutoff := s.now().Add(-maxCooldown)
	for id, t := range s.lastAction {
		if t.Before(cutoff) {
			delete(s.lastAction, id)
		}
	}
}

// Restore seeds the daily counter, used after a restart to rebuild the
// quota from the event store.
func (s *RuntimeState) Restore(dailyActions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyActions = dailyActions
}

// StateSnapshot is a point-in-time view of the gate counters.
type StateSnapshot struct {
	DailyActions    int       `json:"daily_actions"`
	LastReset       time.Time `json:"last_reset"`
	ActiveCooldowns int       `json:"active_cooldowns"`
	InFlight        int       `json:"in_flight"`
}

// Snapshot returns the current gate counters for the status endpoint.
func (s *RuntimeState) Snapshot(cooldown time.Duration) StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	cutoff := s.now().Add(-cooldown)
	for _, t := range s.lastAction {
		if t.After(cutoff) {
			active++
		}
	}
	return StateSnapshot{
		DailyActions:    s.dailyActions,
		LastReset:       s.lastReset,
		ActiveCooldowns: active,
		InFlight:        len(s.reserved),
	}
}
