package agent

import (
	"errors"
	"testing"
	"time"
)

func TestReserveRespectsCooldownUntilElapsed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := NewRuntimeStateWithClock(func() time.Time { return now })
	cooldown := time.Hour

	if err := state.Reserve("u1", 10, cooldown); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	state.Commit("u1")

	if err := state.Reserve("u1", 10, cooldown); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("reserve inside cooldown = %v, want ErrCooldownActive", err)
	}

	now = now.Add(cooldown + time.Second)
	if err := state.Reserve("u1", 10, cooldown); err != nil {
		t.Fatalf("reserve after cooldown failed: %v", err)
	}
}

func TestReserveBlocksWhileReservationInFlight(t *testing.T) {
	state := NewRuntimeState()

	if err := state.Reserve("u1", 10, time.Hour); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	if err := state.Reserve("u1", 10, time.Hour); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("concurrent reserve = %v, want ErrCooldownActive", err)
	}

	// A release frees the counterparty immediately; no cooldown started.
	state.Release("u1")
	if err := state.Reserve("u1", 10, time.Hour); err != nil {
		t.Fatalf("reserve after release failed: %v", err)
	}
}

func TestResetDailyClearsQuotaAndOldCooldowns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := NewRuntimeStateWithClock(func() time.Time { return now })

	if err := state.Reserve("u1", 1, time.Hour); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	state.Commit("u1")

	if err := state.Reserve("u2", 1, time.Hour); !errors.Is(err, ErrDailyQuotaExceeded) {
		t.Fatalf("over-quota reserve = %v, want ErrDailyQuotaExceeded", err)
	}

	now = now.Add(25 * time.Hour)
	state.ResetDaily(time.Hour)

	snapshot := state.Snapshot(time.Hour)
	if snapshot.DailyActions != 0 {
		t.Errorf("daily actions = %d after reset, want 0", snapshot.DailyActions)
	}
	if snapshot.ActiveCooldowns != 0 {
		t.Errorf("active cooldowns = %d after reset, want 0", snapshot.ActiveCooldowns)
	}

	if err := state.Reserve("u1", 1, time.Hour); err != nil {
		t.Errorf("reserve after reset failed: %v", err)
	}
}

func TestRestoreSeedsDailyCounter(t *testing.T) {
	state := NewRuntimeState()
	state.Restore(5)

	if err := state.Reserve("u1", 5, time.Hour); !errors.Is(err, ErrDailyQuotaExceeded) {
		t.Fatalf("reserve with restored quota = %v, want ErrDailyQuotaExceeded", err)
	}
}
