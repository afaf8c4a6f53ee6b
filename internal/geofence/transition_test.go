package geofence

import (
	"testing"
	"time"
)

func TestControllerDebouncesBeforeCommitting(t *testing.T) {
	c := NewController(TransitionConfig{DebounceScans: 2})
	state := &DaemonState{Phase: PhaseInitialising}
	now := time.Unix(0, 0)

	d := c.Step(state, now, "zoneA", "Home", 0.9)
	if d.Commit {
		t.Fatalf("first agreeing scan after init must not commit immediately")
	}
	if state.PendingZoneID != "zoneA" || state.PendingCount != 1 {
		t.Fatalf("expected pending state, got %+v", state)
	}

	d = c.Step(state, now.Add(time.Minute), "zoneA", "Home", 0.9)
	if !d.Commit || d.ToZoneID != "zoneA" {
		t.Fatalf("second agreeing scan must commit, got %+v", d)
	}
	if state.Phase != PhaseInZone || state.CurrentZoneID != "zoneA" {
		t.Fatalf("state not updated: %+v", state)
	}
}

func TestControllerResetsPendingOnDisagreement(t *testing.T) {
	c := NewController(TransitionConfig{DebounceScans: 2})
	state := &DaemonState{Phase: PhaseInitialising}
	now := time.Unix(0, 0)

	c.Step(state, now, "zoneA", "Home", 0.9)
	d := c.Step(state, now, "zoneB", "Work", 0.9)
	if d.Commit {
		t.Fatalf("switching candidate should reset debounce, not commit")
	}
	if state.PendingZoneID != "zoneB" || state.PendingCount != 1 {
		t.Fatalf("expected pending reset to zoneB, got %+v", state)
	}
}

func TestControllerNoCommitWhenAlreadyInZone(t *testing.T) {
	c := NewController(TransitionConfig{DebounceScans: 1})
	state := &DaemonState{Phase: PhaseInZone, CurrentZoneID: "zoneA"}
	d := c.Step(state, time.Unix(0, 0), "zoneA", "Home", 0.95)
	if d.Commit {
		t.Fatalf("re-matching the current zone must not recommit / rerun actions")
	}
}

func TestControllerUnknownSafeFallbackFiresOncePerStay(t *testing.T) {
	c := NewController(TransitionConfig{DebounceScans: 1, UnknownSafeFallback: true})
	state := &DaemonState{Phase: PhaseInUnknown, CurrentZoneID: UnknownZoneID}

	d := c.Step(state, time.Unix(0, 0), UnknownZoneID, "Unknown", 0)
	if !d.RunFallback {
		t.Fatalf("expected fallback to fire on first unknown tick")
	}
	d = c.Step(state, time.Unix(1, 0), UnknownZoneID, "Unknown", 0)
	if d.RunFallback {
		t.Fatalf("fallback must not refire while still in Unknown")
	}
}

func TestShutdownStopsProcessing(t *testing.T) {
	c := NewController(DefaultTransitionConfig)
	state := &DaemonState{Phase: PhaseInZone, CurrentZoneID: "zoneA"}
	c.Shutdown(state)
	d := c.Step(state, time.Unix(0, 0), "zoneB", "Work", 0.9)
	if d.Commit {
		t.Fatalf("no transitions should be processed after shutdown")
	}
}
