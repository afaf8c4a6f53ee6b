package geofence

import "time"

// TransitionConfig parameterises the debounce state machine.
type TransitionConfig struct {
	// DebounceScans is how many consecutive scans must agree on a
	// candidate zone before the daemon commits to it. Must be >= 1.
	DebounceScans int

	// ReenterRunsActions controls whether re-matching the zone the
	// daemon is already in re-executes its action plan. Defaults to
	// false: actions are idempotent-by-convention and should not be
	// spammed every scan interval the phone stays in one room.
	ReenterRunsActions bool

	// UnknownSafeFallback, when true, runs UnknownActions once per
	// continuous stay in PhaseInUnknown.
	UnknownSafeFallback bool
	UnknownActions      ZoneActions
}

// DefaultTransitionConfig mirrors the daemon's documented defaults.
var DefaultTransitionConfig = TransitionConfig{DebounceScans: 2}

// Decision is the outcome of feeding one scan's match result into the
// state machine. Commit is true exactly when the caller should invoke
// the action executor with Actions.
type Decision struct {
	Commit      bool
	FromZoneID  string
	ToZoneID    string
	ToZoneName  string
	Actions     ZoneActions
	Score       float64
	RunFallback bool // true when UnknownSafeFallback should fire instead of Actions
}

// Controller runs the zone-transition state machine described by
// DaemonState across successive scans. It holds no fingerprints or
// zones itself; callers pass the current match result each tick.
type Controller struct {
	cfg TransitionConfig
}

// NewController builds a Controller with the given configuration.
func NewController(cfg TransitionConfig) *Controller {
	if cfg.DebounceScans < 1 {
		cfg.DebounceScans = 1
	}
	return &Controller{cfg: cfg}
}

// Step advances the state machine by one scan's match result and returns
// the Decision the caller must act on. It mutates state in place.
func (c *Controller) Step(state *DaemonState, now time.Time, matchedZoneID, matchedZoneName string, score float64) Decision {
	state.LastScanAt = now

	if state.Phase == PhaseShutdown {
		return Decision{}
	}

	if state.Phase == PhaseInitialising {
		state.Phase = PhaseInUnknown
		state.CurrentZoneID = UnknownZoneID
	}

	candidate := matchedZoneID

	if candidate == state.CurrentZoneID {
		// Already settled on this zone (or Unknown); no debounce needed,
		// reset any in-flight candidate from a prior disagreement.
		state.PendingZoneID = ""
		state.PendingCount = 0

		if candidate == UnknownZoneID {
			if c.cfg.UnknownSafeFallback && !state.UnknownEntered {
				state.UnknownEntered = true
				return Decision{RunFallback: true, ToZoneID: UnknownZoneID, ToZoneName: "Unknown", Actions: c.cfg.UnknownActions}
			}
			return Decision{}
		}

		if c.cfg.ReenterRunsActions {
			return Decision{
				Commit:     true,
				FromZoneID: candidate,
				ToZoneID:   candidate,
				ToZoneName: state.CurrentZoneName,
				Score:      score,
			}
		}
		return Decision{}
	}

	// Candidate disagrees with current zone: debounce.
	if candidate == state.PendingZoneID {
		state.PendingCount++
	} else {
		state.PendingZoneID = candidate
		state.PendingCount = 1
	}

	if state.PendingCount < c.cfg.DebounceScans {
		return Decision{}
	}

	// Debounce satisfied: commit the transition.
	from := state.CurrentZoneID
	state.CurrentZoneID = candidate
	state.CurrentZoneName = matchedZoneName
	state.PendingZoneID = ""
	state.PendingCount = 0
	state.UnknownEntered = false

	if candidate == UnknownZoneID {
		state.Phase = PhaseInUnknown
		state.CurrentZoneName = "Unknown"
	} else {
		state.Phase = PhaseInZone
	}

	state.RecordTransition(TransitionEvent{At: now, FromZone: from, ToZone: candidate, Score: score})

	return Decision{
		Commit:     true,
		FromZoneID: from,
		ToZoneID:   candidate,
		ToZoneName: state.CurrentZoneName,
		Score:      score,
	}
}

// Shutdown marks the controller's state as shutting down; subsequent
// Step calls are no-ops until a fresh DaemonState is used.
func (c *Controller) Shutdown(state *DaemonState) {
	state.Phase = PhaseShutdown
}
