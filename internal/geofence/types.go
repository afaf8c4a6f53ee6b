// Package geofence holds the pure data model and decision logic for the
// location-aware network daemon: fingerprints, zones, the similarity
// matcher, and the zone-transition state machine. None of these types
// perform I/O; that is the job of internal/scanner, internal/store and
// internal/executor.
package geofence

import "time"

// PrivacyMode controls how much raw signal identity survives into a
// Fingerprint. Low keeps raw identifiers, Medium hashes them, and High
// hashes them and also drops Bluetooth entries.
type PrivacyMode int

const (
	PrivacyLow PrivacyMode = iota
	PrivacyMedium
	PrivacyHigh
)

func (p PrivacyMode) String() string {
	switch p {
	case PrivacyLow:
		return "low"
	case PrivacyMedium:
		return "medium"
	case PrivacyHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePrivacyMode converts a config string into a PrivacyMode.
func ParsePrivacyMode(s string) (PrivacyMode, bool) {
	switch s {
	case "low":
		return PrivacyLow, true
	case "medium":
		return PrivacyMedium, true
	case "high":
		return PrivacyHigh, true
	default:
		return PrivacyLow, false
	}
}

// WifiNetwork is a single access point observed during one scan.
type WifiNetwork struct {
	SSID      string // empty for hidden networks
	BSSID     string // "aa:bb:cc:dd:ee:ff", lowercase
	SignalDBM int
	FreqMHz   int
	Connected bool
}

// BluetoothDevice is a single discovered or bonded peer.
type BluetoothDevice struct {
	Address   string // "AA:BB:CC:DD:EE:FF"
	Name      string
	SignalDBM int
	Bonded    bool
}

// SignalFrame is the ephemeral result of one scan cycle, before it has
// been reduced into a Fingerprint.
type SignalFrame struct {
	Timestamp time.Time
	Wifi      []WifiNetwork
	Bluetooth []BluetoothDevice
}

// FingerprintNetwork is a deterministically-ordered, optionally-hashed
// network observation stored inside a Fingerprint.
type FingerprintNetwork struct {
	Key       string // normalized BSSID, or hex-hash thereof under Medium/High privacy
	SignalDBM int
	Connected bool
}

// FingerprintBeacon is the Bluetooth analogue of FingerprintNetwork.
type FingerprintBeacon struct {
	Key       string // address, or hex-hash thereof under Medium/High privacy
	SignalDBM int
	Bonded    bool
}

// Fingerprint is the privacy-filtered, deterministic reduction of a
// SignalFrame, suitable for storage in a Zone or comparison by the
// Matcher. Two Fingerprints built from the same SignalFrame and the same
// PrivacyMode are byte-for-byte reproducible.
type Fingerprint struct {
	CapturedAt time.Time
	Privacy    PrivacyMode
	Wifi       []FingerprintNetwork
	Bluetooth  []FingerprintBeacon

	// Confidence is an informational 0.0-1.0 heuristic describing how
	// much evidence this fingerprint carries (more distinct networks
	// seen -> higher confidence). It does not participate in matching;
	// the Matcher's weighted-similarity score is authoritative there.
	Confidence float64
}

// ZoneActions is the declarative plan executed by internal/executor on a
// transition into a Zone. A zero value for any field means "leave
// unchanged" / "no action for this collaborator".
type ZoneActions struct {
	FirewallZone      string   // e.g. "home", "public"; "" = no-op
	Wifi              string   // SSID to join, or "auto"; "" = no-op
	VPNProfile        string   // WireGuard profile name to bring up; "" = no-op
	TailscaleShields  string   // "up", "down"; "" = no-op
	TailscaleExitNode string   // hostname, "auto", or "none"; "" = no-op
	BluetoothConnect  []string // device names to connect, best-effort
	CustomCommands    []string // argv strings run in declared order
}

// IsEmpty reports whether this plan has nothing to execute.
func (a ZoneActions) IsEmpty() bool {
	return a.FirewallZone == "" && a.Wifi == "" && a.VPNProfile == "" &&
		a.TailscaleShields == "" && a.TailscaleExitNode == "" &&
		len(a.BluetoothConnect) == 0 && len(a.CustomCommands) == 0
}

// Zone is a named, persisted location with one or more reference
// fingerprints and a plan of actions to run on entry.
type Zone struct {
	ID        string
	Name      string
	Threshold float64 // minimum similarity score to match, 0.0-1.0
	Samples   []Fingerprint
	Actions   ZoneActions
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnknownZoneID is the sentinel zone id used for the virtual "no zone
// matched" state. It never appears in a ZoneStore's persisted zone list.
const UnknownZoneID = "unknown"

// UnknownZone is the virtual zone the Transition Controller reports when
// no stored zone scores above its threshold.
var UnknownZone = Zone{ID: UnknownZoneID, Name: "Unknown"}

// TransitionPhase names the states of the daemon's state machine.
type TransitionPhase string

const (
	PhaseInitialising TransitionPhase = "initialising"
	PhaseInZone       TransitionPhase = "in_zone"
	PhaseInUnknown    TransitionPhase = "in_unknown"
	PhaseShutdown     TransitionPhase = "shutdown"
)

// TransitionEvent records one committed zone change, kept in a bounded
// ring inside DaemonState for `--daemon-status` and the event log.
type TransitionEvent struct {
	At       time.Time
	FromZone string
	ToZone   string
	Score    float64
}

// DaemonState is the single-writer, persisted record of the daemon's
// current understanding of its own location and history.
type DaemonState struct {
	Phase            TransitionPhase
	CurrentZoneID    string
	CurrentZoneName  string
	PendingZoneID    string // candidate zone during debounce, "" if none
	PendingCount     int    // consecutive scans agreeing with PendingZoneID
	LastScanAt       time.Time
	LastTransitionAt time.Time
	TotalTransitions int
	UnknownEntered   bool // whether the opt-in Unknown fallback already ran for this stay
	History          []TransitionEvent
}

// MaxHistory bounds the in-memory/persisted transition ring.
const MaxHistory = 50

// RecordTransition appends a transition event, trimming History to
// MaxHistory entries (oldest dropped first).
func (s *DaemonState) RecordTransition(ev TransitionEvent) {
	s.History = append(s.History, ev)
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}
	s.TotalTransitions++
	s.LastTransitionAt = ev.At
}
