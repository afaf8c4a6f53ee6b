package geofence

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func TestBuildFingerprintDeterministic(t *testing.T) {
	frame := SignalFrame{
		Timestamp: time.Unix(1000, 0),
		Wifi: []WifiNetwork{
			{SSID: "HomeNet", BSSID: "aa:bb:cc:dd:ee:01", SignalDBM: -42, Connected: true},
			{SSID: "Neighbour", BSSID: "aa:bb:cc:dd:ee:02", SignalDBM: -80},
			{SSID: "", BSSID: "aa:bb:cc:dd:ee:03", SignalDBM: -70}, // hidden, not connected: dropped
		},
	}

	a := BuildFingerprint(frame, PrivacyLow, "salt")
	b := BuildFingerprint(frame, PrivacyLow, "salt")

	if len(a.Wifi) != 2 {
		t.Fatalf("expected hidden network dropped, got %d entries", len(a.Wifi))
	}
	if a.Wifi[0].Key != b.Wifi[0].Key || a.Wifi[1].Key != b.Wifi[1].Key {
		t.Fatalf("fingerprint build is not deterministic: %+v vs %+v", a, b)
	}
	if a.Wifi[0].Key != "AABBCCDDEE01" {
		t.Fatalf("expected strongest signal first, keyed by BSSID, got %q", a.Wifi[0].Key)
	}
}

func TestBuildFingerprintKeepsConnectedHiddenNetwork(t *testing.T) {
	frame := SignalFrame{
		Wifi: []WifiNetwork{
			{SSID: "", BSSID: "aa:bb:cc:dd:ee:01", SignalDBM: -40, Connected: true},
		},
	}
	fp := BuildFingerprint(frame, PrivacyLow, "salt")
	if len(fp.Wifi) != 1 {
		t.Fatalf("connected hidden network must not be dropped, got %d entries", len(fp.Wifi))
	}
	if fp.Wifi[0].Key != "AABBCCDDEE01" {
		t.Fatalf("expected BSSID-keyed entry, got %q", fp.Wifi[0].Key)
	}
}

func TestBuildFingerprintHashesUnderMediumAndHigh(t *testing.T) {
	frame := SignalFrame{Wifi: []WifiNetwork{{SSID: "HomeNet", BSSID: "aa:bb:cc:dd:ee:01", SignalDBM: -40}}}

	low := BuildFingerprint(frame, PrivacyLow, "salt")
	med := BuildFingerprint(frame, PrivacyMedium, "salt")
	high := BuildFingerprint(frame, PrivacyHigh, "salt")

	if low.Wifi[0].Key != "AABBCCDDEE01" {
		t.Fatalf("low privacy must keep the raw normalized BSSID, got %q", low.Wifi[0].Key)
	}
	if med.Wifi[0].Key == "AABBCCDDEE01" || high.Wifi[0].Key == "AABBCCDDEE01" {
		t.Fatalf("medium/high privacy must hash the BSSID")
	}
	if med.Wifi[0].Key != high.Wifi[0].Key {
		t.Fatalf("same salt must produce same hash across medium/high: %q vs %q", med.Wifi[0].Key, high.Wifi[0].Key)
	}

	other := BuildFingerprint(frame, PrivacyMedium, "different-salt")
	if other.Wifi[0].Key == med.Wifi[0].Key {
		t.Fatalf("different salts must not collide")
	}
}

// TestBuildFingerprintScenarioS1 implements the spec's literal fingerprint
// privacy scenario: a single connected WiFi network at -55 dBm, privacy
// High, salt "s", hashes to SHA256("s" + "AABBCCDDEEFF")[0:16] and never
// lets the colon-separated BSSID appear in the result.
func TestBuildFingerprintScenarioS1(t *testing.T) {
	frame := SignalFrame{
		Wifi: []WifiNetwork{
			{SSID: "home", BSSID: "aa:bb:cc:dd:ee:ff", SignalDBM: -55, Connected: true},
		},
	}
	fp := BuildFingerprint(frame, PrivacyHigh, "s")
	if len(fp.Wifi) != 1 {
		t.Fatalf("expected one wifi entry, got %d", len(fp.Wifi))
	}

	sum := sha256.Sum256([]byte("s" + "AABBCCDDEEFF"))
	want := hex.EncodeToString(sum[:])[:16]
	if fp.Wifi[0].Key != want {
		t.Fatalf("expected id %q, got %q", want, fp.Wifi[0].Key)
	}
	if fp.Wifi[0].SignalDBM != -5 {
		t.Fatalf("expected bucket -5, got %d", fp.Wifi[0].SignalDBM)
	}
	if !fp.Wifi[0].Connected {
		t.Fatalf("expected connected=true")
	}
	if fp.Wifi[0].Key == "aa:bb:cc:dd:ee:ff" || fp.Wifi[0].Key == "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("raw BSSID must not appear in hashed output")
	}
}

func TestBuildFingerprintCapsNetworkCount(t *testing.T) {
	frame := SignalFrame{}
	for i := 0; i < MaxFingerprintNetworks+10; i++ {
		frame.Wifi = append(frame.Wifi, WifiNetwork{
			SSID:      string(rune('a' + i%26)),
			BSSID:     "aa:bb:cc:dd:ee:ff",
			SignalDBM: -30 - i,
		})
	}
	fp := BuildFingerprint(frame, PrivacyLow, "")
	if len(fp.Wifi) != MaxFingerprintNetworks {
		t.Fatalf("expected cap at %d, got %d", MaxFingerprintNetworks, len(fp.Wifi))
	}
}

func TestSignalBucket(t *testing.T) {
	cases := []struct {
		dbm  int
		want int
	}{
		{-55, -5},
		{-100, -10},
		{-120, -10},
		{-9, 0},
		{0, 0},
		{5, 0},
	}
	for _, c := range cases {
		if got := signalBucket(c.dbm); got != c.want {
			t.Errorf("signalBucket(%d) = %d, want %d", c.dbm, got, c.want)
		}
	}
}

func TestConfidenceBuckets(t *testing.T) {
	cases := []struct {
		wifi, bt int
		want     float64
	}{
		{0, 0, 0.0},
		{2, 0, 0.3},
		{5, 0, 0.6},
		{10, 0, 0.8},
		{20, 0, 0.9},
		{2, 1, 0.35},
	}
	for _, c := range cases {
		got := confidenceOf(c.wifi, c.bt)
		if got != c.want {
			t.Errorf("confidenceOf(%d,%d) = %v, want %v", c.wifi, c.bt, got, c.want)
		}
	}
}
