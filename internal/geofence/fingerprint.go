package geofence

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// MaxFingerprintNetworks bounds how many WiFi/Bluetooth entries a
// Fingerprint keeps, strongest signal first. Scans routinely see more
// access points than are useful for zone matching; capping keeps
// fingerprints small and comparisons cheap.
const MaxFingerprintNetworks = 16

// signalBucket truncates a dBm reading to a 10 dB-wide bucket and clamps
// it to [-10, 0], matching ordinary RSSI's negative range. -55 dBm falls
// in bucket -5.
func signalBucket(dbm int) int {
	bucket := dbm / 10
	if bucket > 0 {
		return 0
	}
	if bucket < -10 {
		return -10
	}
	return bucket
}

// normalizeBSSID strips ":" separators and upper-cases a BSSID/MAC so the
// same physical radio always hashes to the same identity regardless of
// the scanner backend's formatting.
func normalizeBSSID(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(raw, ":", ""))
}

// hashKey returns the privacy-mode-appropriate key for a raw identity
// string (BSSID or Bluetooth address), already normalized by the caller.
// Low privacy keeps the raw value; Medium and High hash it with a
// daemon-wide salt using SHA-256, truncated to 16 hex characters.
func hashKey(mode PrivacyMode, salt, raw string) string {
	if mode == PrivacyLow {
		return raw
	}
	sum := sha256.Sum256([]byte(salt + raw))
	return hex.EncodeToString(sum[:])[:16]
}

// BuildFingerprint reduces a SignalFrame into a Fingerprint under the
// given privacy mode and salt. It is a pure function: the same frame,
// mode and salt always produce byte-identical output.
func BuildFingerprint(frame SignalFrame, mode PrivacyMode, salt string) Fingerprint {
	wifi := make([]FingerprintNetwork, 0, len(frame.Wifi))
	for _, w := range frame.Wifi {
		if strings.TrimSpace(w.SSID) == "" && !w.Connected {
			// Hidden networks carry no stable identity to match on;
			// drop them rather than let an empty key collide across
			// unrelated hidden networks. A currently-connected hidden
			// AP is kept: it's the one case where we already know the
			// radio identity matters to this zone.
			continue
		}
		wifi = append(wifi, FingerprintNetwork{
			Key:       hashKey(mode, salt, normalizeBSSID(w.BSSID)),
			SignalDBM: signalBucket(w.SignalDBM),
			Connected: w.Connected,
		})
	}
	sort.Slice(wifi, func(i, j int) bool {
		if wifi[i].SignalDBM != wifi[j].SignalDBM {
			return wifi[i].SignalDBM > wifi[j].SignalDBM
		}
		return wifi[i].Key < wifi[j].Key
	})
	if len(wifi) > MaxFingerprintNetworks {
		wifi = wifi[:MaxFingerprintNetworks]
	}

	bt := make([]FingerprintBeacon, 0, len(frame.Bluetooth))
	for _, b := range frame.Bluetooth {
		if mode >= PrivacyHigh {
			// High privacy keeps no Bluetooth evidence at all.
			break
		}
		bt = append(bt, FingerprintBeacon{
			Key:       hashKey(mode, salt, normalizeBSSID(b.Address)),
			SignalDBM: signalBucket(b.SignalDBM),
			Bonded:    b.Bonded,
		})
	}
	sort.Slice(bt, func(i, j int) bool {
		if bt[i].SignalDBM != bt[j].SignalDBM {
			return bt[i].SignalDBM > bt[j].SignalDBM
		}
		return bt[i].Key < bt[j].Key
	})
	if len(bt) > MaxFingerprintNetworks {
		bt = bt[:MaxFingerprintNetworks]
	}

	return Fingerprint{
		CapturedAt: frame.Timestamp,
		Privacy:    mode,
		Wifi:       wifi,
		Bluetooth:  bt,
		Confidence: confidenceOf(len(wifi), len(bt)),
	}
}

// confidenceOf buckets network counts into the informational 0.0-1.0
// confidence heuristic carried over from network-dmenu's fingerprinting,
// with a small boost for corroborating Bluetooth evidence.
func confidenceOf(wifiCount, btCount int) float64 {
	var base float64
	switch {
	case wifiCount == 0:
		base = 0.0
	case wifiCount <= 2:
		base = 0.3
	case wifiCount <= 5:
		base = 0.6
	case wifiCount <= 10:
		base = 0.8
	default:
		base = 0.9
	}
	if btCount > 0 && base < 0.9 {
		base += 0.05
	}
	if base > 1.0 {
		base = 1.0
	}
	return base
}
