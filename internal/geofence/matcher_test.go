package geofence

import "testing"

func fp(keys ...string) Fingerprint {
	var nets []FingerprintNetwork
	for i, k := range keys {
		nets = append(nets, FingerprintNetwork{Key: k, SignalDBM: -40 - i*5})
	}
	return Fingerprint{Wifi: nets}
}

func TestSimilarityIdenticalIsOne(t *testing.T) {
	a := fp("net1", "net2", "net3")
	s := Similarity(a, a, DefaultMatchWeights)
	if s < 0.99 {
		t.Fatalf("identical fingerprints should score ~1.0, got %v", s)
	}
}

func TestSimilarityDisjointIsZero(t *testing.T) {
	a := fp("net1", "net2")
	b := fp("net3", "net4")
	s := Similarity(a, b, DefaultMatchWeights)
	if s != 0 {
		t.Fatalf("disjoint fingerprints should score 0, got %v", s)
	}
}

func TestSimilarityPartialOverlap(t *testing.T) {
	a := fp("net1", "net2")
	b := fp("net2", "net3")
	s := Similarity(a, b, DefaultMatchWeights)
	if s <= 0 || s >= 1 {
		t.Fatalf("partial overlap should score strictly between 0 and 1, got %v", s)
	}
}

func TestBestMatchRespectsThreshold(t *testing.T) {
	live := fp("net1", "net2", "net3")
	zones := []Zone{
		{ID: "z1", Threshold: 0.99, Samples: []Fingerprint{fp("net1")}},
		{ID: "z2", Threshold: 0.2, Samples: []Fingerprint{fp("net1", "net2")}},
	}
	id, score, matched := BestMatch(live, zones, DefaultMatchWeights)
	if !matched || id != "z2" {
		t.Fatalf("expected z2 to match, got id=%q matched=%v score=%v", id, matched, score)
	}
}

func TestBestMatchNoneClearsThresholdReturnsUnknown(t *testing.T) {
	live := fp("netX")
	zones := []Zone{{ID: "z1", Threshold: 0.5, Samples: []Fingerprint{fp("net1")}}}
	id, _, matched := BestMatch(live, zones, DefaultMatchWeights)
	if matched || id != UnknownZoneID {
		t.Fatalf("expected unmatched -> unknown, got id=%q matched=%v", id, matched)
	}
}

func TestBestMatchTieBreaksByLowestID(t *testing.T) {
	live := fp("net1")
	zones := []Zone{
		{ID: "zeta", Threshold: 0.1, Samples: []Fingerprint{fp("net1")}},
		{ID: "alpha", Threshold: 0.1, Samples: []Fingerprint{fp("net1")}},
	}
	id, _, matched := BestMatch(live, zones, DefaultMatchWeights)
	if !matched || id != "alpha" {
		t.Fatalf("expected tie-break to prefer lowest id, got %q", id)
	}
}
