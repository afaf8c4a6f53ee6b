package geofence

// MatchWeights controls how the four similarity terms combine into one
// score. Defaults match the profile found to generalise best across
// noisy home/office WiFi environments during development.
type MatchWeights struct {
	Wifi      float64 // Jaccard similarity of observed WiFi keys
	Connected float64 // 1.0 if the live connected network's key is present in the sample
	Signal    float64 // fraction of shared networks whose signal buckets differ by at most 1
	Bluetooth float64 // Jaccard similarity of observed Bluetooth keys
}

// DefaultMatchWeights is the weight profile applied unless configuration
// overrides it.
var DefaultMatchWeights = MatchWeights{Wifi: 0.55, Connected: 0.20, Signal: 0.15, Bluetooth: 0.10}

// MatchResult is one candidate zone's score against a live fingerprint.
type MatchResult struct {
	ZoneID string
	Score  float64
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wifiKeySet(nets []FingerprintNetwork) map[string]struct{} {
	s := make(map[string]struct{}, len(nets))
	for _, n := range nets {
		s[n.Key] = struct{}{}
	}
	return s
}

func btKeySet(beacons []FingerprintBeacon) map[string]struct{} {
	s := make(map[string]struct{}, len(beacons))
	for _, b := range beacons {
		s[b.Key] = struct{}{}
	}
	return s
}

// connectedMatch is 1.0 when the live fingerprint's connected network key
// (BSSID-derived, if any) appears among the sample's networks, 0.0 otherwise. When the
// live fingerprint reports no connected network, the term is omitted by
// redistributing its weight (see Similarity).
func connectedMatch(live, sample Fingerprint) (score float64, applicable bool) {
	var liveKey string
	for _, n := range live.Wifi {
		if n.Connected {
			liveKey = n.Key
			applicable = true
			break
		}
	}
	if !applicable {
		return 0, false
	}
	for _, n := range sample.Wifi {
		if n.Key == liveKey {
			return 1.0, true
		}
	}
	return 0.0, true
}

// signalAgreement is the fraction, in [0,1], of networks shared between
// live and sample whose signal buckets differ by at most one. Networks
// present in only one side do not contribute.
func signalAgreement(live, sample Fingerprint) (score float64, applicable bool) {
	sampleByKey := make(map[string]int, len(sample.Wifi))
	for _, n := range sample.Wifi {
		sampleByKey[n.Key] = n.SignalDBM
	}
	var total, agree float64
	for _, n := range live.Wifi {
		sDbm, ok := sampleByKey[n.Key]
		if !ok {
			continue
		}
		total++
		diff := n.SignalDBM - sDbm
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1 {
			agree++
		}
	}
	if total == 0 {
		return 0, false
	}
	return agree / total, true
}

// Similarity computes the weighted-match score between a live fingerprint
// and one of a zone's stored samples. When a term is inapplicable (no
// connected network reported, or no overlapping networks for signal
// agreement), its weight is redistributed proportionally across the
// remaining applicable terms so the score stays in [0,1].
func Similarity(live, sample Fingerprint, w MatchWeights) float64 {
	terms := make(map[string]float64)
	weights := make(map[string]float64)

	terms["wifi"] = jaccard(wifiKeySet(live.Wifi), wifiKeySet(sample.Wifi))
	weights["wifi"] = w.Wifi

	if cm, ok := connectedMatch(live, sample); ok {
		terms["conn"] = cm
		weights["conn"] = w.Connected
	}
	if sa, ok := signalAgreement(live, sample); ok {
		terms["sig"] = sa
		weights["sig"] = w.Signal
	}

	haveBT := len(live.Bluetooth) > 0 || len(sample.Bluetooth) > 0
	if haveBT {
		terms["bt"] = jaccard(btKeySet(live.Bluetooth), btKeySet(sample.Bluetooth))
		weights["bt"] = w.Bluetooth
	}

	var totalWeight float64
	for _, v := range weights {
		totalWeight += v
	}
	if totalWeight == 0 {
		return 0
	}

	var score float64
	for k, wt := range weights {
		score += terms[k] * (wt / totalWeight)
	}
	return score
}

// BestMatch scores a live fingerprint against every sample of every zone
// and returns the best-scoring zone overall (a zone's score is the
// maximum across its own samples), or (UnknownZone.ID, 0, false) if no
// zone clears its own threshold. Ties are broken by the lexicographically
// lowest zone ID, so results are deterministic regardless of map or slice
// iteration order upstream.
func BestMatch(live Fingerprint, zones []Zone, w MatchWeights) (zoneID string, score float64, matched bool) {
	bestID := ""
	bestScore := -1.0
	bestOK := false

	for _, z := range zones {
		var zoneBest float64
		for _, sample := range z.Samples {
			s := Similarity(live, sample, w)
			if s > zoneBest {
				zoneBest = s
			}
		}
		ok := zoneBest >= z.Threshold
		if !ok {
			continue
		}
		if zoneBest > bestScore || (zoneBest == bestScore && (bestID == "" || z.ID < bestID)) {
			bestScore = zoneBest
			bestID = z.ID
			bestOK = true
		}
	}

	if !bestOK {
		return UnknownZoneID, 0, false
	}
	return bestID, bestScore, true
}

// TopTwoScores scores a live fingerprint against every zone's samples
// (ignoring each zone's threshold, unlike BestMatch) and returns the
// highest and second-highest zone scores. It is used to judge how close
// the current match is to flipping to a different zone: a small gap
// means a transition may be near, a wide gap means the match is stable.
// second is 0 when fewer than two zones are configured.
func TopTwoScores(live Fingerprint, zones []Zone, w MatchWeights) (best, second float64) {
	for _, z := range zones {
		var zoneBest float64
		for _, sample := range z.Samples {
			s := Similarity(live, sample, w)
			if s > zoneBest {
				zoneBest = s
			}
		}
		switch {
		case zoneBest > best:
			second = best
			best = zoneBest
		case zoneBest > second:
			second = zoneBest
		}
	}
	return best, second
}
