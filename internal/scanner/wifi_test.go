package scanner

import "testing"

func TestParseNmcliWifiList(t *testing.T) {
	out := `HomeNet:AA\:BB\:CC\:DD\:EE\:01:78:2412 MHz:yes
Neighbour\:5G:AA\:BB\:CC\:DD\:EE\:02:40:5180 MHz:no
`
	nets := parseNmcliWifiList(out)
	if len(nets) != 2 {
		t.Fatalf("expected 2 networks, got %d: %+v", len(nets), nets)
	}
	if nets[0].SSID != "HomeNet" || nets[0].BSSID != "aa:bb:cc:dd:ee:01" {
		t.Fatalf("unexpected first network: %+v", nets[0])
	}
	if !nets[0].Connected {
		t.Fatalf("expected first network to be marked connected")
	}
	if nets[1].SSID != "Neighbour:5G" {
		t.Fatalf("expected escaped colon in SSID to be preserved, got %q", nets[1].SSID)
	}
}

func TestPercentToDBM(t *testing.T) {
	cases := map[int]int{0: -100, 100: -50, 78: -61}
	for pct, want := range cases {
		if got := percentToDBM(pct); got != want {
			t.Errorf("percentToDBM(%d) = %d, want %d", pct, got, want)
		}
	}
}

func TestSplitEscaped(t *testing.T) {
	fields := splitEscaped(`a\:b:c:d`, 3)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %v", fields)
	}
	if fields[0] != "a:b" {
		t.Fatalf("expected escaped colon resolved in first field, got %q", fields[0])
	}
}
