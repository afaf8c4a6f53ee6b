package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSaveJSONRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geofenced.json")
	cfg := Default()
	cfg.Privacy.Mode = "high"
	cfg.Privacy.Salt = "s3cr3t"

	if err := SaveFile(cfg, path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Privacy.Mode != "high" || got.Privacy.Salt != "s3cr3t" {
		t.Fatalf("roundtrip mismatch: %+v", got.Privacy)
	}
}

func TestLoadHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geofenced.hcl")
	hcl := `
data_dir = "/tmp/geofenced"

privacy {
  mode = "low"
}

scan {
  min_interval_seconds = 10
  max_interval_seconds = 60
}

matcher {
  weight_wifi      = 0.5
  weight_connected = 0.2
  weight_signal    = 0.2
  weight_bluetooth = 0.1
}

transition {
  debounce_scans = 3
}

executor {}

log {
  level = "debug"
}

metrics {}

events {}

notifications {}
`
	if err := os.WriteFile(path, []byte(hcl), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Scan.MinIntervalSeconds != 10 || cfg.Transition.DebounceScans != 3 {
		t.Fatalf("unexpected HCL decode: %+v", cfg)
	}
}

func TestApplyDefaultsFillsZeroFields(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Transition.DebounceScans != 2 {
		t.Fatalf("expected default debounce of 2, got %d", cfg.Transition.DebounceScans)
	}
	if cfg.Matcher.WeightWifi != 0.55 {
		t.Fatalf("expected default matcher weights applied, got %+v", cfg.Matcher)
	}
}
