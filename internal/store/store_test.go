package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/network-dmenu/geofenced/internal/geofence"
)

func TestSaveAndLoadZonesRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	zones := []geofence.Zone{{ID: "z1", Name: "Home", Threshold: 0.7}}
	if err := s.SaveZones(zones); err != nil {
		t.Fatalf("SaveZones: %v", err)
	}

	got, err := s.LoadZones()
	if err != nil {
		t.Fatalf("LoadZones: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Home" {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestLoadZonesMissingFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	zones, err := s.LoadZones()
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if zones != nil {
		t.Fatalf("expected nil/empty zones, got %+v", zones)
	}
}

func TestLoadZonesCorruptFileIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, zonesFile), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_, err = s.LoadZones()
	if err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	foundQuarantine := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), zonesFile+".corrupt-") {
			foundQuarantine = true
		}
	}
	if !foundQuarantine {
		t.Fatalf("expected a quarantined corrupt-* file in %v", entries)
	}
}

func TestSecondOpenFailsWhileFirstHoldsLock(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s1.Close()

	if _, err := Open(dir, nil); err == nil {
		t.Fatalf("expected second Open to fail while first holds the lock")
	}
}

func TestStateDefaultsToInitialising(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	state, err := s.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if state.Phase != geofence.PhaseInitialising {
		t.Fatalf("expected PhaseInitialising, got %v", state.Phase)
	}
}
