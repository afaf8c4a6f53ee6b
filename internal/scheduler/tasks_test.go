package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestZoneBackupTaskSnapshotsAndPrunes(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dataDir, "zones.json"), []byte(`{"zones":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	reg := &MaintenanceRegistry{DataDir: dataDir, BackupDir: backupDir}
	task := NewZoneBackupTask(reg, Every(time.Hour), 2)

	for i := 0; i < 3; i++ {
		if err := task.Func(context.Background()); err != nil {
			t.Fatalf("backup run %d: %v", i, err)
		}
		time.Sleep(time.Millisecond) // ensure distinct filenames/modtimes
	}

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) > 2 {
		t.Fatalf("expected pruning to cap backups at 2, got %d", len(entries))
	}
}

func TestEventPruneTaskCallsRegisteredFunc(t *testing.T) {
	called := false
	reg := &MaintenanceRegistry{
		PruneEvents: func(ctx context.Context, retention time.Duration) (int64, error) {
			called = true
			return 3, nil
		},
	}
	task := NewEventPruneTask(reg, time.Hour, 24*time.Hour)
	if err := task.Func(context.Background()); err != nil {
		t.Fatalf("Func: %v", err)
	}
	if !called {
		t.Fatal("expected PruneEvents to be called")
	}
}
