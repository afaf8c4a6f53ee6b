package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/network-dmenu/geofenced/internal/logging"
)

// MaintenanceRegistry holds the daemon collaborators the auxiliary
// maintenance tasks below act on. These tasks run concurrently with the
// core scan loop; unlike the scan loop they have no serial-execution
// requirement, which is exactly why they live in the generic Scheduler
// instead of the bespoke daemon loop.
type MaintenanceRegistry struct {
	DataDir      string
	BackupDir    string
	PruneEvents  func(ctx context.Context, retention time.Duration) (int64, error)
}

// NewEventPruneTask periodically removes event-log rows older than
// retention.
func NewEventPruneTask(reg *MaintenanceRegistry, interval, retention time.Duration) *Task {
	return &Task{
		ID:          "eventlog-prune",
		Name:        "Event Log Prune",
		Description: "Remove event log entries older than the retention window",
		Schedule:    Every(interval),
		Enabled:     true,
		RunOnStart:  false,
		Timeout:     30 * time.Second,
		Func: func(ctx context.Context) error {
			if reg.PruneEvents == nil {
				return fmt.Errorf("prune function not configured")
			}
			n, err := reg.PruneEvents(ctx, retention)
			if err != nil {
				return err
			}
			if n > 0 {
				logging.Info("pruned old event log entries", "count", n)
			}
			return nil
		},
	}
}

// NewZoneBackupTask periodically snapshots zones.json into BackupDir,
// keeping the keepCount most recent snapshots. This is separate from
// the zone store's own atomic write discipline: it protects against a
// user-triggered mistake (editing/deleting a zone) rather than a crash.
func NewZoneBackupTask(reg *MaintenanceRegistry, schedule Schedule, keepCount int) *Task {
	if keepCount <= 0 {
		keepCount = 7
	}
	return &Task{
		ID:          "zones-backup",
		Name:        "Zones Backup",
		Description: "Snapshot zones.json for accidental-edit recovery",
		Schedule:    schedule,
		Enabled:     true,
		RunOnStart:  false,
		Timeout:     time.Minute,
		Func: func(ctx context.Context) error {
			if reg.BackupDir == "" || reg.DataDir == "" {
				return fmt.Errorf("backup dir or data dir not configured")
			}
			if err := os.MkdirAll(reg.BackupDir, 0o700); err != nil {
				return fmt.Errorf("create backup dir: %w", err)
			}
			src := filepath.Join(reg.DataDir, "zones.json")
			data, err := os.ReadFile(src)
			if os.IsNotExist(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read zones.json: %w", err)
			}
			name := fmt.Sprintf("zones_%s.json", time.Now().Format("2006-01-02_15-04-05.000"))
			if err := os.WriteFile(filepath.Join(reg.BackupDir, name), data, 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			return pruneOldBackups(reg.BackupDir, keepCount)
		},
	}
}

func pruneOldBackups(dir string, keepCount int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	type fileInfo struct {
		name    string
		modTime time.Time
	}
	var files []fileInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), modTime: info.ModTime()})
	}
	if len(files) <= keepCount {
		return nil
	}
	for i := 0; i < len(files)-1; i++ {
		for j := i + 1; j < len(files); j++ {
			if files[i].modTime.After(files[j].modTime) {
				files[i], files[j] = files[j], files[i]
			}
		}
	}
	toDelete := len(files) - keepCount
	for i := 0; i < toDelete; i++ {
		if err := os.Remove(filepath.Join(dir, files[i].name)); err != nil {
			logging.Warn("failed to delete old zone backup", "file", files[i].name, "error", err)
		}
	}
	return nil
}
