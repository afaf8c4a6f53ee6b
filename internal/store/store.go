// Package store persists zones and daemon state to JSON files under the
// daemon's data directory, using write-temp-fsync-rename for crash
// atomicity and an advisory flock for single-writer discipline.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/network-dmenu/geofenced/internal/geofence"
	"github.com/network-dmenu/geofenced/internal/logging"
)

// ErrCorrupt is returned (after the corrupt file has been quarantined)
// when an on-disk store file fails to parse as JSON.
var ErrCorrupt = errors.New("store: on-disk file is corrupt, quarantined and reset to empty")

const (
	zonesFile = "zones.json"
	stateFile = "daemon-state.json"
	lockFile  = "zones.json.lock"
)

// Store owns the on-disk representation of zones and daemon state. A
// single Store must not be shared across processes without the lock this
// type takes; within one process it is safe for concurrent use.
type Store struct {
	dir    string
	log    *logging.Logger
	lockFd int
}

// zonesDoc is the on-disk shape of zones.json.
type zonesDoc struct {
	Version int              `json:"version"`
	Zones   []geofence.Zone  `json:"zones"`
}

const zonesSchemaVersion = 1

// Open creates the data directory if needed and acquires the advisory
// lock that guards zones.json. It returns an error if another process
// already holds the lock (AlreadyRunning-style detection for the daemon
// itself lives one layer up, in cmd/geofenced; here it is a plain I/O
// error).
func Open(dir string, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	fd, err := unix.Open(filepath.Join(dir, lockFile), unix.O_CREAT|unix.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("store: open lock file: %w", err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("store: another instance holds the lock: %w", err)
	}
	if log == nil {
		log = logging.Default()
	}
	return &Store{dir: dir, log: log.WithComponent("store"), lockFd: fd}, nil
}

// Close releases the advisory lock.
func (s *Store) Close() error {
	if s.lockFd == 0 {
		return nil
	}
	err := unix.Flock(s.lockFd, unix.LOCK_UN)
	unix.Close(s.lockFd)
	s.lockFd = 0
	return err
}

// writeAtomic writes data to name inside s.dir via a temp file that is
// fsynced and renamed into place, so a crash mid-write never leaves a
// half-written file where name used to be.
func (s *Store) writeAtomic(name string, data []byte) error {
	path := filepath.Join(s.dir, name)

	f, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename into place: %w", err)
	}
	return nil
}

// quarantine moves a corrupt file aside so the caller can start from an
// empty store rather than silently discarding evidence of the corruption.
func (s *Store) quarantine(name string) {
	path := filepath.Join(s.dir, name)
	dest := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, dest); err != nil {
		s.log.Warn("failed to quarantine corrupt file", "file", name, "error", err)
		return
	}
	s.log.Warn("quarantined corrupt store file", "file", name, "quarantined_as", dest)
}

// LoadZones reads zones.json, returning an empty slice (not an error) if
// the file does not yet exist. A corrupt file is quarantined and an
// empty slice returned alongside ErrCorrupt so the caller can decide how
// loudly to report it.
func (s *Store) LoadZones() ([]geofence.Zone, error) {
	path := filepath.Join(s.dir, zonesFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read zones file: %w", err)
	}

	var doc zonesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		s.quarantine(zonesFile)
		return nil, ErrCorrupt
	}
	return doc.Zones, nil
}

// SaveZones atomically overwrites zones.json.
func (s *Store) SaveZones(zones []geofence.Zone) error {
	doc := zonesDoc{Version: zonesSchemaVersion, Zones: zones}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal zones: %w", err)
	}
	return s.writeAtomic(zonesFile, data)
}

// LoadState reads daemon-state.json, returning a freshly-initialising
// state if the file does not exist or is corrupt (quarantined first).
func (s *Store) LoadState() (*geofence.DaemonState, error) {
	path := filepath.Join(s.dir, stateFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &geofence.DaemonState{Phase: geofence.PhaseInitialising}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read state file: %w", err)
	}

	var state geofence.DaemonState
	if err := json.Unmarshal(data, &state); err != nil {
		s.quarantine(stateFile)
		return &geofence.DaemonState{Phase: geofence.PhaseInitialising}, ErrCorrupt
	}
	return &state, nil
}

// SaveState atomically overwrites daemon-state.json.
func (s *Store) SaveState(state *geofence.DaemonState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	return s.writeAtomic(stateFile, data)
}
