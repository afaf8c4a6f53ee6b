// Package ipc implements the daemon's Unix-domain-socket control
// protocol: one request per connection, a u32 big-endian length prefix
// followed by a UTF-8 JSON body, capped at MaxFrameSize.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/network-dmenu/geofenced/internal/geofence"
)

// MaxFrameSize bounds a single frame to guard against a misbehaving or
// malicious peer claiming an enormous length prefix.
const MaxFrameSize = 1 << 20 // 1 MiB

// CommandKind names a request the CLI client can send.
type CommandKind string

const (
	CmdDaemonStatus CommandKind = "daemon_status"
	CmdListZones    CommandKind = "list_zones"
	CmdCurrentZone  CommandKind = "current_zone"
	CmdWhereAmI     CommandKind = "where_am_i"
	CmdStopDaemon   CommandKind = "stop_daemon"
	CmdCreateZone   CommandKind = "create_zone"
	CmdUpdateZone   CommandKind = "update_zone"
	CmdDeleteZone   CommandKind = "delete_zone"
)

// Request is the envelope sent by the client, length-prefix-framed.
type Request struct {
	Command CommandKind     `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// CreateZoneParams is the Params payload for CmdCreateZone. Samples is
// optional: when empty, the daemon captures its current fingerprint and
// uses that as the zone's sole sample.
type CreateZoneParams struct {
	Name      string                 `json:"name"`
	Threshold float64                `json:"threshold"`
	Samples   []geofence.Fingerprint `json:"samples,omitempty"`
	Actions   *geofence.ZoneActions  `json:"actions,omitempty"`
}

// UpdateZoneParams is the Params payload for CmdUpdateZone. Only non-nil
// fields are applied; the rest of the zone is left unchanged.
type UpdateZoneParams struct {
	ID        string                 `json:"id"`
	Name      *string                `json:"name,omitempty"`
	Threshold *float64               `json:"threshold,omitempty"`
	Actions   *geofence.ZoneActions  `json:"actions,omitempty"`
	Samples   []geofence.Fingerprint `json:"samples,omitempty"`
}

// DeleteZoneParams is the Params payload for CmdDeleteZone.
type DeleteZoneParams struct {
	ID string `json:"id"`
}

// Response is the envelope returned by the daemon.
type Response struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ZoneSummary is the wire shape for zone results (list, current, create,
// update); it omits fingerprint samples, which are never sent over IPC.
type ZoneSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
}

// ZoneScore is one zone's similarity score against a live fingerprint.
type ZoneScore struct {
	ZoneID   string  `json:"zone_id"`
	ZoneName string  `json:"zone_name"`
	Score    float64 `json:"score"`
}

// WhereAmIResult is the wire shape for CmdWhereAmI: a freshly-captured
// fingerprint and every zone's score against it, regardless of threshold.
type WhereAmIResult struct {
	Fingerprint geofence.Fingerprint `json:"fingerprint"`
	Scores      []ZoneScore          `json:"scores"`
}

// StatusResult is the wire shape for CmdDaemonStatus.
type StatusResult struct {
	Phase            string `json:"phase"`
	CurrentZoneID    string `json:"current_zone_id"`
	CurrentZoneName  string `json:"current_zone_name"`
	LastScanAt       string `json:"last_scan_at"`
	LastTransitionAt string `json:"last_transition_at"`
	TotalTransitions int    `json:"total_transitions"`
}

// WriteFrame writes v as length-prefixed JSON to w.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ipc: marshal frame: %w", err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("ipc: frame too large (%d bytes)", len(body))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("ipc: write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("ipc: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame from r into v.
func ReadFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("ipc: read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return fmt.Errorf("ipc: frame declares %d bytes, exceeds max %d", n, MaxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("ipc: read frame body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("ipc: unmarshal frame: %w", err)
	}
	return nil
}
