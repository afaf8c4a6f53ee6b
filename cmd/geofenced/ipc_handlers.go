package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/network-dmenu/geofenced/internal/geofence"
	"github.com/network-dmenu/geofenced/internal/ipc"
	"github.com/network-dmenu/geofenced/internal/logging"
	"github.com/network-dmenu/geofenced/internal/metrics"
	"github.com/network-dmenu/geofenced/internal/scanner"
	"github.com/network-dmenu/geofenced/internal/store"

	"github.com/google/uuid"
)

// sharedState guards the zones list and daemon state that both the scan
// loop and the IPC handler goroutines touch.
type sharedState struct {
	mu    sync.Mutex
	zones []geofence.Zone
	state *geofence.DaemonState
}

// ipcDeps bundles the collaborators dispatchIPC needs beyond the shared
// zones/state: it captures a live fingerprint the same way the scan loop
// does, for CreateZone's "use current fingerprint if samples absent" and
// WhereAmI's live diagnostic.
type ipcDeps struct {
	store   *store.Store
	shared  *sharedState
	log     *logging.Logger
	scanner *scanner.Scanner
	privacy geofence.PrivacyMode
	salt    string
	weights geofence.MatchWeights
}

// captureFingerprint scans now and reduces the result into a Fingerprint,
// independent of the daemon's regular adaptive-interval scan loop.
func (d ipcDeps) captureFingerprint(ctx context.Context) (geofence.Fingerprint, error) {
	frame, err := d.scanner.Scan(ctx)
	if err != nil {
		return geofence.Fingerprint{}, fmt.Errorf("capture fingerprint: %w", err)
	}
	return geofence.BuildFingerprint(frame, d.privacy, d.salt), nil
}

// buildIPCHandler closes over the daemon's shared zones/state so
// geofenced-ctl can query and mutate them over the control socket.
func buildIPCHandler(deps ipcDeps) ipc.Handler {
	return func(ctx context.Context, req ipc.Request) ipc.Response {
		start := time.Now()
		resp := dispatchIPC(ctx, deps, req)
		metrics.Get().RecordIPCRequest(string(req.Command), resp.OK, time.Since(start).Seconds())
		return resp
	}
}

func dispatchIPC(ctx context.Context, deps ipcDeps, req ipc.Request) ipc.Response {
	sh := deps.shared
	st := deps.store
	log := deps.log

	switch req.Command {
	case ipc.CmdDaemonStatus:
		sh.mu.Lock()
		state := sh.state
		resp := ipc.MustMarshalResult(ipc.StatusResult{
			Phase:            string(state.Phase),
			CurrentZoneID:    state.CurrentZoneID,
			CurrentZoneName:  state.CurrentZoneName,
			LastScanAt:       state.LastScanAt.Format(time.RFC3339),
			LastTransitionAt: state.LastTransitionAt.Format(time.RFC3339),
			TotalTransitions: state.TotalTransitions,
		})
		sh.mu.Unlock()
		return resp

	case ipc.CmdListZones:
		sh.mu.Lock()
		summaries := make([]ipc.ZoneSummary, 0, len(sh.zones))
		for _, z := range sh.zones {
			summaries = append(summaries, ipc.ZoneSummary{ID: z.ID, Name: z.Name, Threshold: z.Threshold})
		}
		sh.mu.Unlock()
		return ipc.MustMarshalResult(summaries)

	case ipc.CmdCurrentZone:
		sh.mu.Lock()
		resp := ipc.MustMarshalResult(ipc.ZoneSummary{ID: sh.state.CurrentZoneID, Name: sh.state.CurrentZoneName})
		sh.mu.Unlock()
		return resp

	case ipc.CmdWhereAmI:
		fp, err := deps.captureFingerprint(ctx)
		if err != nil {
			return ipc.Response{OK: false, Error: err.Error()}
		}
		sh.mu.Lock()
		scores := make([]ipc.ZoneScore, 0, len(sh.zones))
		for _, z := range sh.zones {
			var best float64
			for _, sample := range z.Samples {
				if s := geofence.Similarity(fp, sample, deps.weights); s > best {
					best = s
				}
			}
			scores = append(scores, ipc.ZoneScore{ZoneID: z.ID, ZoneName: z.Name, Score: best})
		}
		sh.mu.Unlock()
		return ipc.MustMarshalResult(ipc.WhereAmIResult{Fingerprint: fp, Scores: scores})

	case ipc.CmdCreateZone:
		var params ipc.CreateZoneParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ipc.Response{OK: false, Error: fmt.Sprintf("invalid create_zone params: %v", err)}
		}
		if params.Name == "" {
			return ipc.Response{OK: false, Error: "zone name must not be empty"}
		}
		if params.Threshold <= 0 {
			params.Threshold = 0.6
		}

		samples := params.Samples
		if len(samples) == 0 {
			fp, err := deps.captureFingerprint(ctx)
			if err != nil {
				return ipc.Response{OK: false, Error: err.Error()}
			}
			samples = []geofence.Fingerprint{fp}
		}

		var actions geofence.ZoneActions
		if params.Actions != nil {
			actions = *params.Actions
		}

		sh.mu.Lock()
		defer sh.mu.Unlock()
		for _, z := range sh.zones {
			if strings.EqualFold(z.Name, params.Name) {
				return ipc.Response{OK: false, Error: "DuplicateName"}
			}
		}
		zone := geofence.Zone{
			ID:        uuid.NewString(),
			Name:      params.Name,
			Threshold: params.Threshold,
			Samples:   samples,
			Actions:   actions,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		next := append(append([]geofence.Zone{}, sh.zones...), zone)
		if err := st.SaveZones(next); err != nil {
			return ipc.Response{OK: false, Error: fmt.Sprintf("save zone: %v", err)}
		}
		sh.zones = next
		log.Info("zone created", "id", zone.ID, "name", zone.Name, "samples", len(zone.Samples))
		return ipc.MustMarshalResult(ipc.ZoneSummary{ID: zone.ID, Name: zone.Name, Threshold: zone.Threshold})

	case ipc.CmdUpdateZone:
		var params ipc.UpdateZoneParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ipc.Response{OK: false, Error: fmt.Sprintf("invalid update_zone params: %v", err)}
		}
		if params.ID == "" {
			return ipc.Response{OK: false, Error: "zone id must not be empty"}
		}

		sh.mu.Lock()
		defer sh.mu.Unlock()
		idx := indexOfZone(sh.zones, params.ID)
		if idx < 0 {
			return ipc.Response{OK: false, Error: fmt.Sprintf("zone %q not found", params.ID)}
		}
		if params.Name != nil {
			for i, z := range sh.zones {
				if i != idx && strings.EqualFold(z.Name, *params.Name) {
					return ipc.Response{OK: false, Error: "DuplicateName"}
				}
			}
		}

		next := append([]geofence.Zone{}, sh.zones...)
		zone := next[idx]
		if params.Name != nil {
			zone.Name = *params.Name
		}
		if params.Threshold != nil {
			zone.Threshold = *params.Threshold
		}
		if params.Actions != nil {
			zone.Actions = *params.Actions
		}
		if len(params.Samples) > 0 {
			zone.Samples = params.Samples
		}
		zone.UpdatedAt = time.Now()
		next[idx] = zone

		if err := st.SaveZones(next); err != nil {
			return ipc.Response{OK: false, Error: fmt.Sprintf("save zone: %v", err)}
		}
		sh.zones = next
		log.Info("zone updated", "id", zone.ID, "name", zone.Name)
		return ipc.MustMarshalResult(ipc.ZoneSummary{ID: zone.ID, Name: zone.Name, Threshold: zone.Threshold})

	case ipc.CmdDeleteZone:
		var params ipc.DeleteZoneParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ipc.Response{OK: false, Error: fmt.Sprintf("invalid delete_zone params: %v", err)}
		}
		if params.ID == "" {
			return ipc.Response{OK: false, Error: "zone id must not be empty"}
		}

		sh.mu.Lock()
		defer sh.mu.Unlock()
		idx := indexOfZone(sh.zones, params.ID)
		if idx < 0 {
			return ipc.Response{OK: false, Error: fmt.Sprintf("zone %q not found", params.ID)}
		}
		next := append(append([]geofence.Zone{}, sh.zones[:idx]...), sh.zones[idx+1:]...)
		if err := st.SaveZones(next); err != nil {
			return ipc.Response{OK: false, Error: fmt.Sprintf("save zone: %v", err)}
		}
		removed := sh.zones[idx]
		sh.zones = next
		log.Info("zone deleted", "id", removed.ID, "name", removed.Name)
		return ipc.MustMarshalResult(map[string]string{"status": "deleted"})

	case ipc.CmdStopDaemon:
		log.Info("stop requested over control socket")
		go func() {
			time.Sleep(100 * time.Millisecond)
			stopSelf()
		}()
		return ipc.MustMarshalResult(map[string]string{"status": "stopping"})

	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func indexOfZone(zones []geofence.Zone, id string) int {
	for i, z := range zones {
		if z.ID == id {
			return i
		}
	}
	return -1
}

func stopSelf() {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	_ = p.Signal(os.Interrupt)
}
