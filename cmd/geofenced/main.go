// Command geofenced is the location-aware network configuration daemon.
// It scans nearby WiFi and Bluetooth signals on an adaptive interval,
// matches them against configured zones, and runs each zone's action
// plan on a debounced transition.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/network-dmenu/geofenced/internal/brand"
	"github.com/network-dmenu/geofenced/internal/clock"
	"github.com/network-dmenu/geofenced/internal/config"
	"github.com/network-dmenu/geofenced/internal/eventlog"
	"github.com/network-dmenu/geofenced/internal/executor"
	"github.com/network-dmenu/geofenced/internal/geofence"
	"github.com/network-dmenu/geofenced/internal/ipc"
	"github.com/network-dmenu/geofenced/internal/logging"
	"github.com/network-dmenu/geofenced/internal/metrics"
	"github.com/network-dmenu/geofenced/internal/notification"
	"github.com/network-dmenu/geofenced/internal/scanner"
	"github.com/network-dmenu/geofenced/internal/scheduler"
	"github.com/network-dmenu/geofenced/internal/store"
	"github.com/network-dmenu/geofenced/internal/sysexec"
	"github.com/network-dmenu/geofenced/internal/vpn"
)

func main() {
	configFile := flag.String("config", filepath.Join(brand.DefaultConfigDir, brand.ConfigFileName), "Configuration file (HCL or JSON)")
	foreground := flag.Bool("foreground", false, "Run in the foreground with console logging unless the config sets log.json (without this flag logs are JSON)")
	flag.Parse()

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "geofenced: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.DataDir == "" {
		cfg.DataDir = brand.GetStateDir()
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = brand.GetSocketPath()
	}

	logCfg := logging.DefaultConfig()
	if lvl, ok := parseLevel(cfg.Log.Level); ok {
		logCfg.Level = lvl
	}
	logCfg.JSON = cfg.Log.JSON || !*foreground
	log := logging.New(logCfg)
	logging.SetDefault(log)
	log = log.WithComponent("daemon")

	if report, err := clock.CheckSanity(""); err != nil {
		log.Warn("clock sanity check failed", "error", err)
	} else if !report.Reasonable {
		log.Warn("system clock looks skewed", "offset", report.Offset, "server", report.Server)
	}

	if err := run(cfg, log); err != nil {
		log.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) (logging.Level, bool) {
	switch s {
	case "debug":
		return logging.LevelDebug, true
	case "info":
		return logging.LevelInfo, true
	case "warn", "warning":
		return logging.LevelWarn, true
	case "error":
		return logging.LevelError, true
	default:
		return logging.LevelInfo, false
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	st, err := store.Open(cfg.DataDir, log)
	if err != nil {
		return fmt.Errorf("another geofenced instance appears to be running: %w", err)
	}
	defer st.Close()

	zones, err := st.LoadZones()
	if err != nil && err != store.ErrCorrupt {
		return fmt.Errorf("load zones: %w", err)
	}
	state, err := st.LoadState()
	if err != nil && err != store.ErrCorrupt {
		return fmt.Errorf("load daemon state: %w", err)
	}
	sh := &sharedState{zones: zones, state: state}

	elog, err := eventlog.Open(filepath.Join(cfg.DataDir, "events.db"), log)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer elog.Close()
	if rows, err := elog.Count(context.Background()); err == nil {
		metrics.Get().EventLogRows.Set(float64(rows))
	}

	notifier := notification.NewDispatcher(&cfg.Notifications, log)

	sc := scanner.New(log)

	privacyMode, _ := geofence.ParsePrivacyMode(cfg.Privacy.Mode)
	weights := geofence.MatchWeights{
		Wifi: cfg.Matcher.WeightWifi, Connected: cfg.Matcher.WeightConnected,
		Signal: cfg.Matcher.WeightSignal, Bluetooth: cfg.Matcher.WeightBluetooth,
	}
	unknownActions := geofence.ZoneActions{FirewallZone: cfg.Transition.FirewallZone}
	controller := geofence.NewController(geofence.TransitionConfig{
		DebounceScans:       cfg.Transition.DebounceScans,
		ReenterRunsActions:  cfg.Transition.ReenterRunsActions,
		UnknownSafeFallback: cfg.Transition.UnknownSafeFallback,
		UnknownActions:      unknownActions,
	})

	exec := buildExecutor(cfg, log)

	ipcSrv := ipc.NewServer(cfg.SocketPath, nil, log)
	ipcSrv.Handler = buildIPCHandler(ipcDeps{
		store:   st,
		shared:  sh,
		log:     log,
		scanner: sc,
		privacy: privacyMode,
		salt:    cfg.Privacy.Salt,
		weights: weights,
	})
	if err := ipcSrv.Start(); err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}
	defer ipcSrv.Shutdown()

	sched := scheduler.New(log)
	reg := &scheduler.MaintenanceRegistry{
		DataDir:   cfg.DataDir,
		BackupDir: filepath.Join(cfg.DataDir, "backups"),
		PruneEvents: func(ctx context.Context, retention time.Duration) (int64, error) {
			n, err := elog.Prune(ctx, retention)
			if err == nil {
				metrics.Get().EventLogPrune.WithLabelValues("ok").Add(float64(n))
				metrics.Get().EventLogRows.Sub(float64(n))
			} else {
				metrics.Get().EventLogPrune.WithLabelValues("error").Inc()
			}
			return n, err
		},
	}
	if err := sched.AddTask(scheduler.NewEventPruneTask(reg, time.Hour, 30*24*time.Hour)); err != nil {
		log.Warn("failed to register event prune task", "error", err)
	}
	if err := sched.AddTask(scheduler.NewZoneBackupTask(reg, scheduler.Every(6*time.Hour), 7)); err != nil {
		log.Warn("failed to register zone backup task", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Metrics.Enabled {
		startLoopbackServer(cfg.Metrics.Addr, "/metrics", promhttp.Handler(), log.WithComponent("metrics"))
	}
	if cfg.Events.Enabled {
		startLoopbackServer(cfg.Events.Addr, "/events", http.HandlerFunc(elog.ServeEvents), log.WithComponent("events"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("geofenced started", "data_dir", cfg.DataDir, "socket", cfg.SocketPath, "privacy", privacyMode.String())

	minInterval := time.Duration(cfg.Scan.MinIntervalSeconds) * time.Second
	maxInterval := time.Duration(cfg.Scan.MaxIntervalSeconds) * time.Second
	if minInterval <= 0 {
		minInterval = 15 * time.Second
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	interval := minInterval

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			sh.mu.Lock()
			controller.Shutdown(sh.state)
			_ = st.SaveState(sh.state)
			sh.mu.Unlock()
			log.Info("geofenced shutting down")
			return nil

		case <-timer.C:
			start := time.Now()
			frame, err := sc.Scan(ctx)
			metrics.Get().RecordScan("combined", outcomeOf(err), time.Since(start).Seconds())
			if err != nil {
				log.Warn("scan cycle failed", "error", err)
				interval = backoff(interval, maxInterval)
				timer.Reset(interval)
				continue
			}

			fp := geofence.BuildFingerprint(frame, privacyMode, cfg.Privacy.Salt)
			metrics.Get().FingerprintSize.WithLabelValues(privacyMode.String()).Set(float64(len(fp.Wifi) + len(fp.Bluetooth)))

			sh.mu.Lock()
			zoneID, score, _ := geofence.BestMatch(fp, sh.zones, weights)
			zoneName := zoneNameFor(sh.zones, zoneID)
			metrics.Get().MatchScore.Observe(score)
			_, runnerUp := geofence.TopTwoScores(fp, sh.zones, weights)
			threshold := thresholdFor(sh.zones, zoneID)

			decision := controller.Step(sh.state, time.Now(), zoneID, zoneName, score)
			if err := st.SaveState(sh.state); err != nil {
				log.Warn("failed to persist daemon state", "error", err)
			}
			fromName := zoneNameFor(sh.zones, decision.FromZoneID)
			plan := actionsFor(sh.zones, decision.ToZoneID)
			sh.mu.Unlock()

			if decision.Commit {
				metrics.Get().RecordTransition(decision.FromZoneID, decision.ToZoneID)
				log.Info("zone transition committed", "from", decision.FromZoneID, "to", decision.ToZoneID, "score", decision.Score)
				recordEvent(ctx, elog, eventlog.TypeZoneEntered, decision.ToZoneID, decision.Score)
				notifier.SendZoneTransition(fromName, decision.ToZoneName)

				if !plan.IsEmpty() {
					report := exec.Run(ctx, decision.ToZoneID, plan)
					for _, step := range report.Steps {
						metrics.Get().RecordActionStep(decision.ToZoneID, step.Name, step.Duration.Seconds(), step.Error)
					}
					recordEvent(ctx, elog, eventlog.TypeActionCompleted, decision.ToZoneID, report)
					if report.Failed() {
						notifier.SendActionOutcome(decision.ToZoneName, failedSteps(report))
					}
				}
			} else if decision.RunFallback {
				log.Info("unknown-zone safe fallback triggered")
				report := exec.Run(ctx, geofence.UnknownZoneID, decision.Actions)
				recordEvent(ctx, elog, eventlog.TypeActionCompleted, geofence.UnknownZoneID, report)
			}

			interval = nextInterval(interval, minInterval, maxInterval, decision.Commit, score, threshold, runnerUp)
			timer.Reset(interval)
		}
	}
}

// stabilityMargin is how far above a zone's threshold (and above the
// runner-up zone's score) a match must sit before the scan interval is
// allowed to grow; closer than this and a transition may be near.
const stabilityMargin = 0.2

// nextInterval implements the adaptive scan cadence: shrink back to the
// minimum right after a transition or whenever the match looks close to
// flipping, and grow toward the maximum while the current zone stays
// stable and well clear of both its threshold and the runner-up zone.
func nextInterval(current, min, max time.Duration, transitioned bool, score, threshold, runnerUp float64) time.Duration {
	if transitioned || threshold <= 0 {
		return min
	}
	if score-threshold < stabilityMargin || score-runnerUp < stabilityMargin {
		return min
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// buildExecutor wires the executor's collaborator controllers from
// configuration, leaving any unconfigured collaborator nil so its steps
// are skipped rather than attempted against a tool that isn't there.
func buildExecutor(cfg *config.Config, log *logging.Logger) *executor.Executor {
	e := executor.New(log)
	if len(cfg.Executor.FirewallCommand) > 0 {
		e.Firewall = executor.NewRealFirewallController(sysexec.DefaultCommandExecutor, cfg.Executor.FirewallCommand)
	}
	if sysexec.LookPath("nmcli") {
		e.Wifi = executor.NewRealWifiController(sysexec.DefaultCommandExecutor)
	}
	e.VPN = vpn.NewWireGuardController(log)
	e.Tailscale = vpn.NewTailscaleController()
	if sysexec.LookPath("bluetoothctl") {
		e.Bluetooth = executor.NewRealBluetoothController(sysexec.DefaultCommandExecutor)
	}
	e.PrivilegeWrap = cfg.Executor.PrivilegeWrap
	return e
}

// recordEvent persists an event and keeps the row-count gauge in sync. A
// persistence failure never aborts the caller's action flow; it is only
// logged.
func recordEvent(ctx context.Context, elog *eventlog.Log, eventType, zoneID string, data any) {
	if err := elog.Record(ctx, eventType, zoneID, data); err != nil {
		logging.Warn("failed to record event", "type", eventType, "error", err)
		return
	}
	metrics.Get().EventLogRows.Inc()
}

func zoneNameFor(zones []geofence.Zone, id string) string {
	if id == geofence.UnknownZoneID {
		return "Unknown"
	}
	for _, z := range zones {
		if z.ID == id {
			return z.Name
		}
	}
	return id
}

func thresholdFor(zones []geofence.Zone, id string) float64 {
	for _, z := range zones {
		if z.ID == id {
			return z.Threshold
		}
	}
	return 0
}

func actionsFor(zones []geofence.Zone, id string) geofence.ZoneActions {
	for _, z := range zones {
		if z.ID == id {
			return z.Actions
		}
	}
	return geofence.ZoneActions{}
}

func failedSteps(r executor.Report) []string {
	var names []string
	for _, s := range r.Steps {
		if s.Error != nil {
			names = append(names, s.Name)
		}
	}
	return names
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// backoff doubles the scan interval up to max, used after a failed scan
// cycle so a host with a flaky backend doesn't spin at the minimum
// interval.
func backoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func startLoopbackServer(addr, path string, handler http.Handler, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("listener started", "addr", addr, "path", path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("listener stopped", "error", err)
		}
	}()
}
