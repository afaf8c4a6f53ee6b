// Package executor runs a Zone's declared ZoneActions plan in the fixed
// order the daemon promises: firewall, wifi, vpn, tailscale, bluetooth,
// then custom commands. Each step is independent; one step's failure
// does not prevent later steps from running, and every outcome is
// collected into a Report for logging/notification.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/network-dmenu/geofenced/internal/geofence"
	"github.com/network-dmenu/geofenced/internal/logging"
	"github.com/network-dmenu/geofenced/internal/sysexec"
)

// StepTimeout bounds each individual action step so one hung subprocess
// cannot stall an entire plan (or the daemon's shutdown sequence).
const StepTimeout = 10 * time.Second

// StepResult records the outcome of one action within a plan.
type StepResult struct {
	Name     string
	Error    error
	Duration time.Duration
}

// Report is the full outcome of running one ZoneActions plan.
type Report struct {
	ZoneID  string
	Steps   []StepResult
	Started time.Time
	Elapsed time.Duration
}

// Failed reports whether any step in the plan returned an error.
func (r Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Error != nil {
			return true
		}
	}
	return false
}

// Executor holds the collaborator controllers used to run a plan. Any
// field left nil causes that category of step to be skipped with a
// logged warning rather than panicking.
type Executor struct {
	Firewall   FirewallController
	Wifi       WifiController
	VPN        VPNController
	Tailscale  TailscaleController
	Bluetooth  BluetoothController
	ShellExec  sysexec.CommandExecutor
	PrivilegeWrap []string // argv prefix for custom commands needing elevation, e.g. ["sudo"]

	log *logging.Logger
}

// New builds an Executor with the given logger (or the package default).
func New(log *logging.Logger) *Executor {
	if log == nil {
		log = logging.Default()
	}
	return &Executor{ShellExec: sysexec.DefaultCommandExecutor, log: log.WithComponent("executor")}
}

// Run executes plan in the daemon's fixed step order and returns a
// Report describing every step's outcome. ctx's deadline (if any) bounds
// the whole plan; each individual step is additionally capped at
// StepTimeout.
func (e *Executor) Run(ctx context.Context, zoneID string, plan geofence.ZoneActions) Report {
	report := Report{ZoneID: zoneID, Started: time.Now()}

	run := func(name string, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, StepTimeout)
		defer cancel()
		start := time.Now()
		err := fn(stepCtx)
		report.Steps = append(report.Steps, StepResult{Name: name, Error: err, Duration: time.Since(start)})
		if err != nil {
			e.log.Warn("action step failed", "zone", zoneID, "step", name, "error", err)
		}
	}

	if plan.FirewallZone != "" {
		if e.Firewall == nil {
			e.log.Warn("firewall step skipped: no controller configured", "zone", zoneID)
		} else {
			run("firewall_zone", func(c context.Context) error { return e.Firewall.SetZone(c, plan.FirewallZone) })
		}
	}

	if plan.Wifi != "" {
		if e.Wifi == nil {
			e.log.Warn("wifi step skipped: no controller configured", "zone", zoneID)
		} else {
			run("wifi", func(c context.Context) error { return e.Wifi.Connect(c, plan.Wifi) })
		}
	}

	if plan.VPNProfile != "" {
		if e.VPN == nil {
			e.log.Warn("vpn step skipped: no controller configured", "zone", zoneID)
		} else {
			run("vpn", func(c context.Context) error { return e.VPN.Up(c, plan.VPNProfile) })
		}
	}

	if plan.TailscaleShields != "" {
		if e.Tailscale == nil {
			e.log.Warn("tailscale_shields step skipped: no controller configured", "zone", zoneID)
		} else {
			run("tailscale_shields", func(c context.Context) error { return e.Tailscale.SetShields(c, plan.TailscaleShields) })
		}
	}
	if plan.TailscaleExitNode != "" {
		if e.Tailscale == nil {
			e.log.Warn("tailscale_exit_node step skipped: no controller configured", "zone", zoneID)
		} else {
			run("tailscale_exit_node", func(c context.Context) error { return e.Tailscale.SetExitNode(c, plan.TailscaleExitNode) })
		}
	}

	for _, device := range plan.BluetoothConnect {
		device := device
		if e.Bluetooth == nil {
			e.log.Warn("bluetooth step skipped: no controller configured", "zone", zoneID, "device", device)
			continue
		}
		run("bluetooth:"+device, func(c context.Context) error { return e.Bluetooth.Connect(c, device) })
	}

	for _, cmd := range plan.CustomCommands {
		cmd := cmd
		run("custom_command", func(c context.Context) error { return e.runCustomCommand(c, cmd) })
	}

	report.Elapsed = time.Since(report.Started)
	return report
}

// runCustomCommand runs cmd as an argv vector by default. It is only
// routed through a shell when the string contains characters an argv
// split cannot express (pipes, redirection, substitution); this keeps
// the common case free of shell-injection risk from zone configuration.
func (e *Executor) runCustomCommand(ctx context.Context, cmd string) error {
	argv, needsShell := splitCommand(cmd)
	if needsShell {
		argv = append([]string{"sh", "-c"}, cmd)
	} else if len(argv) == 0 {
		return nil
	}
	argv = append(append([]string{}, e.PrivilegeWrap...), argv...)
	_, err := e.ShellExec.RunCommand(ctx, argv[0], argv[1:]...)
	return err
}

const shellMetachars = "|&;<>(){}$`*?[]~\"'\\"

func splitCommand(cmd string) (argv []string, needsShell bool) {
	if strings.ContainsAny(cmd, shellMetachars) {
		return nil, true
	}
	fields, err := splitArgs(cmd)
	if err != nil {
		return nil, true
	}
	return fields, false
}

// splitArgs does a whitespace split, sufficient for "program --flag
// value" style custom commands; anything needing quoting or
// metacharacters is routed through a shell by splitCommand above.
func splitArgs(s string) ([]string, error) {
	return strings.Fields(s), nil
}
