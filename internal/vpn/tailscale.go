// Package vpn drives the Tailscale CLI and a local WireGuard device on
// behalf of zone action plans. Both controllers are deliberately thin:
// this daemon toggles existing tunnels, it does not provision them.
package vpn

import (
	"context"
	"fmt"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/network-dmenu/geofenced/internal/logging"
	"github.com/network-dmenu/geofenced/internal/sysexec"
)

// reachabilityProbeHost is pinged (best-effort) after an exit-node change
// to log whether the new route is actually working. Failure here never
// fails the action step.
const reachabilityProbeHost = "1.1.1.1"

// TailscaleController sets shields/exit-node state via `tailscale set`.
type TailscaleController struct {
	Exec sysexec.CommandExecutor
	log  *logging.Logger
}

// NewTailscaleController returns a controller using the default executor.
func NewTailscaleController() *TailscaleController {
	return &TailscaleController{Exec: sysexec.DefaultCommandExecutor, log: logging.Default().WithComponent("vpn")}
}

// SetShields toggles Tailscale's shields-up firewall posture.
func (t *TailscaleController) SetShields(ctx context.Context, state string) error {
	var flag string
	switch strings.ToLower(state) {
	case "up":
		flag = "--shields-up=true"
	case "down":
		flag = "--shields-up=false"
	default:
		return fmt.Errorf("vpn: invalid tailscale shields state %q", state)
	}
	_, err := t.Exec.RunCommand(ctx, "tailscale", "set", flag)
	return err
}

// SetExitNode points traffic at the named peer, "auto:any", or clears it
// when node is "" or "none". On success it fires a background
// reachability probe; the probe's outcome is logged only and never
// changes the step's result.
func (t *TailscaleController) SetExitNode(ctx context.Context, node string) error {
	var flag string
	switch strings.ToLower(node) {
	case "", "none":
		flag = "--exit-node="
	case "auto":
		flag = "--exit-node=auto:any"
	default:
		flag = "--exit-node=" + node
	}
	if _, err := t.Exec.RunCommand(ctx, "tailscale", "set", flag); err != nil {
		return err
	}
	if strings.ToLower(node) != "" && strings.ToLower(node) != "none" {
		go t.probeReachability()
	}
	return nil
}

func (t *TailscaleController) probeReachability() {
	pinger, err := probing.NewPinger(reachabilityProbeHost)
	if err != nil {
		return
	}
	pinger.Count = 1
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		t.log.Warn("exit-node reachability probe failed", "error", err)
		return
	}
	if pinger.Statistics().PacketsRecv == 0 {
		t.log.Warn("exit-node reachability probe saw no reply", "host", reachabilityProbeHost)
		return
	}
	t.log.Debug("exit-node reachability probe ok", "host", reachabilityProbeHost, "rtt", pinger.Statistics().AvgRtt)
}
