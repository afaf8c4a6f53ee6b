package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/network-dmenu/geofenced/internal/sysexec"
)

// FirewallController switches the host's active firewall zone. The
// concrete command is intentionally opaque (configurable), since this
// daemon does not own firewall rule management itself.
type FirewallController interface {
	SetZone(ctx context.Context, zone string) error
}

// WifiController joins a WiFi network.
type WifiController interface {
	Connect(ctx context.Context, ssid string) error
}

// VPNController brings a named WireGuard profile up.
type VPNController interface {
	Up(ctx context.Context, profile string) error
}

// TailscaleController drives `tailscale` CLI state.
type TailscaleController interface {
	SetShields(ctx context.Context, state string) error
	SetExitNode(ctx context.Context, node string) error
}

// BluetoothController connects named, previously-bonded devices.
type BluetoothController interface {
	Connect(ctx context.Context, deviceName string) error
}

// execController is the shared base every Real* controller embeds: it
// resolves a device/profile name to the argv needed to act on it and
// runs it through a CommandExecutor.
type execController struct {
	exec sysexec.CommandExecutor
}

// RealFirewallController shells to a configurable zone-switch command,
// e.g. "firewall-cmd --set-default-zone=<zone>" with the zone substituted
// for the literal string "%s" in Command.
type RealFirewallController struct {
	execController
	Command []string // argv template; one element must contain "%s"
}

// NewRealFirewallController builds a RealFirewallController that runs
// command (with "%s" substituted for the target zone) via exec.
func NewRealFirewallController(exec sysexec.CommandExecutor, command []string) *RealFirewallController {
	return &RealFirewallController{execController: execController{exec: exec}, Command: command}
}

// NewRealWifiController builds a RealWifiController backed by exec.
func NewRealWifiController(exec sysexec.CommandExecutor) *RealWifiController {
	return &RealWifiController{execController{exec: exec}}
}

// NewRealBluetoothController builds a RealBluetoothController backed by exec.
func NewRealBluetoothController(exec sysexec.CommandExecutor) *RealBluetoothController {
	return &RealBluetoothController{execController{exec: exec}}
}

func (c *RealFirewallController) SetZone(ctx context.Context, zone string) error {
	if len(c.Command) == 0 {
		return fmt.Errorf("executor: no firewall command configured")
	}
	argv := substitute(c.Command, zone)
	_, err := c.exec.RunCommand(ctx, argv[0], argv[1:]...)
	return err
}

// RealWifiController shells to `nmcli device wifi connect` to join a
// network; without nmcli on PATH, Connect returns an error. An SSID of ""
// or "auto" is a no-op.
type RealWifiController struct{ execController }

func (c *RealWifiController) Connect(ctx context.Context, ssid string) error {
	if ssid == "" || strings.EqualFold(ssid, "auto") {
		return nil
	}
	if sysexec.LookPath("nmcli") {
		_, err := c.exec.RunCommand(ctx, "nmcli", "device", "wifi", "connect", ssid)
		return err
	}
	return fmt.Errorf("executor: no wifi connect backend available")
}

// RealBluetoothController connects a device by first resolving its name
// to an address via `bluetoothctl devices`.
type RealBluetoothController struct{ execController }

func (c *RealBluetoothController) Connect(ctx context.Context, deviceName string) error {
	out, err := c.exec.RunCommand(ctx, "bluetoothctl", "devices")
	if err != nil {
		return err
	}
	addr := ""
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[0] == "Device" && strings.Join(fields[2:], " ") == deviceName {
			addr = fields[1]
			break
		}
	}
	if addr == "" {
		return fmt.Errorf("executor: bluetooth device %q not found", deviceName)
	}
	_, err = c.exec.RunCommand(ctx, "bluetoothctl", "connect", addr)
	return err
}

func substitute(template []string, value string) []string {
	out := make([]string, len(template))
	for i, t := range template {
		out[i] = strings.ReplaceAll(t, "%s", value)
	}
	return out
}
