package vpn

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"

	"github.com/network-dmenu/geofenced/internal/logging"
)

// WireGuardController brings a pre-configured WireGuard device
// administratively up. Key material and peer configuration are expected
// to already exist (via wg-quick, NetworkManager, or similar) under the
// device name used as the zone action's profile; this controller only
// toggles link state, matching the "bring this tunnel up/down" scope of
// a zone action rather than full tunnel provisioning.
type WireGuardController struct {
	log *logging.Logger
}

// NewWireGuardController returns a controller that logs through log (or
// the package default logger if nil).
func NewWireGuardController(log *logging.Logger) *WireGuardController {
	if log == nil {
		log = logging.Default()
	}
	return &WireGuardController{log: log.WithComponent("vpn")}
}

// Up verifies profile names a real WireGuard device, then sets its link
// administratively up.
func (w *WireGuardController) Up(ctx context.Context, profile string) error {
	client, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("vpn: open wgctrl: %w", err)
	}
	defer client.Close()

	if _, err := client.Device(profile); err != nil {
		return fmt.Errorf("vpn: wireguard device %q not found: %w", profile, err)
	}

	link, err := netlink.LinkByName(profile)
	if err != nil {
		return fmt.Errorf("vpn: link %q not found: %w", profile, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("vpn: set link %q up: %w", profile, err)
	}
	w.log.Info("wireguard device brought up", "profile", profile)
	return nil
}
