// Package scanner collects WiFi and Bluetooth signal readings from the
// host, producing the geofence.SignalFrame the rest of the daemon
// reduces into fingerprints and matches against zones.
package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/mdlayher/genetlink"
	"github.com/vishvananda/netlink"

	"github.com/network-dmenu/geofenced/internal/geofence"
	"github.com/network-dmenu/geofenced/internal/logging"
	"github.com/network-dmenu/geofenced/internal/sysexec"
)

var errNoInterface = errors.New("scanner: no wireless interface available")

// Scanner runs one scan cycle across the available backends.
type Scanner struct {
	exec   sysexec.CommandExecutor
	log    *logging.Logger
	wifi   WifiBackend
	iface  string
	hasNL  bool // whether nl80211 is registered with generic netlink
}

// New probes the host for a usable WiFi backend and interface, logging
// what it finds. It never fails outright: a host with no wireless stack
// simply scans zero WiFi networks every cycle.
func New(log *logging.Logger) *Scanner {
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("scanner")

	s := &Scanner{exec: sysexec.DefaultCommandExecutor, log: log}
	s.hasNL = probeNL80211()
	s.iface = firstWirelessInterface()

	switch {
	case sysexec.LookPath("nmcli"):
		s.wifi = nmcliBackend{}
	case sysexec.LookPath("iwctl"):
		s.wifi = iwctlBackend{}
	default:
		log.Warn("no wifi backend found on PATH (tried nmcli, iwctl)")
	}

	if s.wifi != nil {
		log.Info("wifi backend selected", "backend", s.wifi.Name(), "interface", s.iface, "nl80211", s.hasNL)
	}
	return s
}

// probeNL80211 dials generic netlink and checks whether the nl80211
// family is registered, as a cheap signal that the kernel's cfg80211
// wireless stack is present at all. It does not parse nl80211 itself;
// nmcli/iwctl remain the scan backends, matching spec's design.
func probeNL80211() bool {
	conn, err := genetlink.Dial(nil)
	if err != nil {
		return false
	}
	defer conn.Close()
	families, err := conn.ListFamilies()
	if err != nil {
		return false
	}
	for _, f := range families {
		if f.Name == "nl80211" {
			return true
		}
	}
	return false
}

// firstWirelessInterface returns the name of the first link netlink
// reports as a wireless device, or "" if none is found or the probe
// fails (non-fatal: nmcli then scans without ifname, and iwctl, which
// needs an interface, reports errNoInterface).
func firstWirelessInterface() string {
	links, err := netlink.LinkList()
	if err != nil {
		return ""
	}
	for _, l := range links {
		attrs := l.Attrs()
		if attrs == nil {
			continue
		}
		if _, err := netlink.LinkByName(attrs.Name); err == nil {
			if isWirelessSysfs(attrs.Name) {
				return attrs.Name
			}
		}
	}
	return ""
}

// isWirelessSysfs checks for the presence of /sys/class/net/<iface>/wireless,
// the standard kernel marker for a WiFi-capable interface.
func isWirelessSysfs(iface string) bool {
	_, err := wirelessStat(iface)
	return err == nil
}

// Scan performs one bounded scan cycle across WiFi and Bluetooth,
// returning a SignalFrame timestamped at completion. A WiFi backend error
// fails the cycle, except errNoInterface, which yields an empty WiFi
// list; a Bluetooth error only leaves the Bluetooth list empty.
func (s *Scanner) Scan(ctx context.Context) (geofence.SignalFrame, error) {
	frame := geofence.SignalFrame{}

	if s.wifi != nil {
		nets, err := s.wifi.Scan(ctx, s.exec, s.iface)
		if err != nil {
			s.log.Warn("wifi scan failed", "backend", s.wifi.Name(), "error", err)
			if !errors.Is(err, errNoInterface) {
				return geofence.SignalFrame{}, err
			}
		} else {
			frame.Wifi = nets
		}
	}

	bt, err := ScanBluetooth(ctx, s.exec)
	if err != nil {
		s.log.Warn("bluetooth scan failed", "error", err)
	} else {
		frame.Bluetooth = bt
	}

	frame.Timestamp = time.Now()
	return frame, nil
}
