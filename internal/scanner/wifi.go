package scanner

import (
	"context"
	"strconv"
	"strings"

	"github.com/network-dmenu/geofenced/internal/geofence"
	"github.com/network-dmenu/geofenced/internal/sysexec"
)

// WifiBackend abstracts the command-line tool used to list nearby access
// points, so nmcli and iwctl can share one scanner implementation.
type WifiBackend interface {
	Name() string
	Scan(ctx context.Context, exec sysexec.CommandExecutor, iface string) ([]geofence.WifiNetwork, error)
}

// nmcliBackend shells out to `nmcli -t -f ... device wifi list`, the
// preferred backend on NetworkManager-managed systems.
type nmcliBackend struct{}

func (nmcliBackend) Name() string { return "nmcli" }

func (nmcliBackend) Scan(ctx context.Context, exec sysexec.CommandExecutor, iface string) ([]geofence.WifiNetwork, error) {
	args := []string{"-t", "-f", "SSID,BSSID,SIGNAL,FREQ,ACTIVE", "device", "wifi", "list", "--rescan", "yes"}
	if iface != "" {
		args = append(args, "ifname", iface)
	}
	out, err := exec.RunCommand(ctx, "nmcli", args...)
	if err != nil {
		return nil, err
	}
	return parseNmcliWifiList(out), nil
}

// parseNmcliWifiList parses nmcli's terse (-t) colon-separated output.
// Fields inside SSID/BSSID may themselves contain a colon escaped as
// "\:"; splitEscaped walks past escaped colons the way the BSSID parser
// in network-dmenu's original fingerprinting code does, since nmcli
// escapes colons identically in both fields.
func parseNmcliWifiList(out string) []geofence.WifiNetwork {
	var nets []geofence.WifiNetwork
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitEscaped(line, 5)
		if len(fields) < 5 {
			continue
		}
		ssid := fields[0]
		bssid := fields[1]
		signalPct, _ := strconv.Atoi(fields[2])
		freq, _ := strconv.Atoi(strings.TrimSuffix(strings.Fields(fields[3])[0], "MHz"))
		active := strings.EqualFold(fields[4], "yes")

		nets = append(nets, geofence.WifiNetwork{
			SSID:      ssid,
			BSSID:     strings.ToLower(bssid),
			SignalDBM: percentToDBM(signalPct),
			FreqMHz:   freq,
			Connected: active,
		})
	}
	return nets
}

// splitEscaped splits line on unescaped colons into at most n fields,
// mirroring nmcli's own escaping convention (colons inside a field value
// are written as "\:").
func splitEscaped(line string, n int) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':' && len(fields) < n-1:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// percentToDBM converts nmcli's 0-100 signal quality percentage into an
// approximate dBm reading, so WiFi and iwctl-sourced readings (already in
// dBm) can be compared on the same scale.
func percentToDBM(percent int) int {
	return percent/2 - 100
}

// iwctlBackend shells out to `iwctl station <iface> get-networks`, used
// when NetworkManager is not present (e.g. a bare iwd setup).
type iwctlBackend struct{}

func (iwctlBackend) Name() string { return "iwctl" }

func (iwctlBackend) Scan(ctx context.Context, exec sysexec.CommandExecutor, iface string) ([]geofence.WifiNetwork, error) {
	if iface == "" {
		return nil, errNoInterface
	}
	out, err := exec.RunCommand(ctx, "iwctl", "station", iface, "get-networks")
	if err != nil {
		return nil, err
	}
	return parseIwctlNetworks(out), nil
}

// parseIwctlNetworks parses iwctl's human-readable table, which has no
// stable machine format; this reads the fixed-width columns iwctl has
// shipped since its introduction ("SSID", security, signal bars).
func parseIwctlNetworks(out string) []geofence.WifiNetwork {
	var nets []geofence.WifiNetwork
	lines := strings.Split(out, "\n")
	started := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !started {
			if strings.Contains(trimmed, "----") {
				started = true
			}
			continue
		}
		if trimmed == "" {
			continue
		}
		connected := strings.HasPrefix(trimmed, ">")
		trimmed = strings.TrimPrefix(trimmed, ">")
		trimmed = strings.TrimSpace(trimmed)
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		// Last field is the signal bar glyphs; SSID is everything
		// before the security token (second-to-last field).
		ssid := strings.Join(fields[:len(fields)-2], " ")
		nets = append(nets, geofence.WifiNetwork{
			SSID:      ssid,
			SignalDBM: barsToDBM(fields[len(fields)-1]),
			Connected: connected,
		})
	}
	return nets
}

// barsToDBM converts iwctl's bar glyph column into an approximate dBm
// bucket; iwctl does not expose a raw numeric signal value.
func barsToDBM(bars string) int {
	n := len([]rune(bars))
	switch {
	case n >= 4:
		return -40
	case n == 3:
		return -60
	case n == 2:
		return -75
	default:
		return -90
	}
}
