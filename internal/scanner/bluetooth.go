package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/network-dmenu/geofenced/internal/geofence"
	"github.com/network-dmenu/geofenced/internal/sysexec"
)

// BluetoothScanTimeout bounds the whole scan-on/devices/scan-off sequence,
// matching the hard timeout network-dmenu's original daemon used to keep
// a missing or wedged controller from stalling a scan cycle.
const BluetoothScanTimeout = 2 * time.Second

// ScanBluetooth discovers nearby and bonded Bluetooth peers via
// bluetoothctl. It first checks the controller is powered; if not, it
// returns no devices rather than erroring, since a missing adapter is a
// normal desktop configuration, not a scan failure.
func ScanBluetooth(ctx context.Context, exec sysexec.CommandExecutor) ([]geofence.BluetoothDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, BluetoothScanTimeout)
	defer cancel()

	show, err := exec.RunCommand(ctx, "bluetoothctl", "show")
	if err != nil || !strings.Contains(show, "Powered: yes") {
		return nil, nil
	}

	if _, err := exec.RunCommand(ctx, "bluetoothctl", "--timeout", "2", "scan", "on"); err != nil {
		return nil, err
	}

	out, err := exec.RunCommand(ctx, "bluetoothctl", "devices")
	_, _ = exec.RunCommand(ctx, "bluetoothctl", "scan", "off")
	if err != nil {
		return nil, err
	}

	bonded := bondedAddresses(ctx, exec)

	var devices []geofence.BluetoothDevice
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "Device" {
			continue
		}
		addr := fields[1]
		name := strings.Join(fields[2:], " ")
		devices = append(devices, geofence.BluetoothDevice{
			Address: addr,
			Name:    name,
			Bonded:  bonded[addr],
			// bluetoothctl devices does not report RSSI; per-device
			// signal strength would require `bluetoothctl info <addr>`
			// per peer, which the 2s scan budget does not afford.
			SignalDBM: 0,
		})
	}
	return devices, nil
}

func bondedAddresses(ctx context.Context, exec sysexec.CommandExecutor) map[string]bool {
	out, err := exec.RunCommand(ctx, "bluetoothctl", "devices", "Bonded")
	bonded := make(map[string]bool)
	if err != nil {
		return bonded
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "Device" {
			bonded[fields[1]] = true
		}
	}
	return bonded
}
