package scanner

import "os"

// wirelessStat stats the kernel's wireless marker file for iface.
func wirelessStat(iface string) (os.FileInfo, error) {
	return os.Stat("/sys/class/net/" + iface + "/wireless")
}
