//go:build linux

package health

import "golang.org/x/sys/unix"

// readSysinfo samples available memory and used swap from the kernel.
// Free plus buffer/cache pages approximate "available" closely enough for
// threshold checks.
func readSysinfo() (memAvailable, swapUsed uint64, ok bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, 0, false
	}

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	memAvailable = (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	swapUsed = (uint64(info.Totalswap) - uint64(info.Freeswap)) * unit
	return memAvailable, swapUsed, true
}
