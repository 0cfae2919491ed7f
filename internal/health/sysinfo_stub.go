//go:build !linux

package health

// readSysinfo reports memory/swap as unavailable on platforms without the
// sysinfo syscall; the resource report then carries temperature only.
func readSysinfo() (memAvailable, swapUsed uint64, ok bool) {
	return 0, 0, false
}
