package thermal

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// SensorUnavailable is the sentinel reading a Source returns when no
// temperature is available on this platform. It is not an error: the
// hysteresis machine simply does not transition on that cycle.
const SensorUnavailable = -1.0

// sysfsThermalPath is where the kernel exposes the CPU thermal zone, in
// millidegrees Celsius.
const sysfsThermalPath = "/sys/class/thermal/thermal_zone0/temp"

// Source supplies temperature readings in Celsius. Implementations must
// return SensorUnavailable rather than failing when the platform has no
// sensor.
type Source func() float64

// SysfsSource reads the CPU temperature from the kernel thermal zone.
// Returns SensorUnavailable on non-Linux platforms, missing hardware, or a
// malformed reading.
func SysfsSource() float64 {
	data, err := os.ReadFile(sysfsThermalPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Default().Debug("Thermal zone not present; temperature monitoring unavailable")
		} else {
			slog.Default().Error("Failed to read CPU temperature", slog.Any("error", err))
		}
		return SensorUnavailable
	}

	millidegrees, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		slog.Default().Error("Malformed thermal zone reading",
			slog.String("raw", strings.TrimSpace(string(data))),
			slog.Any("error", err))
		return SensorUnavailable
	}

	return float64(millidegrees) / 1000.0
}
