// Package health reports coarse resource status for the host the service
// runs on: CPU temperature against throttle/emergency thresholds, available
// memory, and swap pressure. The surrounding service folds the report into
// its health endpoint; this package only gathers and classifies.
package health

import (
	"fmt"
	"log/slog"

	"github.com/sotto-voice/sotto/internal/thermal"
)

// Temperature thresholds in Celsius for Pi 5 class hardware.
const (
	// TempWarning is where the CPU approaches its throttle point.
	TempWarning = 75.0
	// TempCritical is where CPU throttling is active.
	TempCritical = 80.0
	// TempEmergency is where shutdown should be considered.
	TempEmergency = 85.0
)

// Memory and swap thresholds in bytes.
const (
	memoryLowBytes      = 1 << 30         // 1GB
	memoryCriticalBytes = 500 * (1 << 20) // 500MB
	swapHighBytes       = 2 << 30         // 2GB
	swapCriticalBytes   = 4 << 30         // 4GB
)

// Status is the coarse health classification used in diagnostics output.
type Status string

// Status values, from best to worst.
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Metrics holds the raw samples behind a Report.
type Metrics struct {
	CPUTempCelsius       float64
	MemoryAvailableBytes uint64
	SwapUsedBytes        uint64
}

// Report is a point-in-time resource assessment.
type Report struct {
	Status  Status
	Metrics Metrics
	Alerts  []string
}

// TemperatureStatus classifies a CPU temperature reading.
//
// Below 75°C is healthy; 75-80°C is healthy with a logged warning
// (approaching throttle); 80-85°C is unhealthy (throttling active); 85°C and
// above is unhealthy (emergency). The sensor-unavailable sentinel is treated
// as healthy since absence of a sensor is not a fault.
func TemperatureStatus(temp float64) (Status, string) {
	logger := slog.Default().With(slog.String("component", "health"))

	if temp == thermal.SensorUnavailable {
		return StatusHealthy, "CPU temperature monitoring unavailable"
	}

	switch {
	case temp >= TempEmergency:
		msg := fmt.Sprintf("CPU temperature critical: %.1f°C (emergency)", temp)
		logger.Error("CPU temperature critical; emergency shutdown recommended",
			slog.Float64("temperature", temp))
		return StatusUnhealthy, msg

	case temp >= TempCritical:
		msg := fmt.Sprintf("CPU temperature high: %.1f°C (throttling)", temp)
		logger.Error("CPU temperature high; throttling active",
			slog.Float64("temperature", temp))
		return StatusUnhealthy, msg

	case temp >= TempWarning:
		msg := fmt.Sprintf("CPU temperature elevated: %.1f°C (warning)", temp)
		logger.Warn("CPU temperature approaching throttle point",
			slog.Float64("temperature", temp))
		return StatusHealthy, msg

	default:
		return StatusHealthy, fmt.Sprintf("CPU temperature normal: %.1f°C", temp)
	}
}

// ResourceReport samples temperature from source plus memory and swap from
// the kernel and classifies the combined result. Memory and swap checks are
// skipped on platforms where sysinfo is unavailable.
func ResourceReport(source thermal.Source) Report {
	temp := source()
	tempStatus, tempMessage := TemperatureStatus(temp)

	report := Report{
		Status: tempStatus,
		Metrics: Metrics{
			CPUTempCelsius: temp,
		},
	}
	if tempStatus != StatusHealthy {
		report.Alerts = append(report.Alerts, tempMessage)
	}

	memAvailable, swapUsed, ok := readSysinfo()
	if !ok {
		return report
	}
	report.Metrics.MemoryAvailableBytes = memAvailable
	report.Metrics.SwapUsedBytes = swapUsed

	memAvailableGB := float64(memAvailable) / (1 << 30)
	switch {
	case memAvailable <= memoryCriticalBytes:
		report.Status = StatusUnhealthy
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("Critical memory: %.2fGB available", memAvailableGB))
	case memAvailable <= memoryLowBytes:
		report.Status = worseOf(report.Status, StatusDegraded)
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("Low memory: %.2fGB available", memAvailableGB))
	}

	swapUsedGB := float64(swapUsed) / (1 << 30)
	switch {
	case swapUsed >= swapCriticalBytes:
		report.Status = StatusUnhealthy
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("Critical swap: %.2fGB used", swapUsedGB))
	case swapUsed >= swapHighBytes:
		report.Status = worseOf(report.Status, StatusDegraded)
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("High swap: %.2fGB used", swapUsedGB))
	}

	return report
}

// worseOf keeps the more severe of two statuses.
func worseOf(current, candidate Status) Status {
	rank := map[Status]int{
		StatusHealthy:   0,
		StatusDegraded:  1,
		StatusUnhealthy: 2,
	}
	if rank[candidate] > rank[current] {
		return candidate
	}
	return current
}
