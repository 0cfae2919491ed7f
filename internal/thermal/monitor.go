package thermal

import (
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sotto-voice/sotto/internal/lifecycle"
)

// stopPollSlice is how long the sampling loop sleeps between stop checks, so
// shutdown latency stays bounded regardless of the configured check interval.
const stopPollSlice = 500 * time.Millisecond

// Callback observes protection transitions. It is invoked with the new
// protection flag and the temperature that caused the flip, and only when the
// flag actually changed.
type Callback func(protectionActive bool, temperature float64)

// Monitor samples a temperature source on an interval, maintains the
// hysteresis state, and notifies registered observers on transitions.
//
// The admission-control layer registers a callback to pause inference work
// while protection is active and resume it afterward.
type Monitor struct {
	mu        sync.Mutex
	state     State
	callbacks []Callback

	checkInterval time.Duration
	source        Source
	simulate      bool
	simulatedTemp float64

	worker *lifecycle.Worker
	logger *slog.Logger
}

// NewMonitor creates a monitor reading from the platform sensor.
// Returns ErrInvalidThresholds unless resume < trigger.
func NewMonitor(trigger, resume float64, checkInterval time.Duration) (*Monitor, error) {
	return NewMonitorWithSource(trigger, resume, checkInterval, SysfsSource)
}

// NewMonitorWithSource creates a monitor with an injected temperature source.
func NewMonitorWithSource(trigger, resume float64, checkInterval time.Duration, source Source) (*Monitor, error) {
	if err := validateThresholds(trigger, resume); err != nil {
		return nil, err
	}
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}

	m := &Monitor{
		state: State{
			CurrentTemp:      SensorUnavailable,
			TriggerThreshold: trigger,
			ResumeThreshold:  resume,
		},
		checkInterval: checkInterval,
		source:        source,
		logger: slog.Default().With(
			slog.String("component", "thermal.monitor"),
		),
	}

	m.logger.Info("Thermal monitor initialized",
		slog.Float64("trigger_threshold", trigger),
		slog.Float64("resume_threshold", resume),
		slog.Duration("check_interval", checkInterval),
	)

	return m, nil
}

// Temperature returns the current reading from the source, or the simulated
// value when an override is set.
func (m *Monitor) Temperature() float64 {
	m.mu.Lock()
	if m.simulate {
		temp := m.simulatedTemp
		m.mu.Unlock()
		return temp
	}
	source := m.source
	m.mu.Unlock()

	return source()
}

// CheckThermalProtection reads the temperature once, updates the hysteresis
// state, and notifies observers if the protection flag flipped. A sentinel
// reading is a no-op. Called periodically by the sampling loop; safe to call
// directly as well.
func (m *Monitor) CheckThermalProtection() {
	temp := m.Temperature()
	if temp == SensorUnavailable {
		return
	}

	m.mu.Lock()
	changed := m.state.updateTemperature(temp, time.Now())
	active := m.state.ProtectionActive
	callbacks := make([]Callback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	trigger := m.state.TriggerThreshold
	resume := m.state.ResumeThreshold
	m.mu.Unlock()

	if !changed {
		return
	}

	if active {
		m.logger.Warn("Thermal protection triggered",
			slog.Float64("temperature", temp),
			slog.Float64("trigger_threshold", trigger),
		)
	} else {
		m.logger.Info("Thermal protection resumed",
			slog.Float64("temperature", temp),
			slog.Float64("resume_threshold", resume),
		)
	}

	m.notify(callbacks, active, temp)
}

// notify invokes each observer outside the monitor lock. A panicking observer
// is logged and does not prevent the remaining observers from running.
func (m *Monitor) notify(callbacks []Callback, active bool, temp float64) {
	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("Thermal callback panicked",
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())),
					)
				}
			}()
			cb(active, temp)
		}()
	}
}

// RegisterCallback adds an observer for protection transitions. Registering
// the same function twice is a no-op; multiple distinct observers are
// supported. Identity is the function's entry point, so two closures built
// from the same function body count as the same callback.
func (m *Monitor) RegisterCallback(cb Callback) {
	if cb == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ptr := reflect.ValueOf(cb).Pointer()
	for _, existing := range m.callbacks {
		if reflect.ValueOf(existing).Pointer() == ptr {
			m.logger.Debug("Thermal callback already registered")
			return
		}
	}

	m.callbacks = append(m.callbacks, cb)
}

// StartMonitoring launches the background sampling loop. Does nothing if
// monitoring is already active.
func (m *Monitor) StartMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.worker != nil {
		m.logger.Warn("Thermal monitoring already active")
		return
	}

	m.logger.Info("Starting thermal monitoring")
	m.worker = lifecycle.New("thermal-monitor", m.samplingLoop)
	m.worker.Start()
}

// StopMonitoring stops the background sampling loop and waits for it with a
// bounded timeout. Does nothing if monitoring is not active.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	worker := m.worker
	m.worker = nil
	m.mu.Unlock()

	if worker == nil {
		m.logger.Warn("Thermal monitoring not active")
		return
	}

	m.logger.Info("Stopping thermal monitoring")
	worker.Stop()
	if !worker.Join(m.checkInterval + 2*time.Second) {
		m.logger.Error("Thermal monitoring loop did not stop within timeout")
	}
}

// samplingLoop checks the temperature every checkInterval, sleeping in small
// slices so a stop request is honored within stopPollSlice.
func (m *Monitor) samplingLoop(w *lifecycle.Worker) {
	for !w.ShouldStop() {
		m.CheckThermalProtection()

		for elapsed := time.Duration(0); elapsed < m.checkInterval && !w.ShouldStop(); elapsed += stopPollSlice {
			time.Sleep(stopPollSlice)
		}
	}
}

// SetThresholds reconfigures both thresholds. The resulting pair must keep
// the hysteresis gap; an invalid pair is rejected and the current thresholds
// are left untouched. Reconfiguration never forces a transition: the next
// sampled reading governs.
func (m *Monitor) SetThresholds(trigger, resume float64) error {
	if err := validateThresholds(trigger, resume); err != nil {
		return err
	}

	m.mu.Lock()
	m.state.TriggerThreshold = trigger
	m.state.ResumeThreshold = resume
	m.mu.Unlock()

	m.logger.Info("Thermal thresholds updated",
		slog.Float64("trigger_threshold", trigger),
		slog.Float64("resume_threshold", resume),
	)
	return nil
}

// SetTriggerThreshold updates only the trigger threshold, validating against
// the current resume threshold.
func (m *Monitor) SetTriggerThreshold(trigger float64) error {
	m.mu.Lock()
	resume := m.state.ResumeThreshold
	m.mu.Unlock()
	return m.SetThresholds(trigger, resume)
}

// SetResumeThreshold updates only the resume threshold, validating against
// the current trigger threshold.
func (m *Monitor) SetResumeThreshold(resume float64) error {
	m.mu.Lock()
	trigger := m.state.TriggerThreshold
	m.mu.Unlock()
	return m.SetThresholds(trigger, resume)
}

// Simulate sets a fixed temperature that bypasses the source on subsequent
// reads. All other control paths are unaffected, so tests can drive the
// hysteresis machine deterministically.
func (m *Monitor) Simulate(temp float64) {
	m.mu.Lock()
	m.simulate = true
	m.simulatedTemp = temp
	m.mu.Unlock()

	m.logger.Debug("Simulated temperature set", slog.Float64("temperature", temp))
}

// GetState returns a copy of the current thermal state.
func (m *Monitor) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
