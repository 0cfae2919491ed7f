package thermal_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotto-voice/sotto/internal/thermal"
)

// transitionRecorder collects callback invocations for assertions.
type transitionRecorder struct {
	mu    sync.Mutex
	calls []transition
}

type transition struct {
	active bool
	temp   float64
}

func (r *transitionRecorder) callback() thermal.Callback {
	return func(active bool, temp float64) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, transition{active: active, temp: temp})
	}
}

func (r *transitionRecorder) snapshot() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transition, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestNewMonitor_ThresholdValidation(t *testing.T) {
	_, err := thermal.NewMonitor(85, 85, time.Second)
	require.ErrorIs(t, err, thermal.ErrInvalidThresholds)

	_, err = thermal.NewMonitor(80, 85, time.Second)
	require.ErrorIs(t, err, thermal.ErrInvalidThresholds)

	m, err := thermal.NewMonitor(85, 80, time.Second)
	require.NoError(t, err)
	require.NotNil(t, m)

	state := m.GetState()
	assert.Equal(t, 85.0, state.TriggerThreshold)
	assert.Equal(t, 80.0, state.ResumeThreshold)
	assert.False(t, state.ProtectionActive)
	assert.Equal(t, thermal.SensorUnavailable, state.CurrentTemp)
}

func TestMonitor_HysteresisSingleTriggerDespiteOscillation(t *testing.T) {
	m, err := thermal.NewMonitor(85, 80, time.Second)
	require.NoError(t, err)

	rec := &transitionRecorder{}
	m.RegisterCallback(rec.callback())

	// Oscillates inside the [80, 85) gap after the first trigger at 85.
	for _, temp := range []float64{82, 85, 83, 86, 84, 87, 83} {
		m.Simulate(temp)
		m.CheckThermalProtection()
	}

	calls := rec.snapshot()
	require.Len(t, calls, 1, "exactly one transition despite oscillation")
	assert.True(t, calls[0].active)
	assert.Equal(t, 85.0, calls[0].temp)
	assert.True(t, m.GetState().ProtectionActive)
	assert.False(t, m.GetState().LastTriggerTime.IsZero())

	// Only a reading below the resume threshold releases protection.
	m.Simulate(81)
	m.CheckThermalProtection()
	require.Len(t, rec.snapshot(), 1, "gap reading must not resume")

	m.Simulate(79)
	m.CheckThermalProtection()
	calls = rec.snapshot()
	require.Len(t, calls, 2)
	assert.False(t, calls[1].active)
	assert.Equal(t, 79.0, calls[1].temp)
	assert.False(t, m.GetState().ProtectionActive)
	assert.False(t, m.GetState().LastResumeTime.IsZero())
}

func TestMonitor_SentinelReadingIsNoOp(t *testing.T) {
	m, err := thermal.NewMonitorWithSource(85, 80, time.Second, func() float64 {
		return thermal.SensorUnavailable
	})
	require.NoError(t, err)

	rec := &transitionRecorder{}
	m.RegisterCallback(rec.callback())

	m.CheckThermalProtection()

	assert.Empty(t, rec.snapshot())
	state := m.GetState()
	assert.False(t, state.ProtectionActive)
	assert.Equal(t, thermal.SensorUnavailable, state.CurrentTemp)
}

func TestMonitor_SentinelDoesNotResumeActiveProtection(t *testing.T) {
	temps := []float64{90, thermal.SensorUnavailable}
	i := 0
	m, err := thermal.NewMonitorWithSource(85, 80, time.Second, func() float64 {
		temp := temps[i]
		if i < len(temps)-1 {
			i++
		}
		return temp
	})
	require.NoError(t, err)

	m.CheckThermalProtection()
	require.True(t, m.GetState().ProtectionActive)

	m.CheckThermalProtection()
	assert.True(t, m.GetState().ProtectionActive, "sentinel must not release protection")
	assert.Equal(t, 90.0, m.GetState().CurrentTemp, "sentinel must not overwrite last reading")
}

func TestMonitor_RegisterCallbackIsIdempotent(t *testing.T) {
	m, err := thermal.NewMonitor(85, 80, time.Second)
	require.NoError(t, err)

	rec := &transitionRecorder{}
	cb := rec.callback()
	m.RegisterCallback(cb)
	m.RegisterCallback(cb) // duplicate, ignored

	var otherMu sync.Mutex
	otherCalls := 0
	m.RegisterCallback(func(bool, float64) {
		otherMu.Lock()
		otherCalls++
		otherMu.Unlock()
	})

	m.Simulate(90)
	m.CheckThermalProtection()

	assert.Len(t, rec.snapshot(), 1, "duplicate registration must not double-notify")
	otherMu.Lock()
	defer otherMu.Unlock()
	assert.Equal(t, 1, otherCalls, "independent observer notified once")
}

func TestMonitor_PanickingCallbackDoesNotBlockOthers(t *testing.T) {
	m, err := thermal.NewMonitor(85, 80, time.Second)
	require.NoError(t, err)

	m.RegisterCallback(func(bool, float64) {
		panic("observer exploded")
	})

	rec := &transitionRecorder{}
	m.RegisterCallback(rec.callback())

	m.Simulate(90)
	require.NotPanics(t, func() {
		m.CheckThermalProtection()
	})

	assert.Len(t, rec.snapshot(), 1, "second observer still notified after panic")
}

func TestMonitor_SetThresholds(t *testing.T) {
	m, err := thermal.NewMonitor(85, 80, time.Second)
	require.NoError(t, err)

	require.ErrorIs(t, m.SetThresholds(75, 80), thermal.ErrInvalidThresholds)
	state := m.GetState()
	assert.Equal(t, 85.0, state.TriggerThreshold, "rejected update must not partially apply")
	assert.Equal(t, 80.0, state.ResumeThreshold)

	require.NoError(t, m.SetThresholds(90, 82))
	state = m.GetState()
	assert.Equal(t, 90.0, state.TriggerThreshold)
	assert.Equal(t, 82.0, state.ResumeThreshold)

	require.NoError(t, m.SetTriggerThreshold(95))
	assert.Equal(t, 95.0, m.GetState().TriggerThreshold)
	require.ErrorIs(t, m.SetTriggerThreshold(82), thermal.ErrInvalidThresholds)

	require.NoError(t, m.SetResumeThreshold(85))
	assert.Equal(t, 85.0, m.GetState().ResumeThreshold)
	require.ErrorIs(t, m.SetResumeThreshold(95), thermal.ErrInvalidThresholds)
}

func TestMonitor_ReconfigurationDoesNotForceTransition(t *testing.T) {
	m, err := thermal.NewMonitor(85, 80, time.Second)
	require.NoError(t, err)

	m.Simulate(83)
	m.CheckThermalProtection()
	require.False(t, m.GetState().ProtectionActive)

	// Lowering the trigger below the last reading must not trigger by itself;
	// the next sampled reading governs.
	require.NoError(t, m.SetThresholds(82, 78))
	assert.False(t, m.GetState().ProtectionActive)

	m.CheckThermalProtection()
	assert.True(t, m.GetState().ProtectionActive)
}

func TestMonitor_BackgroundSamplingAndShutdown(t *testing.T) {
	m, err := thermal.NewMonitor(85, 80, 50*time.Millisecond)
	require.NoError(t, err)

	rec := &transitionRecorder{}
	m.RegisterCallback(rec.callback())

	m.Simulate(90)
	m.StartMonitoring()
	m.StartMonitoring() // idempotent

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond, "sampler should observe the trigger")

	m.StopMonitoring()
	m.StopMonitoring() // idempotent

	// No further samples after stop.
	m.Simulate(70)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestMonitor_TemperatureUsesSimulatedOverride(t *testing.T) {
	sourceCalls := 0
	m, err := thermal.NewMonitorWithSource(85, 80, time.Second, func() float64 {
		sourceCalls++
		return 42
	})
	require.NoError(t, err)

	assert.Equal(t, 42.0, m.Temperature())
	assert.Equal(t, 1, sourceCalls)

	m.Simulate(66)
	assert.Equal(t, 66.0, m.Temperature())
	assert.Equal(t, 1, sourceCalls, "override must bypass the source")
}
