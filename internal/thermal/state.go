// Package thermal monitors CPU temperature and drives hardware protection
// through a two-state hysteresis machine. Protection triggers when the
// temperature reaches the trigger threshold and only releases once it falls
// below the lower resume threshold; readings inside the gap never change
// state, which is what prevents flapping near a single boundary.
package thermal

import (
	"errors"
	"time"
)

// Default thresholds and sampling interval for Raspberry Pi 5 class hardware.
const (
	// DefaultTriggerThreshold is the Celsius reading that activates protection.
	DefaultTriggerThreshold = 85.0
	// DefaultResumeThreshold is the Celsius reading below which protection releases.
	DefaultResumeThreshold = 80.0
	// DefaultCheckInterval is the default sampling period.
	DefaultCheckInterval = 5 * time.Second
)

// ErrInvalidThresholds indicates a trigger/resume pair with no hysteresis
// gap. The resume threshold must be strictly below the trigger threshold.
var ErrInvalidThresholds = errors.New("resume threshold must be less than trigger threshold")

// State is a snapshot of the hysteresis machine.
//
// CurrentTemp is SensorUnavailable (-1) until the first successful reading.
// LastTriggerTime and LastResumeTime are zero until the corresponding
// transition has happened at least once.
type State struct {
	CurrentTemp      float64
	ProtectionActive bool
	LastTriggerTime  time.Time
	LastResumeTime   time.Time
	TriggerThreshold float64
	ResumeThreshold  float64
}

// shouldTriggerProtection reports whether the current reading should flip the
// machine into the protected state. Only meaningful while protection is off.
func (s *State) shouldTriggerProtection() bool {
	if s.ProtectionActive {
		return false
	}
	return s.CurrentTemp >= s.TriggerThreshold
}

// shouldResumeNormal reports whether the current reading should release
// protection. Only meaningful while protection is on.
func (s *State) shouldResumeNormal() bool {
	if !s.ProtectionActive {
		return false
	}
	return s.CurrentTemp < s.ResumeThreshold
}

// updateTemperature records a reading and applies the hysteresis transitions.
// It returns whether the protection flag flipped.
func (s *State) updateTemperature(temp float64, now time.Time) bool {
	s.CurrentTemp = temp

	switch {
	case s.shouldTriggerProtection():
		s.ProtectionActive = true
		s.LastTriggerTime = now
		return true
	case s.shouldResumeNormal():
		s.ProtectionActive = false
		s.LastResumeTime = now
		return true
	default:
		return false
	}
}

func validateThresholds(trigger, resume float64) error {
	if resume >= trigger {
		return ErrInvalidThresholds
	}
	return nil
}
