package rooms

import "time"

// DefaultGasThresholdPPM is the concentration above which gas is considered detected.
const DefaultGasThresholdPPM = 300.0

// SafetyState is the per-room fire/gas/valve status.
type SafetyState struct {
	RoomID       int64
	FireDetected bool
	GasDetected  bool
	ValveOn      bool
	UpdatedAt    time.Time
}

// NewSafetyState returns the default state: no fire, no gas, valve open.
func NewSafetyState(roomID int64, now time.Time) *SafetyState {
	return &SafetyState{
		RoomID:    roomID,
		ValveOn:   true,
		UpdatedAt: now.UTC(),
	}
}

// ThresholdPolicy decides whether a reading counts as a gas detection.
type ThresholdPolicy struct {
	LimitPPM float64
}

// DefaultThresholdPolicy returns the 300 PPM policy.
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{LimitPPM: DefaultGasThresholdPPM}
}

// Detected reports whether level is strictly above the limit.
func (p ThresholdPolicy) Detected(level float64) bool {
	limit := p.LimitPPM
	if limit <= 0 {
		limit = DefaultGasThresholdPPM
	}
	return level > limit
}

// ToggleFire flips fire detection and returns the new value.
func (s *SafetyState) ToggleFire(now time.Time) bool {
	s.FireDetected = !s.FireDetected
	s.touch(now)
	return s.FireDetected
}

// ToggleGas flips gas detection. A new detection closes the valve.
func (s *SafetyState) ToggleGas(now time.Time) (gas, valve bool) {
	s.GasDetected = !s.GasDetected
	if s.GasDetected {
		s.ValveOn = false
	}
	s.touch(now)
	return s.GasDetected, s.ValveOn
}

// ToggleValve flips the valve. Detection flags are untouched.
func (s *SafetyState) ToggleValve(now time.Time) bool {
	s.ValveOn = !s.ValveOn
	s.touch(now)
	return s.ValveOn
}

// ApplyGasReading sets gas detection from a reading. A safe reading never reopens the valve.
func (s *SafetyState) ApplyGasReading(level float64, policy ThresholdPolicy, now time.Time) (gas, valve bool) {
	s.GasDetected = policy.Detected(level)
	if s.GasDetected {
		s.ValveOn = false
	}
	s.touch(now)
	return s.GasDetected, s.ValveOn
}

func (s *SafetyState) touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}
