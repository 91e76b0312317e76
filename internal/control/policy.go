// Package control computes the heater setpoint from telemetry and surplus power.
package control

import "errors"

// Params are the policy constants. They come from configuration.
type Params struct {
	MaxTempC           float64 // safety cutoff
	ReservedPowerW     int     // margin withheld from the heater
	MinHeaterPowerW    int     // device cannot sustain output below this floor
	MinSetpointChangeW int     // smaller changes are suppressed
	MaxPowerW          int     // upper bound on the setpoint; 0 = unlimited
}

// Validate rejects parameter sets the policy cannot honour.
func (p Params) Validate() error {
	if p.ReservedPowerW < 0 {
		return errors.New("control: reserved power must be >= 0")
	}
	if p.MinHeaterPowerW < 0 {
		return errors.New("control: min heater power must be >= 0")
	}
	if p.MinSetpointChangeW < 0 {
		return errors.New("control: min setpoint change must be >= 0")
	}
	if p.MaxPowerW < 0 {
		return errors.New("control: max power must be >= 0")
	}
	return nil
}

// Input is one cycle's view of the world.
// ActivePowerW and TemperatureC are nil when no value (current or last known) exists.
type Input struct {
	ActivePowerW      *int
	TemperatureC      *float64
	SurplusPowerW     int
	PreviousSetpointW int
}

// Next returns the setpoint for this cycle.
func Next(p Params, in Input) int {
	// Fail safe: nothing to base a decision on.
	if in.ActivePowerW == nil || in.TemperatureC == nil {
		return 0
	}

	if *in.TemperatureC >= p.MaxTempC {
		return 0
	}

	candidate := p.clamp(max(0, *in.ActivePowerW+in.SurplusPowerW-p.ReservedPowerW))

	if candidate < p.MinHeaterPowerW {
		return 0
	}

	prev := in.PreviousSetpointW
	if prev >= p.MinHeaterPowerW && abs(candidate-prev) < p.MinSetpointChangeW {
		return p.clamp(prev)
	}

	return candidate
}

func (p Params) clamp(w int) int {
	if p.MaxPowerW > 0 && w > p.MaxPowerW {
		return p.MaxPowerW
	}
	return w
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
