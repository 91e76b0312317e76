package poller

import (
	"context"
	"errors"
	"fmt"
)

// Limits of the operator controls.
const (
	MaxPowerLimitW = 3700
	MinTargetTempC = 10
	MaxTargetTempC = 55
)

var (
	ErrMaxPowerOutOfRange = errors.New("poller: max power out of range")
	ErrTempOutOfRange     = errors.New("poller: max temperature out of range")
)

// Controls returns the current control values.
func (c *Coordinator) Controls() Controls {
	c.mu.RLock()
	defer c.mu.RUnlock()

	maxPower := MaxPowerLimitW
	switch {
	case c.powerCap != nil:
		maxPower = *c.powerCap
	case c.params.MaxPowerW > 0 && c.params.MaxPowerW < MaxPowerLimitW:
		maxPower = c.params.MaxPowerW
	}

	return Controls{
		MaxPowerW: maxPower,
		MaxTempC:  c.params.MaxTempC,
		Active:    c.active,
	}
}

// SetMaxPower caps the setpoint at w. 0 holds the heater off.
// The configured max_power_w still applies on top.
// Takes effect on the next cycle.
func (c *Coordinator) SetMaxPower(w int) error {
	if w < 0 || w > MaxPowerLimitW {
		return fmt.Errorf("%w: %d W", ErrMaxPowerOutOfRange, w)
	}

	c.mu.Lock()
	c.powerCap = &w
	c.mu.Unlock()

	c.log.Info().Int("max_power_w", w).Msg("max power changed")
	return nil
}

// SetMaxTemperature updates the safety cutoff and, when a commander is wired,
// sends the new target to the device. The cutoff is kept even if the
// command fails.
func (c *Coordinator) SetMaxTemperature(ctx context.Context, tempC int) error {
	if tempC < MinTargetTempC || tempC > MaxTargetTempC {
		return fmt.Errorf("%w: %d C", ErrTempOutOfRange, tempC)
	}

	c.mu.Lock()
	c.params.MaxTempC = float64(tempC)
	c.mu.Unlock()

	c.log.Info().Int("max_temperature_c", tempC).Msg("max temperature changed")

	if c.commander == nil {
		return nil
	}
	if err := c.commander.SetTargetTemperature(ctx, tempC); err != nil {
		return fmt.Errorf("poller: send target temperature: %w", err)
	}
	return nil
}

// SetActive enables or disables setpoint control. While inactive the loop
// keeps reading and publishing but never writes a setpoint, so the last
// value written stays in force on the device. Use SetMaxPower(0) to switch
// the heater off instead.
func (c *Coordinator) SetActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()

	c.log.Info().Bool("active", active).Msg("control active changed")
}
