package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// DEVICE ENDPOINT
	// ------------------------------------------------------------

	d := cfg.Device
	if d.Host == "" {
		return fmt.Errorf("device: host is required")
	}
	if err := validPort("device.modbus_port", d.ModbusPort); err != nil {
		return err
	}
	if err := validPort("device.http_port", d.HTTPPort); err != nil {
		return err
	}
	if d.TimeoutMs <= 0 {
		return fmt.Errorf("device: timeout_ms must be > 0")
	}

	// ------------------------------------------------------------
	// POLL LOOP
	// ------------------------------------------------------------

	if cfg.Poll.IntervalMs < 1000 || cfg.Poll.IntervalMs > 600000 {
		return fmt.Errorf("poll: interval_ms %d out of range 1000..600000", cfg.Poll.IntervalMs)
	}
	if d.TimeoutMs*4 > cfg.Poll.IntervalMs*2 {
		// four reads per cycle must fit comfortably in two periods
		return fmt.Errorf(
			"poll: device.timeout_ms %d too large for interval_ms %d",
			d.TimeoutMs,
			cfg.Poll.IntervalMs,
		)
	}
	if cfg.Poll.StaleAfterMs < 0 {
		return fmt.Errorf("poll: stale_after_ms must be >= 0")
	}

	// ------------------------------------------------------------
	// CONTROL POLICY
	// ------------------------------------------------------------

	c := cfg.Control
	if c.MaxTempC <= 0 || c.MaxTempC > 95 {
		return fmt.Errorf("control: max_temp_c %.1f out of range (0, 95]", c.MaxTempC)
	}
	if c.ReservedPowerW < 0 || c.MinHeaterPowerW < 0 || c.MinSetpointChangeW < 0 {
		return fmt.Errorf("control: power values must be >= 0")
	}
	if c.MaxPowerW < 0 || c.MaxPowerW > 65535 {
		return fmt.Errorf("control: max_power_w %d out of range 0..65535", c.MaxPowerW)
	}
	if c.MaxPowerW > 0 && c.MaxPowerW < c.MinHeaterPowerW {
		return fmt.Errorf(
			"control: max_power_w %d below min_heater_power_w %d",
			c.MaxPowerW,
			c.MinHeaterPowerW,
		)
	}

	if cfg.Calibration.Gain < 0 {
		return fmt.Errorf("calibration: gain must be >= 0")
	}

	// ------------------------------------------------------------
	// COMMAND ENDPOINT
	// ------------------------------------------------------------

	if cfg.Command.Heater1Phases == "" {
		return fmt.Errorf("command: heater1_phases is required")
	}
	if cfg.Command.Heater1PowerW <= 0 {
		return fmt.Errorf("command: heater1_power_w must be > 0")
	}
	if cfg.Command.TimeoutMs <= 0 {
		return fmt.Errorf("command: timeout_ms must be > 0")
	}

	// ------------------------------------------------------------
	// CLOCK SYNC
	// ------------------------------------------------------------

	if cfg.TimeSync.Enabled {
		if cfg.TimeSync.IntervalS < 60 {
			return fmt.Errorf("time_sync: interval_s must be >= 60")
		}
		if cfg.TimeSync.Timezone != "" {
			if _, err := time.LoadLocation(cfg.TimeSync.Timezone); err != nil {
				return fmt.Errorf("time_sync: timezone %q: %v", cfg.TimeSync.Timezone, err)
			}
		}
		if off := cfg.TimeSync.FixedOffsetMinutes; off != nil && (*off < -720 || *off > 840) {
			return fmt.Errorf("time_sync: fixed_offset_minutes %d out of range -720..840", *off)
		}
	}

	// ------------------------------------------------------------
	// SURPLUS SOURCE
	// ------------------------------------------------------------

	s := cfg.Surplus
	switch s.Source {
	case SurplusStatic:
	case SurplusMQTT:
		if !cfg.MQTT.Enabled {
			return fmt.Errorf("surplus: source %q requires mqtt.enabled", s.Source)
		}
		if s.MQTT.Topic == "" {
			return fmt.Errorf("surplus: mqtt.topic is required")
		}
	case SurplusMeter:
		if s.Meter.URL == "" {
			return fmt.Errorf("surplus: meter.url is required")
		}
		if _, err := url.Parse(s.Meter.URL); err != nil {
			return fmt.Errorf("surplus: meter.url: %v", err)
		}
		if s.Meter.TimeoutMs <= 0 {
			return fmt.Errorf("surplus: meter.timeout_ms must be > 0")
		}
	default:
		return fmt.Errorf("surplus: unknown source %q", s.Source)
	}
	if s.MaxAgeMs < 0 {
		return fmt.Errorf("surplus: max_age_ms must be >= 0")
	}

	// ------------------------------------------------------------
	// OUTPUTS
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt: broker is required")
		}
		if cfg.MQTT.TopicPrefix == "" {
			return fmt.Errorf("mqtt: topic_prefix is required")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt: qos %d out of range 0..2", cfg.MQTT.QoS)
		}
	}

	if cfg.CSV.Enabled && cfg.CSV.Dir == "" {
		return fmt.Errorf("csv: dir is required")
	}

	return validateMirror(cfg.Mirror)
}

// Block sizes as laid out by the writer and status packages.
const (
	mirrorBlockWords = 13
	statusBlockWords = 20
)

func validateMirror(m MirrorConfig) error {
	// device_name sanity (ASCII only)
	for i := 0; i < len(m.DeviceName); i++ {
		if m.DeviceName[i] > 0x7F {
			return fmt.Errorf("mirror: device_name must contain ASCII characters only")
		}
	}

	if !m.Enabled {
		return nil
	}
	if m.Endpoint == "" {
		return fmt.Errorf("mirror: endpoint is required")
	}
	if m.TimeoutMs <= 0 {
		return fmt.Errorf("mirror: timeout_ms must be > 0")
	}

	if int(m.Address)+mirrorBlockWords > 65536 {
		return fmt.Errorf("mirror: address %d leaves no room for the %d-word block", m.Address, mirrorBlockWords)
	}

	// status is opt-in, but both halves are required together
	if (m.StatusSlot == nil) != (m.StatusUnitID == nil) {
		return fmt.Errorf("mirror: status_slot and status_unit_id must be set together")
	}
	if m.StatusSlot != nil && *m.StatusUnitID == m.UnitID {
		return fmt.Errorf(
			"mirror: status_unit_id %d collides with data unit_id",
			*m.StatusUnitID,
		)
	}
	if m.StatusSlot != nil && (int(*m.StatusSlot)+1)*statusBlockWords > 65536 {
		return fmt.Errorf("mirror: status_slot %d out of range", *m.StatusSlot)
	}

	return nil
}

func validPort(name string, p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("%s: %d out of range 1..65535", name, p)
	}
	return nil
}
