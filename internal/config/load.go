package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ModbusPort: 503,
			HTTPPort:   81,
			UnitID:     1,
			TimeoutMs:  2000,
		},
		Poll: PollConfig{
			IntervalMs:      5000,
			StaleAfterMs:    60000,
			HeaterOffOnExit: true,
		},
		Control: ControlConfig{
			MaxTempC:           52.5,
			ReservedPowerW:     105,
			MinHeaterPowerW:    275,
			MinSetpointChangeW: 15,
			MaxPowerW:          3700,
			Active:             true,
		},
		Calibration: CalibrationConfig{
			Gain: 1,
		},
		Command: CommandConfig{
			Heater1Phases: "3 phasig",
			Heater1PowerW: 3709,
			TimeoutMs:     5000,
		},
		TimeSync: TimeSyncConfig{
			Enabled:   true,
			IntervalS: 1800,
		},
		Surplus: SurplusConfig{
			Source:   SurplusStatic,
			MaxAgeMs: 30000,
			Meter: MeterConfig{
				TimeoutMs: 3000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			TopicPrefix:     "ohmpilot",
			DiscoveryPrefix: "homeassistant",
		},
		HTTP: HTTPConfig{
			API:     true,
			Metrics: true,
		},
		Mirror: MirrorConfig{
			TimeoutMs: 2000,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
