package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// Topic prefixes never carry leading/trailing separators.
	cfg.MQTT.TopicPrefix = strings.Trim(cfg.MQTT.TopicPrefix, "/")
	cfg.MQTT.DiscoveryPrefix = strings.Trim(cfg.MQTT.DiscoveryPrefix, "/")

	// Normalize device_name:
	// - ASCII already validated
	// - Truncate to max 16 characters
	if len(cfg.Mirror.DeviceName) > 16 {
		cfg.Mirror.DeviceName = cfg.Mirror.DeviceName[:16]
	}

	// Calibration gain 0 means "not set".
	if cfg.Calibration.Gain == 0 {
		cfg.Calibration.Gain = 1
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
}
