package main

import (
	"fmt"
	"time"

	"github.com/tamzrod/ohmpilot-controller/internal/config"
	"github.com/tamzrod/ohmpilot-controller/internal/device"
	"github.com/tamzrod/ohmpilot-controller/internal/logger"
	"github.com/tamzrod/ohmpilot-controller/internal/timesync"
)

// --------------------
// Load + validate config
// --------------------

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Debug:      cfg.Logging.Debug,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	}); err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}

	return cfg, nil
}

func endpointOf(cfg *config.Config) device.Endpoint {
	return device.Endpoint{
		Host:         cfg.Device.Host,
		RegisterPort: cfg.Device.ModbusPort,
		CommandPort:  cfg.Device.HTTPPort,
		UnitID:       cfg.Device.UnitID,
	}
}

func buildLink(cfg *config.Config) (*device.ModbusLink, error) {
	ep := endpointOf(cfg)
	return device.NewModbusLink(device.Config{
		Endpoint: ep.RegisterAddr(),
		UnitID:   ep.UnitID,
		Timeout:  time.Duration(cfg.Device.TimeoutMs) * time.Millisecond,
	})
}

func buildCommander(cfg *config.Config) (*device.CommandClient, error) {
	return device.NewCommandClient(device.CommandConfig{
		BaseURL:       endpointOf(cfg).CommandURL(),
		Heater1Phases: cfg.Command.Heater1Phases,
		Heater1PowerW: cfg.Command.Heater1PowerW,
		Timeout:       time.Duration(cfg.Command.TimeoutMs) * time.Millisecond,
	})
}

func timeSyncLocation(cfg *config.Config) (*time.Location, error) {
	if cfg.TimeSync.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(cfg.TimeSync.Timezone)
}

// buildTimeSync returns nil when clock sync is disabled.
func buildTimeSync(cfg *config.Config, link device.Link, opts ...timesync.Option) (*timesync.Task, error) {
	if !cfg.TimeSync.Enabled {
		return nil, nil
	}

	loc, err := timeSyncLocation(cfg)
	if err != nil {
		return nil, fmt.Errorf("time_sync: %w", err)
	}

	return timesync.New(timesync.Config{
		Interval:           time.Duration(cfg.TimeSync.IntervalS) * time.Second,
		Location:           loc,
		FixedOffsetMinutes: cfg.TimeSync.FixedOffsetMinutes,
	}, link, logger.WithComponent("timesync"), opts...)
}
