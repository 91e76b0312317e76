package poller

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/ohmpilot-controller/internal/config"
	"github.com/tamzrod/ohmpilot-controller/internal/control"
	"github.com/tamzrod/ohmpilot-controller/internal/device"
	"github.com/tamzrod/ohmpilot-controller/internal/register"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// ErrAllReadsFailed is reported on stalled cycles.
var ErrAllReadsFailed = telemetry.ErrAllReadsFailed

// Build maps validated configuration onto a Coordinator.
// The link and surplus source are built by the caller so they can be shared.
func Build(cfg *config.Config, link device.Link, surplus Surplus, log zerolog.Logger, opts ...Option) (*Coordinator, error) {
	return New(
		Config{
			Interval: time.Duration(cfg.Poll.IntervalMs) * time.Millisecond,
			Params: control.Params{
				MaxTempC:           cfg.Control.MaxTempC,
				ReservedPowerW:     cfg.Control.ReservedPowerW,
				MinHeaterPowerW:    cfg.Control.MinHeaterPowerW,
				MinSetpointChangeW: cfg.Control.MinSetpointChangeW,
				MaxPowerW:          cfg.Control.MaxPowerW,
			},
			Calibration: register.Calibration{
				Gain:   cfg.Calibration.Gain,
				Offset: cfg.Calibration.Offset,
			},
			Active:          cfg.Control.Active,
			HeaterOffOnExit: cfg.Poll.HeaterOffOnExit,
		},
		link,
		surplus,
		log,
		opts...,
	)
}
