// Package writer delivers cycle results to outputs: the log, a daily CSV
// file and a Modbus mirror with a device status block.
package writer

import (
	"github.com/rs/zerolog"

	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// Writer delivers one cycle result.
type Writer interface {
	Write(res telemetry.CycleResult) error
}

// Listener adapts a Writer to the loop. Delivery errors are logged and
// never reach the loop.
func Listener(w Writer, log zerolog.Logger) telemetry.Listener {
	return telemetry.ListenerFunc(func(res telemetry.CycleResult) {
		if err := w.Write(res); err != nil {
			log.Warn().Err(err).Msg("writer error")
		}
	})
}
