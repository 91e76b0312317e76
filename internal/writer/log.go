package writer

import (
	"github.com/rs/zerolog"

	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// LogWriter logs every cycle. Stalled and failed cycles log at warn.
type LogWriter struct {
	log zerolog.Logger
}

func NewLogWriter(log zerolog.Logger) *LogWriter {
	return &LogWriter{log: log}
}

func (w *LogWriter) Write(res telemetry.CycleResult) error {
	if res.Stalled {
		w.log.Warn().
			Int("setpoint_w", res.Snapshot.SetpointW()).
			Msg("cycle stalled, all reads failed")
		return nil
	}

	ev := w.log.Info()
	if !res.OK() {
		ev = w.log.Warn()
	}

	s := res.Snapshot
	if v, ok := s.Status(); ok {
		ev = ev.Uint16("status", v)
	}
	if v, ok := s.TemperatureC(); ok {
		ev = ev.Float64("temperature_c", v)
	}
	if v, ok := s.ActivePowerW(); ok {
		ev = ev.Uint32("active_power_w", v)
	}
	if v, ok := s.EnergyWh(); ok {
		ev = ev.Uint64("energy_wh", v)
	}
	for _, f := range res.ReadFailures {
		ev = ev.AnErr(f.Field+"_err", f.Err)
	}
	if res.WriteErr != nil {
		ev = ev.AnErr("write_err", res.WriteErr)
	}

	ev.Int("surplus_w", s.SurplusW()).
		Int("setpoint_w", s.SetpointW()).
		Bool("decided", res.Decided).
		Msg("cycle")
	return nil
}
