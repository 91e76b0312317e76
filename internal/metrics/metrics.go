// Package metrics exposes cycle results as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/ohmpilot-controller/internal/status"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

const namespace = "ohmpilot"

// Cycle outcome labels.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultStalled = "stalled"
)

// Collector owns a private registry. It implements telemetry.Listener.
type Collector struct {
	registry *prometheus.Registry

	temperature    prometheus.Gauge
	activePower    prometheus.Gauge
	energy         prometheus.Gauge
	deviceStatus   prometheus.Gauge
	setpoint       prometheus.Gauge
	surplus        prometheus.Gauge
	lastCycle      prometheus.Gauge
	health         prometheus.Gauge
	secondsInError prometheus.Gauge

	cycles        *prometheus.CounterVec
	readFailures  *prometheus.CounterVec
	writeFailures prometheus.Counter
}

func New() *Collector {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),

		temperature:    gauge("temperature_celsius", "Calibrated water temperature."),
		activePower:    gauge("active_power_watts", "Heater power currently drawn."),
		energy:         gauge("energy_watt_hours", "Cumulative heater energy reported by the device."),
		deviceStatus:   gauge("device_status", "Raw device status register."),
		setpoint:       gauge("setpoint_watts", "Setpoint commanded in the last cycle."),
		surplus:        gauge("surplus_watts", "Surplus power used in the last cycle."),
		lastCycle:      gauge("last_cycle_timestamp_seconds", "Unix time of the last published cycle."),
		health:         gauge("health_code", "Controller health (0 unknown, 1 ok, 2 error, 3 stale, 4 inactive)."),
		secondsInError: gauge("seconds_in_error", "Seconds spent in a non-OK state."),

		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total", Help: "Poll cycles by outcome.",
		}, []string{"result"}),
		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "read_failures_total", Help: "Failed register reads by field.",
		}, []string{"field"}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "setpoint_write_failures_total", Help: "Failed setpoint writes.",
		}),
	}

	c.registry.MustRegister(
		c.temperature, c.activePower, c.energy, c.deviceStatus,
		c.setpoint, c.surplus, c.lastCycle, c.health, c.secondsInError,
		c.cycles, c.readFailures, c.writeFailures,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry is exposed for tests and for extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Publish implements telemetry.Listener.
// Gauges of absent fields keep their last value.
func (c *Collector) Publish(res telemetry.CycleResult) {
	for _, f := range res.ReadFailures {
		c.readFailures.WithLabelValues(f.Field).Inc()
	}
	if res.WriteErr != nil {
		c.writeFailures.Inc()
	}

	switch {
	case res.Stalled:
		c.cycles.WithLabelValues(ResultStalled).Inc()
		return
	case len(res.ReadFailures) > 0:
		c.cycles.WithLabelValues(ResultPartial).Inc()
	default:
		c.cycles.WithLabelValues(ResultOK).Inc()
	}

	s := res.Snapshot
	if v, ok := s.TemperatureC(); ok {
		c.temperature.Set(v)
	}
	if v, ok := s.ActivePowerW(); ok {
		c.activePower.Set(float64(v))
	}
	if v, ok := s.EnergyWh(); ok {
		c.energy.Set(float64(v))
	}
	if v, ok := s.Status(); ok {
		c.deviceStatus.Set(float64(v))
	}
	c.setpoint.Set(float64(s.SetpointW()))
	c.surplus.Set(float64(s.SurplusW()))
	c.lastCycle.Set(float64(s.At().Unix()))
}

// SetHealth records a health snapshot. Wire it to the status tracker.
func (c *Collector) SetHealth(s status.Snapshot) {
	c.health.Set(float64(s.Health))
	c.secondsInError.Set(float64(s.SecondsInError))
}
