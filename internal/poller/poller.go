// Package poller runs the control loop: read telemetry, decide a setpoint,
// write it, publish the snapshot.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/ohmpilot-controller/internal/control"
	"github.com/tamzrod/ohmpilot-controller/internal/device"
	"github.com/tamzrod/ohmpilot-controller/internal/register"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// Surplus provides the surplus power estimate for a cycle.
type Surplus interface {
	SurplusW(ctx context.Context) (int, error)
}

// TemperatureCommander sets the device's target temperature.
type TemperatureCommander interface {
	SetTargetTemperature(ctx context.Context, tempC int) error
}

// Config is the runtime config the coordinator needs.
type Config struct {
	Interval        time.Duration
	Params          control.Params
	Calibration     register.Calibration
	Active          bool
	HeaterOffOnExit bool
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithCommander wires the HTTP command endpoint used by SetMaxTemperature.
func WithCommander(c TemperatureCommander) Option {
	return func(co *Coordinator) { co.commander = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(co *Coordinator) { co.now = now }
}

// Coordinator owns the control state and the device link.
type Coordinator struct {
	cfg       Config
	link      device.Link
	surplus   Surplus
	commander TemperatureCommander
	log       zerolog.Logger
	now       func() time.Time

	// cycleMu guarantees at most one read/decide/write sequence in flight.
	cycleMu sync.Mutex

	mu         sync.RWMutex
	params     control.Params
	powerCap   *int // operator max power; 0 holds the heater off
	active     bool
	state      ControlState
	lastPowerW *int
	lastTempC  *float64
	current    telemetry.Snapshot
	hasCurrent bool
	stage      Stage
	listeners  []telemetry.Listener
}

// New creates a coordinator with immutable config.
func New(cfg Config, link device.Link, surplus Surplus, log zerolog.Logger, opts ...Option) (*Coordinator, error) {
	if link == nil {
		return nil, errors.New("poller: link required")
	}
	if surplus == nil {
		return nil, errors.New("poller: surplus source required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:     cfg,
		link:    link,
		surplus: surplus,
		log:     log,
		now:     time.Now,
		params:  cfg.Params,
		active:  cfg.Active,
		stage:   StageIdle,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Subscribe registers a listener. Listeners are called in registration order
// from the loop goroutine.
func (c *Coordinator) Subscribe(l telemetry.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Current returns the last published snapshot.
func (c *Coordinator) Current() (telemetry.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.hasCurrent
}

// State returns a copy of the control state.
func (c *Coordinator) State() ControlState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stage returns the current cycle stage.
func (c *Coordinator) Stage() Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stage
}

// RecordClockSync stores the time of the last successful clock write.
func (c *Coordinator) RecordClockSync(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastSyncTime = at
}

// PollOnce performs exactly one cycle.
// Read failures degrade the cycle; only a cycle where every read failed is stalled.
func (c *Coordinator) PollOnce(ctx context.Context) telemetry.CycleResult {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	at := c.now()

	// ---- Reading ----
	c.setStage(StageReading)
	readings, failures := c.readTelemetry(ctx)

	if err := ctx.Err(); err != nil {
		// Abandoned: state untouched, nothing published.
		c.setStage(StageIdle)
		return telemetry.CycleResult{Err: err, ReadFailures: failures}
	}

	if len(failures) == len(telemetryReads) {
		return c.stall(at, failures)
	}

	// ---- Deciding ----
	c.setStage(StageDeciding)
	in, params, off, active := c.decisionInputs(readings)

	surplus, err := c.surplus.SurplusW(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("surplus unavailable, assuming 0 W")
		surplus = 0
	}
	in.SurplusPowerW = surplus

	res := telemetry.CycleResult{ReadFailures: failures}

	if !active {
		snap := telemetry.NewSnapshot(at, readings, in.PreviousSetpointW, surplus)
		c.commit(snap, in.PreviousSetpointW)
		res.Snapshot = snap
		c.publish(res)
		c.setStage(StageIdle)
		return res
	}

	next := 0
	if !off {
		next = control.Next(params, in)
	}
	res.Decided = true

	// ---- Writing ----
	c.setStage(StageWriting)
	words := register.EncodeSetpoint(next)
	if err := c.link.WriteRegisters(ctx, register.AddrSetpoint, words[:]); err != nil {
		// Not rolled back: the next cycle re-asserts the computed value.
		res.WriteErr = err
		c.log.Error().Err(err).Int("setpoint_w", next).Msg("setpoint write failed")
	}

	// ---- Published ----
	snap := telemetry.NewSnapshot(at, readings, next, surplus)
	c.commit(snap, next)
	res.Snapshot = snap

	if next != in.PreviousSetpointW {
		c.log.Info().
			Int("from_w", in.PreviousSetpointW).
			Int("to_w", next).
			Int("surplus_w", surplus).
			Msg("setpoint changed")
	}

	c.setStage(StagePublished)
	c.publish(res)
	c.setStage(StageIdle)
	return res
}

// Shutdown waits for an in-flight cycle and, when configured, switches the
// heater off.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	if !c.cfg.HeaterOffOnExit {
		return nil
	}

	words := register.EncodeSetpoint(0)
	if err := c.link.WriteRegisters(ctx, register.AddrSetpoint, words[:]); err != nil {
		return fmt.Errorf("poller: heater off on exit: %w", err)
	}

	c.mu.Lock()
	c.state.PreviousSetpointW = 0
	c.mu.Unlock()

	c.log.Info().Msg("heater switched off")
	return nil
}

func (c *Coordinator) readTelemetry(ctx context.Context) (telemetry.Readings, []telemetry.FieldFailure) {
	var r telemetry.Readings
	var failures []telemetry.FieldFailure

	for _, rb := range telemetryReads {
		words, err := c.link.ReadRegisters(ctx, rb.Address, rb.Quantity)
		if err == nil && len(words) < int(rb.Quantity) {
			err = &device.Failure{
				Kind: device.KindDecode, Op: "read", Addr: rb.Address,
				Msg: fmt.Sprintf("got %d words, want %d", len(words), rb.Quantity),
			}
		}
		if err != nil {
			c.log.Debug().Err(err).Str("field", rb.Field).Msg("read failed")
			failures = append(failures, telemetry.FieldFailure{Field: rb.Field, Err: err})
			continue
		}

		switch rb.Field {
		case telemetry.FieldStatus:
			v := register.DecodeStatus(words[0])
			r.Status = &v
		case telemetry.FieldTemperature:
			v := c.cfg.Calibration.Apply(register.DecodeTemperature(words[0]))
			r.TemperatureC = &v
		case telemetry.FieldActivePower:
			v := register.Decode32(words[0], words[1])
			r.ActivePowerW = &v
		case telemetry.FieldEnergy:
			v := register.Decode64(words[0], words[1], words[2], words[3])
			r.EnergyWh = &v
		}
	}

	return r, failures
}

// decisionInputs merges this cycle's readings into the last-known-good
// values and returns the policy input. off reports an operator max power of 0.
func (c *Coordinator) decisionInputs(r telemetry.Readings) (in control.Input, params control.Params, off, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.ActivePowerW != nil {
		v := int(*r.ActivePowerW)
		c.lastPowerW = &v
	}
	if r.TemperatureC != nil {
		v := *r.TemperatureC
		c.lastTempC = &v
	}

	in = control.Input{PreviousSetpointW: c.state.PreviousSetpointW}
	if c.lastPowerW != nil {
		v := *c.lastPowerW
		in.ActivePowerW = &v
	}
	if c.lastTempC != nil {
		v := *c.lastTempC
		in.TemperatureC = &v
	}
	params, off = c.effectiveParams()
	return in, params, off, c.active
}

// effectiveParams applies the operator power cap on top of the configured
// limit. Must be called with mu held.
func (c *Coordinator) effectiveParams() (control.Params, bool) {
	p := c.params
	if c.powerCap == nil {
		return p, false
	}
	if *c.powerCap == 0 {
		return p, true
	}
	if p.MaxPowerW == 0 || *c.powerCap < p.MaxPowerW {
		p.MaxPowerW = *c.powerCap
	}
	return p, false
}

func (c *Coordinator) stall(at time.Time, failures []telemetry.FieldFailure) telemetry.CycleResult {
	c.setStage(StageStalled)

	prev := c.State().PreviousSetpointW
	res := telemetry.CycleResult{
		Snapshot:     telemetry.NewSnapshot(at, telemetry.Readings{}, prev, 0),
		Stalled:      true,
		Err:          telemetry.ErrAllReadsFailed,
		ReadFailures: failures,
	}

	c.log.Warn().Err(failures[0].Err).Int("failed_reads", len(failures)).Msg("cycle stalled")
	c.publish(res)
	c.setStage(StageIdle)
	return res
}

func (c *Coordinator) commit(snap telemetry.Snapshot, setpointW int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = snap
	c.hasCurrent = true
	c.state.PreviousSetpointW = setpointW
}

func (c *Coordinator) publish(res telemetry.CycleResult) {
	c.mu.RLock()
	listeners := make([]telemetry.Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		c.deliver(l, res)
	}
}

// deliver isolates the loop from a misbehaving listener.
func (c *Coordinator) deliver(l telemetry.Listener, res telemetry.CycleResult) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("listener panicked")
		}
	}()
	l.Publish(res)
}

func (c *Coordinator) setStage(s Stage) {
	c.mu.Lock()
	c.stage = s
	c.mu.Unlock()
}
