// Package timesync keeps the device clock and timezone offset in step with
// the host.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/ohmpilot-controller/internal/device"
	"github.com/tamzrod/ohmpilot-controller/internal/register"
)

// Config for the sync task.
type Config struct {
	Interval time.Duration

	// Location supplies the DST-aware offset. nil means time.Local.
	Location *time.Location

	// FixedOffsetMinutes, when set, is sent instead of the zone offset.
	FixedOffsetMinutes *int
}

// Option customizes a Task.
type Option func(*Task)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Task) { t.now = now }
}

// OnSynced is called with the wall-clock time written after every
// successful sync.
func OnSynced(fn func(at time.Time)) Option {
	return func(t *Task) { t.onSynced = fn }
}

// Task periodically writes the clock frame.
type Task struct {
	cfg      Config
	link     device.Link
	log      zerolog.Logger
	now      func() time.Time
	onSynced func(time.Time)
}

// New creates a sync task.
func New(cfg Config, link device.Link, log zerolog.Logger, opts ...Option) (*Task, error) {
	if link == nil {
		return nil, errors.New("timesync: link required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("timesync: interval must be > 0")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	t := &Task{
		cfg:  cfg,
		link: link,
		log:  log,
		now:  time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// OffsetMinutes returns the offset sent for the given instant.
func (t *Task) OffsetMinutes(at time.Time) int {
	if t.cfg.FixedOffsetMinutes != nil {
		return *t.cfg.FixedOffsetMinutes
	}
	_, sec := at.In(t.cfg.Location).Zone()
	return sec / 60
}

// SyncOnce issues a single clock write.
func (t *Task) SyncOnce(ctx context.Context) error {
	at := t.now()
	offset := t.OffsetMinutes(at)

	frame := register.EncodeClock(at.Unix(), offset)
	if err := t.link.WriteRegisters(ctx, register.AddrClock, frame[:]); err != nil {
		return fmt.Errorf("timesync: write clock: %w", err)
	}

	if t.onSynced != nil {
		t.onSynced(at)
	}

	t.log.Debug().
		Int64("epoch", at.Unix()).
		Int("tz_offset_min", offset).
		Msg("device clock synced")
	return nil
}

// Run syncs at start and then every interval. Failures are logged and
// retried on the next tick.
func (t *Task) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	t.syncAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.syncAndLog(ctx)
		}
	}
}

func (t *Task) syncAndLog(ctx context.Context) {
	if err := t.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		t.log.Warn().Err(err).Msg("clock sync failed")
	}
}
