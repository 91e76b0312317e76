package status

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// Notifier receives the snapshot every time it changes.
type Notifier func(s Snapshot)

// Tracker turns cycle results and a 1 Hz tick into device health.
// It implements telemetry.Listener.
type Tracker struct {
	staleAfter time.Duration
	now        func() time.Time

	// fireMu spans swap and delivery so notifiers see changes in order.
	fireMu sync.Mutex

	mu       sync.Mutex
	snap     Snapshot
	lastGood time.Time
	notify   []Notifier
}

// NewTracker creates a tracker. staleAfter <= 0 disables stale detection.
func NewTracker(staleAfter time.Duration, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		staleAfter: staleAfter,
		now:        now,
		snap:       Snapshot{Health: HealthUnknown},
	}
}

// OnChange registers a notifier. Notifiers run on the caller's goroutine
// outside the tracker lock, one change at a time in the order the changes
// were applied.
func (t *Tracker) OnChange(fn Notifier) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = append(t.notify, fn)
}

// Snapshot returns the current health.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Publish applies one cycle result.
func (t *Tracker) Publish(res telemetry.CycleResult) {
	t.fireMu.Lock()
	defer t.fireMu.Unlock()

	t.mu.Lock()
	next := t.snap
	next.FailedReads = uint16(len(res.ReadFailures))

	switch {
	case res.Stalled:
		next.Health = HealthError
		next.LastErrorCode = errorCode(firstReadErr(res))
		// NOTE: seconds_in_error increments on Tick only.

	case res.WriteErr != nil:
		next.Health = HealthError
		next.LastErrorCode = errorCode(res.WriteErr)
		next.SetpointW = uint32(max(0, res.Snapshot.SetpointW()))
		t.lastGood = res.Snapshot.At()

	default:
		if res.Decided {
			next.Health = HealthOK
		} else {
			next.Health = HealthInactive
		}
		next.LastErrorCode = 0
		next.SecondsInError = 0
		next.SetpointW = uint32(max(0, res.Snapshot.SetpointW()))
		t.lastGood = res.Snapshot.At()
	}

	changed := t.swap(next)
	t.mu.Unlock()

	if changed {
		t.fire(next)
	}
}

// Tick advances the seconds counter and detects staleness. Call at 1 Hz.
func (t *Tracker) Tick() {
	t.fireMu.Lock()
	defer t.fireMu.Unlock()

	t.mu.Lock()
	next := t.snap

	if next.Health == HealthOK && t.staleAfter > 0 && !t.lastGood.IsZero() &&
		t.now().Sub(t.lastGood) > t.staleAfter {
		next.Health = HealthStale
	}

	if next.InError() && next.SecondsInError < 65535 {
		next.SecondsInError++
	}

	changed := t.swap(next)
	t.mu.Unlock()

	if changed {
		t.fire(next)
	}
}

// Run ticks every second until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Tick()
		}
	}
}

// swap must be called with mu held.
func (t *Tracker) swap(next Snapshot) bool {
	if next == t.snap {
		return false
	}
	t.snap = next
	return true
}

func (t *Tracker) fire(s Snapshot) {
	t.mu.Lock()
	notify := make([]Notifier, len(t.notify))
	copy(notify, t.notify)
	t.mu.Unlock()

	for _, fn := range notify {
		fn(s)
	}
}

func firstReadErr(res telemetry.CycleResult) error {
	if len(res.ReadFailures) > 0 {
		return res.ReadFailures[0].Err
	}
	return res.Err
}

// errorCode extracts a best-effort uint16 code from an error.
// Errors that do not expose a code map to 1 (generic).
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return 1
}
