package telemetry

import "errors"

// ErrAllReadsFailed marks a stalled cycle: no telemetry read succeeded.
var ErrAllReadsFailed = errors.New("telemetry: all register reads failed")

// Field names used in read failure reports.
const (
	FieldStatus      = "status"
	FieldTemperature = "temperature"
	FieldActivePower = "active_power"
	FieldEnergy      = "energy"
)

// FieldFailure records one failed read.
type FieldFailure struct {
	Field string
	Err   error
}

// CycleResult is what one poll cycle reports to listeners.
type CycleResult struct {
	Snapshot Snapshot

	// Stalled is true when every read failed; Err is then ErrAllReadsFailed
	// and no setpoint was decided or written.
	Stalled bool
	Err     error

	// Decided is true when the policy ran this cycle.
	Decided bool

	ReadFailures []FieldFailure
	WriteErr     error
}

// OK reports a cycle with no failure of any kind.
func (r CycleResult) OK() bool {
	return r.Err == nil && r.WriteErr == nil && len(r.ReadFailures) == 0
}

// Listener receives cycle results. Implementations must not block for long
// and must not retain mutable references into the loop.
type Listener interface {
	Publish(res CycleResult)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(res CycleResult)

func (f ListenerFunc) Publish(res CycleResult) { f(res) }
