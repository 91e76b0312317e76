// Package surplus provides the surplus power estimate fed into the control
// policy. Positive values mean power is being exported to the grid.
package surplus

import (
	"context"
	"errors"
)

var (
	// ErrNoValue is returned before the first reading arrives.
	ErrNoValue = errors.New("surplus: no value received yet")
	// ErrStale is returned when the last reading is older than the max age.
	ErrStale = errors.New("surplus: value is stale")
)

// Source is a surplus power estimate.
type Source interface {
	SurplusW(ctx context.Context) (int, error)
}

// Static always returns the same value. Useful for bench testing.
type Static int

func (s Static) SurplusW(context.Context) (int, error) { return int(s), nil }
