package writer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tamzrod/ohmpilot-controller/internal/status"
)

// StatusPlan locates the device status block.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	Slot       uint16
	DeviceName string
}

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// deviceStatusWriter writes the full block once, then only changed slots.
type deviceStatusWriter struct {
	plan StatusPlan
	cli  endpointClient

	mu       sync.Mutex
	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

// NewDeviceStatusWriter builds a status writer for the plan.
func NewDeviceStatusWriter(plan StatusPlan, cli endpointClient) *deviceStatusWriter {
	return &deviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first write
		last:     status.Snapshot{Health: status.HealthUnknown},
		nameRegs: status.EncodeDeviceName(plan.DeviceName),
	}
}

// WriteStatus delivers a snapshot into the status block.
// After any failure the next call re-asserts the full block.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.cli == nil {
		return errors.New("status writer: disabled")
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	base := sw.baseAddr()
	unitID := sw.plan.UnitID

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(unitID, base, sw.fullBlockRegs(s)); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = s
		return nil
	}

	var errs []string

	write := func(name string, slot int, regs []uint16) bool {
		if err := sw.cli.WriteRegisters(unitID, base+uint16(slot), regs); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", slot, name, err))
			return false
		}
		return true
	}

	if sw.last.Health != s.Health && write("health", status.SlotHealthCode, []uint16{s.Health}) {
		sw.last.Health = s.Health
	}
	if sw.last.LastErrorCode != s.LastErrorCode && write("last_error", status.SlotLastErrorCode, []uint16{s.LastErrorCode}) {
		sw.last.LastErrorCode = s.LastErrorCode
	}
	if sw.last.SecondsInError != s.SecondsInError && write("seconds", status.SlotSecondsInError, []uint16{s.SecondsInError}) {
		sw.last.SecondsInError = s.SecondsInError
	}
	if sw.last.FailedReads != s.FailedReads && write("failed_reads", status.SlotFailedReads, []uint16{s.FailedReads}) {
		sw.last.FailedReads = s.FailedReads
	}
	if sw.last.SetpointW != s.SetpointW {
		regs := status.Encode(s)
		if write("setpoint", status.SlotSetpointHi, regs[status.SlotSetpointHi:status.SlotSetpointLo+1]) {
			sw.last.SetpointW = s.SetpointW
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next call.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return sw.plan.Slot * status.SlotsPerDevice
}

func (sw *deviceStatusWriter) fullBlockRegs(s status.Snapshot) []uint16 {
	regs := status.Encode(s)
	copy(regs[status.SlotDeviceNameStart:status.SlotDeviceNameEnd+1], sw.nameRegs)
	return regs
}
