package writer

import (
	"fmt"

	"github.com/tamzrod/ohmpilot-controller/internal/register"
	"github.com/tamzrod/ohmpilot-controller/internal/telemetry"
)

// endpointClient is the exact contract the mirror writers use.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// Mirror block layout, relative to the configured base address.
const (
	MirrorStatus      = 0
	MirrorTemperature = 1  // int16, 0.1 C
	MirrorActivePower = 2  // uint32, 2 words
	MirrorEnergy      = 4  // uint64, 4 words
	MirrorSetpoint    = 8  // uint32, 2 words
	MirrorSurplus     = 10 // int32, 2 words
	MirrorValid       = 12 // bitmask of present fields

	MirrorWords = 13
)

// Valid bits.
const (
	ValidStatus uint16 = 1 << iota
	ValidTemperature
	ValidActivePower
	ValidEnergy
)

// MirrorPlan is where the mirror block goes.
type MirrorPlan struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
}

// MirrorWriter re-publishes each snapshot as holding registers on another
// Modbus server.
type MirrorWriter struct {
	plan MirrorPlan
	cli  endpointClient
}

func NewMirrorWriter(plan MirrorPlan, cli endpointClient) *MirrorWriter {
	return &MirrorWriter{plan: plan, cli: cli}
}

// Write skips stalled cycles so the mirror keeps the last good data.
func (w *MirrorWriter) Write(res telemetry.CycleResult) error {
	if res.Stalled {
		return nil
	}

	regs := EncodeMirror(res.Snapshot)
	if err := w.cli.WriteRegisters(w.plan.UnitID, w.plan.Address, regs); err != nil {
		return fmt.Errorf(
			"mirror: ep=%s unit=%d addr=%d err=%w",
			w.plan.Endpoint, w.plan.UnitID, w.plan.Address, err,
		)
	}
	return nil
}

// EncodeMirror packs a snapshot into the mirror block. Absent fields are
// zero with their valid bit cleared.
func EncodeMirror(s telemetry.Snapshot) []uint16 {
	regs := make([]uint16, MirrorWords)
	var valid uint16

	if v, ok := s.Status(); ok {
		regs[MirrorStatus] = v
		valid |= ValidStatus
	}
	if v, ok := s.TemperatureC(); ok {
		regs[MirrorTemperature] = uint16(int16(roundTenths(v)))
		valid |= ValidTemperature
	}
	if v, ok := s.ActivePowerW(); ok {
		w := register.Encode32(v)
		copy(regs[MirrorActivePower:], w[:])
		valid |= ValidActivePower
	}
	if v, ok := s.EnergyWh(); ok {
		w := register.Encode64(v)
		copy(regs[MirrorEnergy:], w[:])
		valid |= ValidEnergy
	}

	sp := register.EncodeSetpoint(s.SetpointW())
	copy(regs[MirrorSetpoint:], sp[:])

	sur := register.Encode32(uint32(int32(s.SurplusW())))
	copy(regs[MirrorSurplus:], sur[:])

	regs[MirrorValid] = valid
	return regs
}

func roundTenths(c float64) int {
	t := c * 10
	if t < 0 {
		return int(t - 0.5)
	}
	return int(t + 0.5)
}
