package status

import "github.com/tamzrod/ohmpilot-controller/internal/register"

// Encode converts a Snapshot into the leading slots of the block.
// The name slots are left zero; the writer fills them.
// No IO.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotFailedReads] = s.FailedReads

	sp := register.Encode32(s.SetpointW)
	regs[SlotSetpointHi] = sp[0]
	regs[SlotSetpointLo] = sp[1]

	return regs
}

// EncodeDeviceName packs an ASCII name into the name slots.
func EncodeDeviceName(name string) []uint16 {
	if len(name) > DeviceNameMaxChars {
		name = name[:DeviceNameMaxChars]
	}
	return register.EncodeString(name, SlotDeviceNameSlots)
}
