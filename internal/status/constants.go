package status

// Status block layout. Consumers of the mirror decode it by position, so
// these values are fixed.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers in the block.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the controller's view of device health.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last error code (Modbus exception or 1).
const SlotLastErrorCode = 1

// SlotSecondsInError counts seconds spent in a non-OK state.
const SlotSecondsInError = 2

// SlotFailedReads holds the number of failed reads in the last cycle.
const SlotFailedReads = 3

// SlotSetpointHi and SlotSetpointLo hold the last commanded setpoint (W).
const (
	SlotSetpointHi = 4
	SlotSetpointLo = 5
)

// Slots 6-10 are reserved.
const (
	SlotReservedStart = 6
	SlotReservedEnd   = 10
)

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first name slot; the name closes the block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of name registers.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last name slot (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// DeviceNameMaxChars is the maximum number of ASCII characters stored.
const DeviceNameMaxChars = SlotDeviceNameSlots * 2

// ---- HEALTH CODES ----

const (
	HealthUnknown  uint16 = 0 // no cycle observed yet
	HealthOK       uint16 = 1
	HealthError    uint16 = 2 // stalled cycle or setpoint write failure
	HealthStale    uint16 = 3 // no good cycle within stale_after
	HealthInactive uint16 = 4 // reading only, control switched off
)

// HealthName returns the lower-case name of a health code.
func HealthName(code uint16) string {
	switch code {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthInactive:
		return "inactive"
	default:
		return "unknown"
	}
}
