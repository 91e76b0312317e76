package register

// Ohmpilot register map.
// Addresses are wire addresses (zero-based, as sent in the PDU).
// These values define the protocol and MUST NOT be configurable.

// ---- WRITE BLOCKS ----

// AddrClock is the start of the clock/timezone command frame.
const AddrClock uint16 = 40399

// ClockWords is the fixed length of the clock frame:
// reserved, reserved, epoch high, epoch low, tz offset minutes.
const ClockWords = 5

// AddrSetpoint holds the commanded heater power (32-bit, W).
const AddrSetpoint uint16 = 40599

// SetpointWords is the length of the setpoint block.
const SetpointWords = 2

// ---- READ BLOCKS ----

// AddrStatus holds the device status code.
const AddrStatus uint16 = 40799

// StatusWords is the length of the status register.
const StatusWords = 1

// AddrActivePower holds the current heater draw (32-bit, W).
const AddrActivePower uint16 = 40800

// ActivePowerWords is the length of the active power block.
const ActivePowerWords = 2

// AddrEnergy holds the cumulative heater energy (64-bit, Wh).
const AddrEnergy uint16 = 40804

// EnergyWords is the length of the energy block.
const EnergyWords = 4

// AddrTemperature holds the water temperature in tenths of a degree.
const AddrTemperature uint16 = 40808

// TemperatureWords is the length of the temperature register.
const TemperatureWords = 1

// ---- LIMITS ----

// MaxRegistersPerRead is the Modbus limit for one read request.
const MaxRegistersPerRead = 125
