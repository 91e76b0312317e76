// Package register decodes and encodes Ohmpilot register words.
// Pure functions: no IO, no state.
package register

import "math"

// DecodeStatus passes the status register through unchanged.
func DecodeStatus(w uint16) uint16 {
	return w
}

// DecodeTemperature converts a raw tenths-of-a-degree word to °C.
// No calibration is applied here; see Calibration.
func DecodeTemperature(w uint16) float64 {
	return float64(w) / 10
}

// Decode32 joins two big-endian words into an unsigned 32-bit value.
func Decode32(w0, w1 uint16) uint32 {
	return uint32(w0)<<16 | uint32(w1)
}

// Encode32 splits v into two big-endian words.
func Encode32(v uint32) [2]uint16 {
	return [2]uint16{uint16(v >> 16), uint16(v)}
}

// Decode64 joins four big-endian words into an unsigned 64-bit value.
func Decode64(w0, w1, w2, w3 uint16) uint64 {
	return uint64(w0)<<48 | uint64(w1)<<32 | uint64(w2)<<16 | uint64(w3)
}

// Encode64 splits v into four big-endian words.
func Encode64(v uint64) [4]uint16 {
	return [4]uint16{
		uint16(v >> 48),
		uint16(v >> 32),
		uint16(v >> 16),
		uint16(v),
	}
}

// EncodeSetpoint encodes a heater power setpoint.
// Negative power is clamped to 0, power above the 32-bit range to MaxUint32.
func EncodeSetpoint(power int) [2]uint16 {
	if power < 0 {
		power = 0
	}
	v := uint64(power)
	if v > math.MaxUint32 {
		v = math.MaxUint32
	}
	return Encode32(uint32(v))
}

// EncodeClock builds the fixed clock frame.
//
// Layout:
//
//	0-1 reserved (zero)
//	2   epoch seconds, high word
//	3   epoch seconds, low word
//	4   timezone offset in minutes (two's complement)
func EncodeClock(epochSeconds int64, tzOffsetMinutes int) [ClockWords]uint16 {
	e := uint32(epochSeconds)
	return [ClockWords]uint16{
		0,
		0,
		uint16(e >> 16),
		uint16(e),
		uint16(int16(tzOffsetMinutes)),
	}
}

// WordsFromBytes unpacks big-endian register bytes into words.
// A trailing odd byte is ignored.
func WordsFromBytes(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

// BytesFromWords packs words in Modbus register order (big-endian).
func BytesFromWords(words []uint16) []byte {
	out := make([]byte, len(words)*2)
	for i, w := range words {
		out[2*i] = byte(w >> 8)
		out[2*i+1] = byte(w)
	}
	return out
}
