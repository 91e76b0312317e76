package register

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStatus_Identity(t *testing.T) {
	for _, w := range []uint16{0, 1, 7, 0x7FFF, 0xFFFF} {
		assert.Equal(t, w, DecodeStatus(w))
	}
}

func TestDecodeTemperature_Tenths(t *testing.T) {
	assert.InDelta(t, 52.5, DecodeTemperature(525), 1e-9)
	assert.InDelta(t, 0.0, DecodeTemperature(0), 1e-9)
	assert.InDelta(t, 6553.5, DecodeTemperature(0xFFFF), 1e-9)
}

func TestDecode32(t *testing.T) {
	assert.Equal(t, uint32(0x0001_F400), Decode32(0x0001, 0xF400))
	assert.Equal(t, uint32(495), Decode32(0, 495))
	assert.Equal(t, uint32(math.MaxUint32), Decode32(0xFFFF, 0xFFFF))
}

func TestRoundTrip16(t *testing.T) {
	for v := 0; v <= math.MaxUint16; v++ {
		w := uint16(v)
		got := WordsFromBytes(BytesFromWords([]uint16{w}))
		require.Len(t, got, 1)
		if got[0] != w {
			t.Fatalf("16-bit round trip: got=%d want=%d", got[0], w)
		}
	}
}

func TestRoundTrip32(t *testing.T) {
	// Stride through the whole range plus the edges.
	values := []uint32{0, 1, 0xFFFF, 0x10000, math.MaxUint32 - 1, math.MaxUint32}
	for v := uint64(0); v <= math.MaxUint32; v += 65521 {
		values = append(values, uint32(v))
	}

	for _, v := range values {
		w := Encode32(v)
		if got := Decode32(w[0], w[1]); got != v {
			t.Fatalf("32-bit round trip: got=%d want=%d", got, v)
		}
	}
}

func TestRoundTrip64(t *testing.T) {
	values := []uint64{
		0,
		1,
		0xFFFF,
		0x1_0000,
		0xFFFF_FFFF,
		0x1_0000_0000,
		0x0123_4567_89AB_CDEF,
		math.MaxUint64,
	}
	for v := uint64(1); v < math.MaxUint64/3; v *= 3 {
		values = append(values, v)
	}

	for _, v := range values {
		w := Encode64(v)
		if got := Decode64(w[0], w[1], w[2], w[3]); got != v {
			t.Fatalf("64-bit round trip: got=%d want=%d", got, v)
		}
	}
}

func TestDecode64_BigEndianWordOrder(t *testing.T) {
	assert.Equal(t, uint64(0x0001_0002_0003_0004), Decode64(1, 2, 3, 4))
}

func TestEncodeSetpoint(t *testing.T) {
	assert.Equal(t, [2]uint16{0, 495}, EncodeSetpoint(495))
	assert.Equal(t, [2]uint16{0x0001, 0x0000}, EncodeSetpoint(65536))
	assert.Equal(t, [2]uint16{0, 0}, EncodeSetpoint(-20), "negative clamps to zero")
	assert.Equal(t, [2]uint16{0xFFFF, 0xFFFF}, EncodeSetpoint(math.MaxUint32+10))
}

func TestEncodeClock(t *testing.T) {
	const epoch int64 = 1_700_000_000 // 0x6553F100

	frame := EncodeClock(epoch, 120)

	assert.Equal(t, [ClockWords]uint16{0, 0, 0x6553, 0xF100, 120}, frame)
	assert.Equal(t, uint32(epoch), Decode32(frame[2], frame[3]))
}

func TestEncodeClock_NegativeOffset(t *testing.T) {
	frame := EncodeClock(0, -300)
	assert.Equal(t, int16(-300), int16(frame[4]))
}

func TestWordsFromBytes_IgnoresTrailingByte(t *testing.T) {
	got := WordsFromBytes([]byte{0x01, 0x02, 0x03})
	assert.Equal(t, []uint16{0x0102}, got)
}

func TestCalibration(t *testing.T) {
	assert.InDelta(t, 50.0, Calibration{}.Apply(50), 1e-9, "zero value is identity")

	c := Calibration{Gain: 1.03, Offset: 3.80}
	assert.InDelta(t, 50*1.03+3.80, c.Apply(50), 1e-9)
}

func TestStringRoundTrip(t *testing.T) {
	words := EncodeString("OHMPILOT-01", 8)
	require.Len(t, words, 8)
	assert.Equal(t, "OHMPILOT-01", DecodeString(words))

	// truncation to capacity
	assert.Equal(t, "ABCD", DecodeString(EncodeString("ABCDEF", 2)))

	// sanitize
	assert.Equal(t, "A?B", DecodeString(EncodeString("A\x01B", 2)))
}
