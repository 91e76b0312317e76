package register

// EncodeString packs up to 2*words printable ASCII characters into words.
// Each word stores two characters, high byte first. Non-printable bytes become '?'.
func EncodeString(s string, words int) []uint16 {
	out := make([]uint16, words)

	b := []byte(s)
	if len(b) > words*2 {
		b = b[:words*2]
	}

	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < words*2; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}

// DecodeString unpacks ASCII words, stopping at the first NUL.
func DecodeString(words []uint16) string {
	b := make([]byte, 0, len(words)*2)
	for _, w := range words {
		for _, c := range [2]byte{byte(w >> 8), byte(w)} {
			if c == 0 {
				return string(b)
			}
			b = append(b, c)
		}
	}
	return string(b)
}
