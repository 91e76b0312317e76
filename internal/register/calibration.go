package register

// Calibration is an optional linear correction applied after decode:
// corrected = raw*Gain + Offset.
// The zero value is the identity.
type Calibration struct {
	Gain   float64
	Offset float64
}

// Apply returns the corrected temperature.
func (c Calibration) Apply(tempC float64) float64 {
	gain := c.Gain
	if gain == 0 {
		gain = 1
	}
	return tempC*gain + c.Offset
}
