package instrument

import "math"

// Mixer range in dB
const (
	MinVolume = -40.0
	MaxVolume = 0.0
)

// ClampVolume limits db to the mixer range.
func ClampVolume(db float64) float64 {
	if math.IsNaN(db) || db < MinVolume {
		return MinVolume
	}
	if db > MaxVolume {
		return MaxVolume
	}
	return db
}

// Gain converts decibels to a linear amplitude factor.
func Gain(db float64) float64 {
	if math.IsInf(db, -1) {
		return 0
	}
	return math.Pow(10, db/20)
}

// MIDIVolume maps decibels to a CC7 value using the GM volume curve
// (dB = 40 log10(cc/127)).
func MIDIVolume(db float64) uint8 {
	v := 127 * math.Pow(10, db/40)
	if v > 127 {
		v = 127
	}
	if v < 0 {
		v = 0
	}
	return uint8(math.Round(v))
}
