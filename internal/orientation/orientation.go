package orientation

import (
	"math"
)

// Pose is the attitude derived from one accelerometer sample plus the
// magnetometer heading, all in degrees.
type Pose struct {
	Roll    float64 `json:"roll"`
	Pitch   float64 `json:"pitch"`
	Heading float64 `json:"heading"`

	HeadingValid bool `json:"heading_valid"`
}

// Tilt computes roll and pitch from raw accelerometer counts. Only the
// direction of the vector matters, so no scale factor is needed.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func Tilt(ax, ay, az int16) (roll, pitch float64) {
	x, y, z := float64(ax), float64(ay), float64(az)
	roll = math.Atan2(y, z) * 180.0 / math.Pi
	pitch = math.Atan2(-x, math.Sqrt(y*y+z*z)) * 180.0 / math.Pi
	return roll, pitch
}

// FromSample builds a Pose. A NaN heading leaves Heading at 0 with
// HeadingValid false.
func FromSample(ax, ay, az int16, heading float64) Pose {
	roll, pitch := Tilt(ax, ay, az)
	p := Pose{Roll: roll, Pitch: pitch}
	if !math.IsNaN(heading) {
		p.Heading, p.HeadingValid = heading, true
	}
	return p
}
