package imu

import "math"

// InertialReading represents a single raw MPU6050 sample.
type InertialReading struct {
	Valid bool `json:"valid"`

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Temperature float64 `json:"temp_c"` // die temperature
}

// MagReading represents a single raw HSCDTD008A sample.
type MagReading struct {
	Valid bool `json:"valid"`

	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`

	Heading float64 `json:"heading_deg"` // [0, 360)
}

// Heading returns atan2(y, x) in degrees, shifted into [0, 360).
func Heading(x, y int16) float64 {
	deg := math.Atan2(float64(y), float64(x)) * 180.0 / math.Pi
	if deg < 0 {
		deg += 360.0
	}
	return deg
}
