// Package snapshot holds the aggregate reading assembled once per poll cycle.
package snapshot

import (
	"github.com/relabs-tech/env_station/internal/env"
	"github.com/relabs-tech/env_station/internal/gps"
	"github.com/relabs-tech/env_station/internal/imu"
)

// Snapshot is one cycle's view of every sensor plus the positioning state.
type Snapshot struct {
	Humidity env.HumidityReading `json:"aht20"`
	Pressure env.PressureReading `json:"bmp280"`
	Inertial imu.InertialReading `json:"mpu6050"`
	Light    env.LightReading    `json:"veml7700"`
	Mag      imu.MagReading      `json:"hscdtd"`
	Position gps.Position        `json:"gps"`
}

// New returns a zeroed snapshot with an unknown position.
func New() Snapshot {
	return Snapshot{Position: gps.UnknownPosition()}
}

// Reset zeroes every sensor sub-record. Position is left alone: it carries
// over between cycles until a sentence overwrites it.
func (s *Snapshot) Reset() {
	pos := s.Position
	*s = Snapshot{Position: pos}
}
