package sensors

import (
	"time"

	"periph.io/x/conn/v3"

	"github.com/relabs-tech/env_station/internal/env"
)

const (
	aht20Name = "aht20"

	aht20StatusCalibrated = 0x08

	aht20ConversionDelay = 80 * time.Millisecond
	aht20InitDelay       = 10 * time.Millisecond
)

var (
	aht20Trigger = [3]byte{0xAC, 0x33, 0x00}
	aht20Init    = [3]byte{0xBE, 0x08, 0x00}
)

// AHT20 is the humidity/temperature unit. It is the primary sensor: a
// station cycle only continues when this read succeeds.
type AHT20 struct {
	c conn.Conn
}

func NewAHT20(c conn.Conn) *AHT20 {
	return &AHT20{c: c}
}

// Init loads the factory calibration if the status byte reports it missing.
func (d *AHT20) Init() error {
	var status [1]byte
	if err := read(d.c, aht20Name, status[:]); err != nil {
		return err
	}
	if status[0]&aht20StatusCalibrated != 0 {
		return nil
	}
	if err := write(d.c, aht20Name, aht20Init[:]); err != nil {
		return err
	}
	sleep(aht20InitDelay)
	return nil
}

// Read triggers a measurement, waits for the conversion and decodes the
// 20-bit humidity and temperature fields.
func (d *AHT20) Read(out *env.HumidityReading) error {
	out.Valid = false
	if err := write(d.c, aht20Name, aht20Trigger[:]); err != nil {
		return err
	}

	sleep(aht20ConversionDelay)

	var raw [6]byte
	if err := read(d.c, aht20Name, raw[:]); err != nil {
		return err
	}

	humidity := uint32(raw[1])<<12 | uint32(raw[2])<<4 | uint32(raw[3])>>4
	temperature := (uint32(raw[3])&0x0F)<<16 | uint32(raw[4])<<8 | uint32(raw[5])

	out.Status = raw[0]
	out.Humidity = float64(humidity) * 100.0 / (1 << 20)
	out.Temperature = float64(temperature)*200.0/(1<<20) - 50.0
	out.Valid = true
	return nil
}
