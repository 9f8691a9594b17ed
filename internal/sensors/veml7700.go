package sensors

import (
	"encoding/binary"
	"time"

	"periph.io/x/conn/v3"

	"github.com/relabs-tech/env_station/internal/env"
)

const (
	veml7700Name = "veml7700"

	veml7700RegConf = 0x00
	veml7700RegALS  = 0x04

	// lux per count at gain x1, 100 ms integration.
	veml7700Resolution = 0.0576

	veml7700PowerOnDelay = 100 * time.Millisecond
)

// VEML7700 is the ambient-light unit, run at its power-on gain and
// integration time.
type VEML7700 struct {
	c conn.Conn
}

func NewVEML7700(c conn.Conn) *VEML7700 {
	return &VEML7700{c: c}
}

// Init writes ALS_CONF=0x0000 (gain x1, 100 ms, powered on).
func (d *VEML7700) Init() error {
	if err := write(d.c, veml7700Name, []byte{veml7700RegConf, 0x00, 0x00}); err != nil {
		return err
	}
	sleep(veml7700PowerOnDelay)
	return nil
}

func (d *VEML7700) Read(out *env.LightReading) error {
	out.Valid = false
	var raw [2]byte
	if err := readReg(d.c, veml7700Name, veml7700RegALS, raw[:]); err != nil {
		return err
	}
	out.Lux = float64(binary.LittleEndian.Uint16(raw[:])) * veml7700Resolution
	out.Valid = true
	return nil
}
