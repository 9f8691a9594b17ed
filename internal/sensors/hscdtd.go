package sensors

import (
	"encoding/binary"

	"periph.io/x/conn/v3"

	"github.com/relabs-tech/env_station/internal/imu"
)

const (
	hscdtdName = "hscdtd"

	hscdtdRegData        = 0x00
	hscdtdRegMode        = 0x0B
	hscdtdModeContinuous = 0x01
)

// HSCDTD is the HSCDTD008A magnetometer.
type HSCDTD struct {
	c conn.Conn
}

func NewHSCDTD(c conn.Conn) *HSCDTD {
	return &HSCDTD{c: c}
}

// Init switches the sensor to continuous measurement.
func (d *HSCDTD) Init() error {
	return write(d.c, hscdtdName, []byte{hscdtdRegMode, hscdtdModeContinuous})
}

// Read fetches the three axes and derives a heading in the X/Y plane.
func (d *HSCDTD) Read(out *imu.MagReading) error {
	out.Valid = false
	var raw [6]byte
	if err := readReg(d.c, hscdtdName, hscdtdRegData, raw[:]); err != nil {
		return err
	}

	be := binary.BigEndian
	out.X = int16(be.Uint16(raw[0:2]))
	out.Y = int16(be.Uint16(raw[2:4]))
	out.Z = int16(be.Uint16(raw[4:6]))
	out.Heading = imu.Heading(out.X, out.Y)
	out.Valid = true
	return nil
}
