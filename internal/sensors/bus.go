package sensors

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
)

var sleep = time.Sleep

var (
	// ErrBus is matched by every BusError.
	ErrBus = errors.New("bus transaction failed")

	// ErrCalibrationUnavailable means the BMP280 coefficients could not be
	// loaded, so no pressure can be compensated.
	ErrCalibrationUnavailable = errors.New("calibration unavailable")
)

// BusError reports a write or read on the shared I2C bus that did not move
// the requested number of bytes.
type BusError struct {
	Sensor string
	Op     string // "write" or "read"
	Reg    int    // register address, -1 for a bare command/read
	Want   int    // bytes requested
	Err    error
}

func (e *BusError) Error() string {
	if e.Reg >= 0 {
		return fmt.Sprintf("%s: %s reg 0x%02X (%d bytes): %v", e.Sensor, e.Op, e.Reg, e.Want, e.Err)
	}
	return fmt.Sprintf("%s: %s (%d bytes): %v", e.Sensor, e.Op, e.Want, e.Err)
}

func (e *BusError) Unwrap() []error { return []error{ErrBus, e.Err} }

// write sends payload as one transaction. payload[0] is usually the register.
func write(c conn.Conn, sensor string, payload []byte) error {
	if err := c.Tx(payload, nil); err != nil {
		return &BusError{Sensor: sensor, Op: "write", Reg: int(payload[0]), Want: len(payload), Err: err}
	}
	return nil
}

// readReg writes the register address then reads len(dst) bytes with a
// repeated start.
func readReg(c conn.Conn, sensor string, reg byte, dst []byte) error {
	if err := c.Tx([]byte{reg}, dst); err != nil {
		return &BusError{Sensor: sensor, Op: "read", Reg: int(reg), Want: len(dst), Err: err}
	}
	return nil
}

// read reads len(dst) bytes without addressing a register first.
func read(c conn.Conn, sensor string, dst []byte) error {
	if err := c.Tx(nil, dst); err != nil {
		return &BusError{Sensor: sensor, Op: "read", Reg: -1, Want: len(dst), Err: err}
	}
	return nil
}
