package sensors

import (
	"encoding/binary"
	"fmt"
	"math"

	"periph.io/x/conn/v3"

	"github.com/relabs-tech/env_station/internal/env"
)

const (
	bmp280Name = "bmp280"

	bmp280RegCalib    = 0x88
	bmp280CalibLen    = 24
	bmp280RegCtrlMeas = 0xF4
	bmp280RegConfig   = 0xF5
	bmp280RegPressMsb = 0xF7

	// osrs_t x1, osrs_p x1, normal mode.
	bmp280CtrlMeas = 0x27
	// t_sb 1000 ms, filter off.
	bmp280Config = 0xA0

	seaLevelPa = 101325.0
)

// Calibration holds the twelve trimming coefficients burned into the
// BMP280's NVM.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int16
	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16
}

// ParseCalibration decodes the 24-byte little-endian block read from 0x88.
func ParseCalibration(b []byte) (Calibration, error) {
	if len(b) < bmp280CalibLen {
		return Calibration{}, fmt.Errorf("bmp280: calibration block is %d bytes, want %d", len(b), bmp280CalibLen)
	}
	le := binary.LittleEndian
	return Calibration{
		T1: le.Uint16(b[0:2]),
		T2: int16(le.Uint16(b[2:4])),
		T3: int16(le.Uint16(b[4:6])),
		P1: le.Uint16(b[6:8]),
		P2: int16(le.Uint16(b[8:10])),
		P3: int16(le.Uint16(b[10:12])),
		P4: int16(le.Uint16(b[12:14])),
		P5: int16(le.Uint16(b[14:16])),
		P6: int16(le.Uint16(b[16:18])),
		P7: int16(le.Uint16(b[18:20])),
		P8: int16(le.Uint16(b[20:22])),
		P9: int16(le.Uint16(b[22:24])),
	}, nil
}

// BMP280 is the pressure/temperature unit. It owns the calibration set for
// the life of the process and the fine temperature shared between the two
// compensation steps of a single read.
type BMP280 struct {
	c conn.Conn

	cal   *Calibration
	tFine int32
}

func NewBMP280(c conn.Conn) *BMP280 {
	return &BMP280{c: c}
}

// Init loads calibration and puts the sensor into normal mode. A failed
// calibration load is retried by the next Read.
func (d *BMP280) Init() error {
	calErr := d.loadCalibration()

	if err := write(d.c, bmp280Name, []byte{bmp280RegCtrlMeas, bmp280CtrlMeas}); err != nil {
		return err
	}
	if err := write(d.c, bmp280Name, []byte{bmp280RegConfig, bmp280Config}); err != nil {
		return err
	}
	if calErr != nil {
		return fmt.Errorf("%w: %w", ErrCalibrationUnavailable, calErr)
	}
	return nil
}

func (d *BMP280) loadCalibration() error {
	var raw [bmp280CalibLen]byte
	if err := readReg(d.c, bmp280Name, bmp280RegCalib, raw[:]); err != nil {
		d.cal = nil
		return err
	}
	cal, err := ParseCalibration(raw[:])
	if err != nil {
		return err
	}
	d.cal = &cal
	return nil
}

// Calibration returns the loaded coefficients, or nil if none are loaded.
func (d *BMP280) Calibration() *Calibration {
	return d.cal
}

// Read samples both ADCs and compensates temperature then pressure.
func (d *BMP280) Read(out *env.PressureReading) error {
	out.Valid = false
	if d.cal == nil {
		if err := d.loadCalibration(); err != nil {
			return fmt.Errorf("%w: %w", ErrCalibrationUnavailable, err)
		}
	}

	var raw [6]byte
	if err := readReg(d.c, bmp280Name, bmp280RegPressMsb, raw[:]); err != nil {
		return err
	}
	adcP := int32(raw[0])<<12 | int32(raw[1])<<4 | int32(raw[2])>>4
	adcT := int32(raw[3])<<12 | int32(raw[4])<<4 | int32(raw[5])>>4

	// Pressure compensation reads tFine, so temperature must go first.
	out.Temperature = d.compensateTemperature(adcT)
	out.Pressure = d.compensatePressure(adcP)
	out.Altitude = Altitude(out.Pressure)
	out.Valid = true
	return nil
}

// compensateTemperature is the datasheet's 32-bit integer formula, widened to
// int64 for the intermediates. It stores tFine and returns °C.
func (d *BMP280) compensateTemperature(adcT int32) float64 {
	c := d.cal
	t := int64(adcT)
	t1 := int64(c.T1)

	var1 := (((t >> 3) - (t1 << 1)) * int64(c.T2)) >> 11
	var2 := (((((t >> 4) - t1) * ((t >> 4) - t1)) >> 12) * int64(c.T3)) >> 14

	d.tFine = int32(var1 + var2)
	return float64((int64(d.tFine)*5+128)>>8) / 100.0
}

// compensatePressure is the datasheet's 64-bit integer formula. The result
// is Q24.8 Pa, returned as Pa.
func (d *BMP280) compensatePressure(adcP int32) float64 {
	c := d.cal

	var1 := int64(d.tFine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = ((int64(1) << 47) + var1) * int64(c.P1) >> 33
	if var1 == 0 {
		return 0
	}

	p := int64(1048576) - int64(adcP)
	p = (((p << 31) - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)

	return float64(p) / 256.0
}

// Altitude converts pressure to metres with the international barometric
// formula. Non-positive pressure yields 0.
func Altitude(pressurePa float64) float64 {
	if pressurePa <= 0 {
		return 0
	}
	return 44330.0 * (1.0 - math.Pow(pressurePa/seaLevelPa, 0.1903))
}
