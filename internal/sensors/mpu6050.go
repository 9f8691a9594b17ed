package sensors

import (
	"encoding/binary"
	"time"

	"periph.io/x/conn/v3"

	"github.com/relabs-tech/env_station/internal/imu"
)

const (
	mpu6050Name = "mpu6050"

	mpu6050RegPwrMgmt1  = 0x6B
	mpu6050RegAccelXOut = 0x3B
	mpu6050BurstLen     = 14

	mpu6050WakeDelay = 100 * time.Millisecond
)

// MPU6050 is the accelerometer/gyroscope unit. Values stay in raw counts.
type MPU6050 struct {
	c conn.Conn
}

func NewMPU6050(c conn.Conn) *MPU6050 {
	return &MPU6050{c: c}
}

// Init clears the sleep bit and waits for the oscillator to settle.
func (d *MPU6050) Init() error {
	if err := write(d.c, mpu6050Name, []byte{mpu6050RegPwrMgmt1, 0x00}); err != nil {
		return err
	}
	sleep(mpu6050WakeDelay)
	return nil
}

// Read bursts accel, temperature and gyro registers in one transaction.
func (d *MPU6050) Read(out *imu.InertialReading) error {
	out.Valid = false
	var raw [mpu6050BurstLen]byte
	if err := readReg(d.c, mpu6050Name, mpu6050RegAccelXOut, raw[:]); err != nil {
		return err
	}

	be := binary.BigEndian
	out.Ax = int16(be.Uint16(raw[0:2]))
	out.Ay = int16(be.Uint16(raw[2:4]))
	out.Az = int16(be.Uint16(raw[4:6]))
	tempRaw := int16(be.Uint16(raw[6:8]))
	out.Gx = int16(be.Uint16(raw[8:10]))
	out.Gy = int16(be.Uint16(raw[10:12]))
	out.Gz = int16(be.Uint16(raw[12:14]))

	out.Temperature = float64(tempRaw)/340.0 + 36.53
	out.Valid = true
	return nil
}
