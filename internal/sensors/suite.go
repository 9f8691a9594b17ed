// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

// Addresses are the 7-bit I2C addresses of the five sensors.
type Addresses struct {
	Humidity uint16
	Pressure uint16
	Inertial uint16
	Light    uint16
	Mag      uint16
}

// DefaultAddresses matches the station's wiring.
func DefaultAddresses() Addresses {
	return Addresses{
		Humidity: 0x38,
		Pressure: 0x77,
		Inertial: 0x68,
		Light:    0x10,
		Mag:      0x0C,
	}
}

// Suite is the set of drivers sharing one bus.
type Suite struct {
	Humidity *AHT20
	Pressure *BMP280
	Inertial *MPU6050
	Light    *VEML7700
	Mag      *HSCDTD
}

// NewSuite binds one driver per address on bus. Nothing is sent until Init.
func NewSuite(bus i2c.Bus, a Addresses) *Suite {
	return &Suite{
		Humidity: NewAHT20(&i2c.Dev{Bus: bus, Addr: a.Humidity}),
		Pressure: NewBMP280(&i2c.Dev{Bus: bus, Addr: a.Pressure}),
		Inertial: NewMPU6050(&i2c.Dev{Bus: bus, Addr: a.Inertial}),
		Light:    NewVEML7700(&i2c.Dev{Bus: bus, Addr: a.Light}),
		Mag:      NewHSCDTD(&i2c.Dev{Bus: bus, Addr: a.Mag}),
	}
}

// Init runs every driver's Init exactly once. Failures are logged and
// joined; none of them stops the remaining sensors from being set up,
// and each sensor's own Read reports whether it is usable.
func (s *Suite) Init() error {
	steps := []struct {
		name string
		init func() error
	}{
		{aht20Name, s.Humidity.Init},
		{mpu6050Name, s.Inertial.Init},
		{veml7700Name, s.Light.Init},
		{hscdtdName, s.Mag.Init},
		{bmp280Name, s.Pressure.Init},
	}

	var errs []error
	for _, st := range steps {
		if err := st.init(); err != nil {
			log.Warnf("sensors: %s init failed: %v", st.name, err)
			errs = append(errs, err)
			continue
		}
		log.Infof("sensors: %s initialized", st.name)
	}
	return errors.Join(errs...)
}
