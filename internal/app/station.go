// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/env_station/internal/config"
	"github.com/relabs-tech/env_station/internal/display"
	"github.com/relabs-tech/env_station/internal/env"
	"github.com/relabs-tech/env_station/internal/gps"
	"github.com/relabs-tech/env_station/internal/imu"
	"github.com/relabs-tech/env_station/internal/sensors"
	"github.com/relabs-tech/env_station/internal/snapshot"
	"github.com/relabs-tech/env_station/internal/telemetry"
)

// ErrPrimarySensor marks a cycle abandoned because the humidity sensor
// could not be read.
var ErrPrimarySensor = errors.New("primary sensor unavailable")

type (
	HumiditySensor interface {
		Read(*env.HumidityReading) error
	}
	PressureSensor interface {
		Read(*env.PressureReading) error
	}
	InertialSensor interface {
		Read(*imu.InertialReading) error
	}
	LightSensor interface {
		Read(*env.LightReading) error
	}
	MagSensor interface {
		Read(*imu.MagReading) error
	}
	PositionSource interface {
		Poll(*gps.Position) error
	}
	Screen interface {
		Render([display.Rows]string) error
	}
	LED interface {
		Out(gpio.Level) error
	}
)

// Station runs the poll cycle: read every sensor, show four lines, send
// one telemetry line. GPS, Screen and LED may be nil.
type Station struct {
	Humidity HumiditySensor
	Pressure PressureSensor
	Inertial InertialSensor
	Light    LightSensor
	Mag      MagSensor

	GPS       PositionSource
	Selector  *display.Selector
	Screen    Screen
	Encoder   *telemetry.Encoder
	Publisher *telemetry.Publisher
	LED       LED

	Settle   time.Duration
	Interval time.Duration
	Cooldown time.Duration
	Sleep    func(time.Duration)

	snap snapshot.Snapshot
}

// NewStation wires a sensor suite and the output side together with the
// timing from cfg.
func NewStation(s *sensors.Suite, src PositionSource, screen Screen, pub *telemetry.Publisher, cfg *config.Config) *Station {
	return &Station{
		Humidity:  s.Humidity,
		Pressure:  s.Pressure,
		Inertial:  s.Inertial,
		Light:     s.Light,
		Mag:       s.Mag,
		GPS:       src,
		Selector:  display.NewSelector(nil),
		Screen:    screen,
		Encoder:   telemetry.NewEncoder(),
		Publisher: pub,
		Settle:    cfg.SettleDelay(),
		Interval:  cfg.CycleInterval(),
		Cooldown:  cfg.Cooldown(),
		Sleep:     time.Sleep,
		snap:      snapshot.New(),
	}
}

// Snapshot returns a copy of the most recent cycle's readings.
func (st *Station) Snapshot() snapshot.Snapshot {
	return st.snap
}

// Run repeats Cycle until ctx is cancelled. Cancellation is only noticed
// between cycles.
func (st *Station) Run(ctx context.Context) error {
	log.Infof("station: running, interval %v", st.Interval)
	for {
		if err := ctx.Err(); err != nil {
			log.Info("station: stopping")
			return nil
		}
		if err := st.Cycle(); err != nil && !errors.Is(err, ErrPrimarySensor) {
			log.Warnf("station: %v", err)
		}
	}
}

// Cycle performs one full poll. When the primary sensor fails it sleeps for
// the cooldown and returns ErrPrimarySensor without touching any other
// sensor, the screen or the sinks.
func (st *Station) Cycle() error {
	st.snap.Reset()

	if st.GPS != nil {
		if err := st.GPS.Poll(&st.snap.Position); err != nil {
			log.Warnf("station: gps: %v", err)
		}
	}

	if err := st.Humidity.Read(&st.snap.Humidity); err != nil {
		log.Errorf("station: aht20 read failed, cooling down %v: %v", st.Cooldown, err)
		st.sleep(st.Cooldown)
		return fmt.Errorf("%w: %w", ErrPrimarySensor, err)
	}

	st.led(gpio.High)

	if err := st.Pressure.Read(&st.snap.Pressure); err != nil {
		log.Warnf("station: bmp280: %v", err)
	}
	if err := st.Inertial.Read(&st.snap.Inertial); err != nil {
		log.Warnf("station: mpu6050: %v", err)
	}
	if err := st.Light.Read(&st.snap.Light); err != nil {
		log.Warnf("station: veml7700: %v", err)
	}
	if err := st.Mag.Read(&st.snap.Mag); err != nil {
		log.Warnf("station: hscdtd: %v", err)
	}

	if st.Screen != nil {
		if err := st.Screen.Render(st.Selector.Select(&st.snap)); err != nil {
			log.Warnf("station: display: %v", err)
		}
	}

	var sendErr error
	line, err := st.Encoder.Encode(&st.snap)
	if err != nil {
		sendErr = err
	} else {
		log.Debugf("station: %s", line[:len(line)-1])
		sendErr = st.Publisher.Publish(line)
	}

	st.sleep(st.Settle)
	st.led(gpio.Low)
	st.sleep(st.Interval)
	return sendErr
}

func (st *Station) led(l gpio.Level) {
	if st.LED == nil {
		return
	}
	if err := st.LED.Out(l); err != nil {
		log.Debugf("station: led: %v", err)
	}
}

func (st *Station) sleep(d time.Duration) {
	if st.Sleep != nil {
		st.Sleep(d)
	}
}
