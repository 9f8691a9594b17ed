package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/env_station/internal/config"
	"github.com/relabs-tech/env_station/internal/display"
	"github.com/relabs-tech/env_station/internal/gps"
	"github.com/relabs-tech/env_station/internal/sensors"
	"github.com/relabs-tech/env_station/internal/telemetry"
)

const startupBlink = 500 * time.Millisecond

// RunStation opens the hardware described by cfg and runs the poll cycle
// until ctx is cancelled.
func RunStation(ctx context.Context, cfg *config.Config) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	suite := sensors.NewSuite(bus, sensors.Addresses{
		Humidity: cfg.AHT20Addr,
		Pressure: cfg.BMP280Addr,
		Inertial: cfg.MPU6050Addr,
		Light:    cfg.VEML7700Addr,
		Mag:      cfg.HSCDTDAddr,
	})
	if err := suite.Init(); err != nil {
		log.Warnf("station: some sensors failed to initialize, they will report invalid readings: %v", err)
	}

	screen := openScreen(bus, cfg)

	var src PositionSource
	gpsPort, err := openGPS(cfg)
	if err != nil {
		log.Warnf("station: gps unavailable: %v", err)
	} else {
		defer gpsPort.Close()
		src = gps.NewParser(gpsPort)
	}

	pub, closeSinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer closeSinks()
	logSinks(pub)

	st := NewStation(suite, src, screen, pub, cfg)
	st.LED = openLED(cfg.LEDPin)
	if st.LED != nil {
		st.led(gpio.High)
		time.Sleep(startupBlink)
		st.led(gpio.Low)
	}

	return st.Run(ctx)
}

func openBus(cfg *config.Config) (i2c.BusCloser, error) {
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", cfg.I2CBus, err)
	}
	if err := bus.SetSpeed(physic.Frequency(cfg.I2CFrequencyHz) * physic.Hertz); err != nil {
		log.Warnf("station: cannot set bus speed to %d Hz: %v", cfg.I2CFrequencyHz, err)
	}
	log.Infof("station: I2C bus %s open", bus)
	return bus, nil
}

// ssd1306DefaultAddr is the address the periph driver always talks to.
const ssd1306DefaultAddr = 0x3C

// remappedBus redirects transactions for one address to another, so a
// panel strapped to 0x3D can be driven by a driver fixed on 0x3C.
type remappedBus struct {
	i2c.Bus
	from, to uint16
}

func (b *remappedBus) Tx(addr uint16, w, r []byte) error {
	if addr == b.from {
		addr = b.to
	}
	return b.Bus.Tx(addr, w, r)
}

// openScreen returns nil when the panel does not answer; the station then
// runs headless.
func openScreen(bus i2c.Bus, cfg *config.Config) Screen {
	if cfg.DisplayI2CAddr != ssd1306DefaultAddr {
		bus = &remappedBus{Bus: bus, from: ssd1306DefaultAddr, to: cfg.DisplayI2CAddr}
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{W: cfg.DisplayWidth, H: cfg.DisplayHeight})
	if err != nil {
		log.Warnf("station: display at 0x%02X unavailable: %v", cfg.DisplayI2CAddr, err)
		return nil
	}
	r, err := display.NewRenderer(dev)
	if err != nil {
		log.Warnf("station: display renderer: %v", err)
		return nil
	}
	if err := r.Splash("env station"); err != nil {
		log.Warnf("station: display splash: %v", err)
	}
	log.Infof("station: display initialized at 0x%02X", cfg.DisplayI2CAddr)
	return r
}

// openGPS opens the receiver port so that reads return after 100 ms of
// silence, which lets the parser drain without blocking the cycle.
func openGPS(cfg *config.Config) (io.ReadWriteCloser, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("station: gps serial port opened on %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)
	return port, nil
}

// openSinks builds the publisher: console, radio link, and MQTT when a
// broker is configured.
func openSinks(cfg *config.Config) (*telemetry.Publisher, func(), error) {
	sinks := []telemetry.Sink{{Name: "console", W: os.Stdout}}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.RadioSerialPort != "" {
		radio, err := serial.Open(serial.OpenOptions{
			PortName:        cfg.RadioSerialPort,
			BaudRate:        uint(cfg.RadioBaudRate),
			DataBits:        8,
			StopBits:        1,
			ParityMode:      serial.PARITY_NONE,
			MinimumReadSize: 1,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open radio port %s: %w", cfg.RadioSerialPort, err)
		}
		closers = append(closers, func() { radio.Close() })
		sinks = append(sinks, telemetry.Sink{Name: "radio", W: radio})
		log.Infof("station: radio link on %s at %d baud", cfg.RadioSerialPort, cfg.RadioBaudRate)
	}

	if cfg.MQTTBroker != "" {
		client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDStation)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Disconnect(250) })
		sinks = append(sinks, telemetry.Sink{Name: "mqtt", W: telemetry.NewMQTTSink(client, cfg.TopicTelemetry)})
	}

	return telemetry.NewPublisher(sinks...), closeAll, nil
}

func logSinks(pub *telemetry.Publisher) {
	names := make([]string, 0, len(pub.Sinks()))
	for _, s := range pub.Sinks() {
		names = append(names, s.Name)
	}
	log.Infof("station: telemetry sinks: %s", strings.Join(names, ", "))
}

func openLED(name string) gpio.PinIO {
	if name == "" {
		return nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		log.Warnf("station: LED pin %q not found", name)
		return nil
	}
	return pin
}
