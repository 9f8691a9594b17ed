// Package config loads the station's KEY=VALUE configuration file.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to a key to override it from the environment,
// e.g. STATION_COOLDOWN_MS=5000.
const EnvPrefix = "STATION"

// Config holds all application configuration values.
type Config struct {
	// I2C bus and sensor addresses
	I2CBus         string `yaml:"i2c_bus"` // "" picks the first bus
	I2CFrequencyHz int64  `yaml:"i2c_frequency_hz"`
	AHT20Addr      uint16 `yaml:"aht20_addr"`
	BMP280Addr     uint16 `yaml:"bmp280_addr"`
	MPU6050Addr    uint16 `yaml:"mpu6050_addr"`
	VEML7700Addr   uint16 `yaml:"veml7700_addr"`
	HSCDTDAddr     uint16 `yaml:"hscdtd_addr"`

	// Display
	DisplayI2CAddr uint16 `yaml:"display_i2c_addr"`
	DisplayWidth   int    `yaml:"display_width"`
	DisplayHeight  int    `yaml:"display_height"`

	// Activity LED, a periph GPIO name such as "GPIO25". Empty disables it.
	LEDPin string `yaml:"led_pin"`

	// Serial links
	GPSSerialPort   string `yaml:"gps_serial_port"`
	GPSBaudRate     int    `yaml:"gps_baud_rate"`
	RadioSerialPort string `yaml:"radio_serial_port"`
	RadioBaudRate   int    `yaml:"radio_baud_rate"`

	// Timing, milliseconds
	CycleIntervalMs int `yaml:"cycle_interval_ms"`
	SettleDelayMs   int `yaml:"settle_delay_ms"`
	CooldownMs      int `yaml:"cooldown_ms"`

	// MQTT. An empty broker disables the station's MQTT sink.
	MQTTBroker          string `yaml:"mqtt_broker"`
	MQTTClientIDStation string `yaml:"mqtt_client_id_station"`
	MQTTClientIDConsole string `yaml:"mqtt_client_id_console"`
	MQTTClientIDWeb     string `yaml:"mqtt_client_id_web"`
	MQTTClientIDGPS     string `yaml:"mqtt_client_id_gps"`
	TopicTelemetry      string `yaml:"topic_telemetry"`
	TopicGPS            string `yaml:"topic_gps"`

	WebServerPort int    `yaml:"web_server_port"`
	LogLevel      string `yaml:"log_level"`
}

// Keys lists every accepted configuration key.
var Keys = []string{
	"I2C_BUS", "I2C_FREQUENCY_HZ",
	"AHT20_ADDR", "BMP280_ADDR", "MPU6050_ADDR", "VEML7700_ADDR", "HSCDTD_ADDR",
	"DISPLAY_I2C_ADDR", "DISPLAY_WIDTH", "DISPLAY_HEIGHT",
	"LED_PIN",
	"GPS_SERIAL_PORT", "GPS_BAUD_RATE", "RADIO_SERIAL_PORT", "RADIO_BAUD_RATE",
	"CYCLE_INTERVAL_MS", "SETTLE_DELAY_MS", "COOLDOWN_MS",
	"MQTT_BROKER", "MQTT_CLIENT_ID_STATION", "MQTT_CLIENT_ID_CONSOLE",
	"MQTT_CLIENT_ID_WEB", "MQTT_CLIENT_ID_GPS",
	"TOPIC_TELEMETRY", "TOPIC_GPS",
	"WEB_SERVER_PORT", "LOG_LEVEL",
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration the station runs with when no file
// overrides anything.
func Default() *Config {
	return &Config{
		I2CFrequencyHz: 100_000,
		AHT20Addr:      0x38,
		BMP280Addr:     0x77,
		MPU6050Addr:    0x68,
		VEML7700Addr:   0x10,
		HSCDTDAddr:     0x0C,

		DisplayI2CAddr: 0x3C,
		DisplayWidth:   128,
		DisplayHeight:  32,

		GPSSerialPort:   "/dev/serial0",
		GPSBaudRate:     9600,
		RadioSerialPort: "/dev/ttyUSB0",
		RadioBaudRate:   115200,

		CycleIntervalMs: 20000,
		SettleDelayMs:   50,
		CooldownMs:      20000,

		MQTTClientIDStation: "env-station",
		MQTTClientIDConsole: "env-console",
		MQTTClientIDWeb:     "env-web",
		MQTTClientIDGPS:     "env-gps-monitor",
		TopicTelemetry:      "station/telemetry",
		TopicGPS:            "station/gps",

		WebServerPort: 8080,
		LogLevel:      "info",
	}
}

// Load reads configPath on top of the defaults, then applies STATION_*
// environment overrides. An empty path skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("dotenv")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	known := make(map[string]bool, len(Keys))
	for _, k := range Keys {
		known[strings.ToLower(k)] = true
	}
	for _, k := range v.AllKeys() {
		if !known[k] {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(k))
		}
	}

	cfg := Default()
	for _, key := range Keys {
		lower := strings.ToLower(key)
		if !v.IsSet(lower) {
			continue
		}
		if err := cfg.setValue(key, strings.TrimSpace(v.GetString(lower))); err != nil {
			return nil, fmt.Errorf("config %s: %w", key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// I2C
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_FREQUENCY_HZ":
		c.I2CFrequencyHz, err = strconv.ParseInt(value, 10, 64)
	case "AHT20_ADDR":
		c.AHT20Addr, err = parseAddr(value)
	case "BMP280_ADDR":
		c.BMP280Addr, err = parseAddr(value)
		if err == nil && c.BMP280Addr != 0x76 && c.BMP280Addr != 0x77 {
			err = fmt.Errorf("BMP280_ADDR must be 0x76 or 0x77, got 0x%02X", c.BMP280Addr)
		}
	case "MPU6050_ADDR":
		c.MPU6050Addr, err = parseAddr(value)
	case "VEML7700_ADDR":
		c.VEML7700Addr, err = parseAddr(value)
	case "HSCDTD_ADDR":
		c.HSCDTDAddr, err = parseAddr(value)

	// Display
	case "DISPLAY_I2C_ADDR":
		c.DisplayI2CAddr, err = parseAddr(value)
	case "DISPLAY_WIDTH":
		c.DisplayWidth, err = strconv.Atoi(value)
	case "DISPLAY_HEIGHT":
		c.DisplayHeight, err = strconv.Atoi(value)

	case "LED_PIN":
		c.LEDPin = value

	// Serial
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = strconv.Atoi(value)
	case "RADIO_SERIAL_PORT":
		c.RadioSerialPort = value
	case "RADIO_BAUD_RATE":
		c.RadioBaudRate, err = strconv.Atoi(value)

	// Timing
	case "CYCLE_INTERVAL_MS":
		c.CycleIntervalMs, err = strconv.Atoi(value)
	case "SETTLE_DELAY_MS":
		c.SettleDelayMs, err = strconv.Atoi(value)
	case "COOLDOWN_MS":
		c.CooldownMs, err = strconv.Atoi(value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_STATION":
		c.MQTTClientIDStation = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "TOPIC_TELEMETRY":
		c.TopicTelemetry = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	case "WEB_SERVER_PORT":
		c.WebServerPort, err = strconv.Atoi(value)
	case "LOG_LEVEL":
		if _, err = log.ParseLevel(value); err == nil {
			c.LogLevel = strings.ToLower(value)
		}

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return nil
}

// parseAddr accepts decimal or 0x-prefixed 7-bit I2C addresses.
func parseAddr(value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, err
	}
	if addr < 0x03 || addr > 0x77 {
		return 0, fmt.Errorf("address 0x%02X outside 0x03-0x77", addr)
	}
	return uint16(addr), nil
}

// validate checks the cross-field constraints.
func (c *Config) validate() error {
	if c.I2CFrequencyHz <= 0 {
		return fmt.Errorf("I2C_FREQUENCY_HZ must be positive")
	}
	if c.DisplayWidth <= 0 {
		return fmt.Errorf("DISPLAY_WIDTH must be positive")
	}
	if c.DisplayHeight < 32 || c.DisplayHeight%8 != 0 {
		return fmt.Errorf("DISPLAY_HEIGHT must be a multiple of 8 and at least 32, got %d", c.DisplayHeight)
	}
	if c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required")
	}
	if c.GPSBaudRate <= 0 || c.RadioBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE and RADIO_BAUD_RATE must be positive")
	}
	if c.CycleIntervalMs <= 0 {
		return fmt.Errorf("CYCLE_INTERVAL_MS must be positive")
	}
	if c.SettleDelayMs < 0 || c.CooldownMs < 0 {
		return fmt.Errorf("SETTLE_DELAY_MS and COOLDOWN_MS must not be negative")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	if c.MQTTBroker != "" && c.TopicTelemetry == "" {
		return fmt.Errorf("TOPIC_TELEMETRY is required when MQTT_BROKER is set")
	}
	return nil
}

func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalMs) * time.Millisecond
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// InitGlobal loads configPath into the process-wide config. Only the first
// call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
