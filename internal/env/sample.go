package env

// HumidityReading is one AHT20 measurement. Fields other than Valid are only
// meaningful when Valid is true.
type HumidityReading struct {
	Valid bool `json:"valid"`

	Temperature float64 `json:"temp_c"`       // °C
	Humidity    float64 `json:"humidity_pct"` // %RH
	Status      byte    `json:"status"`       // raw status byte
}

// PressureReading is one BMP280 measurement.
type PressureReading struct {
	Valid bool `json:"valid"`

	Temperature float64 `json:"temp_c"`      // °C
	Pressure    float64 `json:"pressure_pa"` // Pa
	Altitude    float64 `json:"altitude_m"`  // m, derived from standard atmosphere
}

// LightReading is one VEML7700 measurement.
type LightReading struct {
	Valid bool `json:"valid"`

	Lux float64 `json:"lux"`
}
