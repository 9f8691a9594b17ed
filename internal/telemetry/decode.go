package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("telemetry: malformed line")

// Frame is one decoded telemetry line as seen by a receiving station.
// Float fields are NaN where the sender had no valid reading.
type Frame struct {
	AHTTemperature float64 `json:"ahtT"`
	AHTHumidity    float64 `json:"ahtH"`
	AHTStatus      uint8   `json:"ahtStatus"`

	BMPTemperature float64 `json:"bmpT"`
	BMPPressure    float64 `json:"bmpP"`
	Altitude       float64 `json:"alt"`

	MPUOk          bool    `json:"mpuOk"`
	Ax             int16   `json:"ax"`
	Ay             int16   `json:"ay"`
	Az             int16   `json:"az"`
	Gx             int16   `json:"gx"`
	Gy             int16   `json:"gy"`
	Gz             int16   `json:"gz"`
	MPUTemperature float64 `json:"mpuT"`

	LuxOk bool    `json:"luxOk"`
	Lux   float64 `json:"lux"`

	MagOk   bool    `json:"magOk"`
	MagX    int16   `json:"magX"`
	MagY    int16   `json:"magY"`
	MagZ    int16   `json:"magZ"`
	Heading float64 `json:"head"`

	GPSFix    bool    `json:"gpsfix"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

type fieldSetter func(f *Frame, v string) error

func floatField(dst func(*Frame) *float64) fieldSetter {
	return func(f *Frame, v string) error {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(f) = x
		return nil
	}
}

func intField(dst func(*Frame) *int16) fieldSetter {
	return func(f *Frame, v string) error {
		x, err := strconv.ParseInt(v, 10, 16)
		if err != nil {
			return err
		}
		*dst(f) = int16(x)
		return nil
	}
}

func boolField(dst func(*Frame) *bool) fieldSetter {
	return func(f *Frame, v string) error {
		switch v {
		case "0":
			*dst(f) = false
		case "1":
			*dst(f) = true
		default:
			return fmt.Errorf("not a flag: %q", v)
		}
		return nil
	}
}

var setters = map[string]fieldSetter{
	"ahtT": floatField(func(f *Frame) *float64 { return &f.AHTTemperature }),
	"ahtH": floatField(func(f *Frame) *float64 { return &f.AHTHumidity }),
	"ahtStatus": func(f *Frame, v string) error {
		x, err := strconv.ParseUint(v, 0, 8)
		if err != nil {
			return err
		}
		f.AHTStatus = uint8(x)
		return nil
	},
	"bmpT":   floatField(func(f *Frame) *float64 { return &f.BMPTemperature }),
	"bmpP":   floatField(func(f *Frame) *float64 { return &f.BMPPressure }),
	"alt":    floatField(func(f *Frame) *float64 { return &f.Altitude }),
	"mpuOk":  boolField(func(f *Frame) *bool { return &f.MPUOk }),
	"ax":     intField(func(f *Frame) *int16 { return &f.Ax }),
	"ay":     intField(func(f *Frame) *int16 { return &f.Ay }),
	"az":     intField(func(f *Frame) *int16 { return &f.Az }),
	"gx":     intField(func(f *Frame) *int16 { return &f.Gx }),
	"gy":     intField(func(f *Frame) *int16 { return &f.Gy }),
	"gz":     intField(func(f *Frame) *int16 { return &f.Gz }),
	"mpuT":   floatField(func(f *Frame) *float64 { return &f.MPUTemperature }),
	"luxOk":  boolField(func(f *Frame) *bool { return &f.LuxOk }),
	"lux":    floatField(func(f *Frame) *float64 { return &f.Lux }),
	"magOk":  boolField(func(f *Frame) *bool { return &f.MagOk }),
	"magX":   intField(func(f *Frame) *int16 { return &f.MagX }),
	"magY":   intField(func(f *Frame) *int16 { return &f.MagY }),
	"magZ":   intField(func(f *Frame) *int16 { return &f.MagZ }),
	"head":   floatField(func(f *Frame) *float64 { return &f.Heading }),
	"gpsfix": boolField(func(f *Frame) *bool { return &f.GPSFix }),
	"lat":    floatField(func(f *Frame) *float64 { return &f.Latitude }),
	"lon":    floatField(func(f *Frame) *float64 { return &f.Longitude }),
}

// optional keys may be missing from a well-formed line.
var optional = map[string]bool{"lat": true, "lon": true}

// Decode parses one line produced by Encoder. Unknown keys are skipped so
// newer senders stay readable.
func Decode(line string) (Frame, error) {
	f := Frame{Latitude: math.NaN(), Longitude: math.NaN()}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return f, fmt.Errorf("%w: empty", ErrMalformed)
	}

	seen := make(map[string]bool, len(setters))
	for _, pair := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return f, fmt.Errorf("%w: field %q has no value", ErrMalformed, pair)
		}
		set, known := setters[key]
		if !known {
			continue
		}
		if err := set(&f, value); err != nil {
			return f, fmt.Errorf("%w: %s: %w", ErrMalformed, key, err)
		}
		seen[key] = true
	}

	for key := range setters {
		if !seen[key] && !optional[key] {
			return f, fmt.Errorf("%w: missing %s", ErrMalformed, key)
		}
	}
	return f, nil
}

// MarshalJSON writes NaN readings as null.
func (f Frame) MarshalJSON() ([]byte, error) {
	type alias Frame
	return json.Marshal(struct {
		alias
		BMPTemperature *float64 `json:"bmpT"`
		BMPPressure    *float64 `json:"bmpP"`
		Altitude       *float64 `json:"alt"`
		MPUTemperature *float64 `json:"mpuT"`
		Lux            *float64 `json:"lux"`
		Heading        *float64 `json:"head"`
		Latitude       *float64 `json:"lat"`
		Longitude      *float64 `json:"lon"`
	}{
		alias:          alias(f),
		BMPTemperature: finite(f.BMPTemperature),
		BMPPressure:    finite(f.BMPPressure),
		Altitude:       finite(f.Altitude),
		MPUTemperature: finite(f.MPUTemperature),
		Lux:            finite(f.Lux),
		Heading:        finite(f.Heading),
		Latitude:       finite(f.Latitude),
		Longitude:      finite(f.Longitude),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
