package gps

import (
	"encoding/json"
	"math"
)

// Position is the persistent positioning state. It survives snapshot resets
// and is only changed by incoming sentences.
type Position struct {
	Fix       bool    `json:"fix"`
	Latitude  float64 `json:"lat"` // decimal degrees, NaN until first known
	Longitude float64 `json:"lon"` // decimal degrees, NaN until first known

	DateTimeValid bool   `json:"datetime_valid"`
	DateTime      string `json:"datetime"` // "YYYYMMDD HHMMSS" UTC
}

// UnknownPosition returns a Position with no fix and NaN coordinates.
func UnknownPosition() Position {
	return Position{Latitude: math.NaN(), Longitude: math.NaN()}
}

// MarshalJSON writes unknown coordinates as null.
func (p Position) MarshalJSON() ([]byte, error) {
	type wire struct {
		Fix           bool     `json:"fix"`
		Latitude      *float64 `json:"lat"`
		Longitude     *float64 `json:"lon"`
		DateTimeValid bool     `json:"datetime_valid"`
		DateTime      string   `json:"datetime"`
	}
	return json.Marshal(wire{
		Fix:           p.Fix,
		Latitude:      finite(p.Latitude),
		Longitude:     finite(p.Longitude),
		DateTimeValid: p.DateTimeValid,
		DateTime:      p.DateTime,
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Equal reports whether two positions carry the same state. Two unknown
// coordinates compare equal.
func (p Position) Equal(o Position) bool {
	return p.Fix == o.Fix &&
		sameCoord(p.Latitude, o.Latitude) &&
		sameCoord(p.Longitude, o.Longitude) &&
		p.DateTimeValid == o.DateTimeValid &&
		p.DateTime == o.DateTime
}

func sameCoord(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
