// Package telemetry turns a snapshot into the station's key=value line and
// delivers it to the downstream links.
package telemetry

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/env_station/internal/snapshot"
)

// MaxLineLen is the line buffer size. It also holds the terminating NUL the
// radio firmware expects, so a line, newline included, must stay below it.
const MaxLineLen = 320

var ErrLineTooLong = errors.New("telemetry: line exceeds buffer")

// Encoder formats snapshots into a reusable fixed-capacity buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, MaxLineLen)}
}

// Encode returns the newline-terminated line for s. The slice is reused by
// the next call. A line of MaxLineLen bytes or more is not returned at all.
func (e *Encoder) Encode(s *snapshot.Snapshot) ([]byte, error) {
	b := e.buf[:0]

	h := s.Humidity
	b = fmt.Appendf(b, "ahtT=%.2f,ahtH=%.2f,ahtStatus=0x%02X", h.Temperature, h.Humidity, h.Status)

	p := s.Pressure
	b = fmt.Appendf(b, ",bmpT=%.2f,bmpP=%.2f,alt=%.2f",
		orNaN(p.Valid, p.Temperature), orNaN(p.Valid, p.Pressure), orNaN(p.Valid, p.Altitude))

	m := s.Inertial
	b = fmt.Appendf(b, ",mpuOk=%d,ax=%d,ay=%d,az=%d,gx=%d,gy=%d,gz=%d,mpuT=%.2f",
		flag(m.Valid), m.Ax, m.Ay, m.Az, m.Gx, m.Gy, m.Gz, orNaN(m.Valid, m.Temperature))

	l := s.Light
	b = fmt.Appendf(b, ",luxOk=%d,lux=%.2f", flag(l.Valid), orNaN(l.Valid, l.Lux))

	g := s.Mag
	b = fmt.Appendf(b, ",magOk=%d,magX=%d,magY=%d,magZ=%d,head=%.1f",
		flag(g.Valid), g.X, g.Y, g.Z, orNaN(g.Valid, g.Heading))

	pos := s.Position
	b = fmt.Appendf(b, ",gpsfix=%d", flag(pos.Fix))
	if pos.Fix {
		b = fmt.Appendf(b, ",lat=%.6f,lon=%.6f", pos.Latitude, pos.Longitude)
	}
	b = append(b, '\n')

	if len(b) >= MaxLineLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrLineTooLong, len(b))
	}
	e.buf = b
	return b, nil
}

func orNaN(valid bool, v float64) float64 {
	if !valid {
		return math.NaN()
	}
	return v
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}
