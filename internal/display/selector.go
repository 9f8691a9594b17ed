// Package display picks and renders the four text lines shown on the
// station's OLED.
package display

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/relabs-tech/env_station/internal/snapshot"
)

const (
	Rows = 4

	// MaxLineLen is the widest line the panel shows without clipping.
	MaxLineLen = 23

	Placeholder = "DATA ---"
)

// Selector chooses the lines for each frame. Line 1 is always the primary
// temperature, line 2 the GPS position while a fix is held, and the rest
// are drawn at random from whatever else is valid.
type Selector struct {
	src rand.Source
	rng *rand.Rand
}

// NewSelector uses src for the shuffle. A nil src is replaced, on the first
// Select, by one seeded from the clock.
func NewSelector(src rand.Source) *Selector {
	return &Selector{src: src}
}

func (s *Selector) random() *rand.Rand {
	if s.rng == nil {
		if s.src == nil {
			s.src = rand.NewSource(time.Now().UnixNano())
		}
		s.rng = rand.New(s.src)
	}
	return s.rng
}

// Select returns the four lines for snap.
func (s *Selector) Select(snap *snapshot.Snapshot) [Rows]string {
	var lines [Rows]string
	lines[0] = clip(fmt.Sprintf("AHT T:%5.1fC", snap.Humidity.Temperature))

	next := 1
	if snap.Position.Fix {
		lines[1] = clip(fmt.Sprintf("GPS %.4f %.4f", snap.Position.Latitude, snap.Position.Longitude))
		next = 2
	}

	pool := Candidates(snap)
	order := s.shuffle(len(pool))
	for _, idx := range order {
		if next == Rows {
			break
		}
		lines[next] = pool[idx]
		next++
	}
	for ; next < Rows; next++ {
		lines[next] = Placeholder
	}
	return lines
}

// shuffle returns a Fisher-Yates permutation of 0..n-1.
func (s *Selector) shuffle(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := s.random()
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Candidates lists one formatted entry per valid metric, excluding the
// primary temperature and GPS, in a fixed order.
func Candidates(snap *snapshot.Snapshot) []string {
	var out []string
	add := func(format string, args ...any) {
		out = append(out, clip(fmt.Sprintf(format, args...)))
	}

	if h := snap.Humidity; h.Valid {
		add("AHT H:%5.1f%%", h.Humidity)
		add("AHT St:0x%02X", h.Status)
	}
	if p := snap.Pressure; p.Valid {
		add("BMP T:%5.1fC", p.Temperature)
		add("BMP P:%7.1fhPa", p.Pressure/100.0)
		add("BMP Alt:%6.1fm", p.Altitude)
	}
	if l := snap.Light; l.Valid {
		add("VEML Lux:%6.1f", l.Lux)
	}
	if m := snap.Inertial; m.Valid {
		add("MPU T:%5.1fC", m.Temperature)
		add("MPU Ax:%6d", m.Ax)
		add("MPU Ay:%6d", m.Ay)
		add("MPU Az:%6d", m.Az)
		add("MPU Gx:%6d", m.Gx)
		add("MPU Gy:%6d", m.Gy)
		add("MPU Gz:%6d", m.Gz)
	}
	if m := snap.Mag; m.Valid {
		add("HSCD Head:%5.1f", m.Heading)
		add("HSCD X:%6d", m.X)
		add("HSCD Y:%6d", m.Y)
		add("HSCD Z:%6d", m.Z)
	}
	return out
}

func clip(s string) string {
	if len(s) > MaxLineLen {
		return s[:MaxLineLen]
	}
	return s
}
