package gps

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"
)

// lineCapacity is the assembly buffer size; one byte is kept back so a full
// buffer always holds at most lineCapacity-1 characters.
const lineCapacity = 128

var (
	prefixesGGA = []string{"$GP" + nmea.TypeGGA, "$GN" + nmea.TypeGGA}
	prefixesRMC = []string{"$GP" + nmea.TypeRMC, "$GN" + nmea.TypeRMC}
)

// Stats counts what the parser has seen since it was created.
type Stats struct {
	Lines        uint64 `json:"lines"`
	Recognized   uint64 `json:"recognized"`
	Unrecognized uint64 `json:"unrecognized"`
	Rejected     uint64 `json:"rejected"` // checksum mismatch or malformed fields
	Overflows    uint64 `json:"overflows"`
}

// Parser assembles receiver output into lines and applies GGA and RMC
// sentences to a Position.
type Parser struct {
	r io.Reader

	line [lineCapacity]byte
	n    int

	chunk [64]byte

	stats Stats
}

func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

func (p *Parser) Stats() Stats {
	return p.stats
}

// Poll drains whatever input is currently available and applies every
// complete line to pos. It returns once a read yields no bytes. io.EOF is
// treated as "nothing more right now"; other read errors are returned after
// the bytes read so far have been consumed.
func (p *Parser) Poll(pos *Position) error {
	for {
		n, err := p.r.Read(p.chunk[:])
		if n > 0 {
			p.Feed(p.chunk[:n], pos)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("gps: read: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// Feed pushes raw receiver bytes through the line assembler.
func (p *Parser) Feed(b []byte, pos *Position) {
	for _, c := range b {
		switch c {
		case '\r':
		case '\n':
			if p.n > 0 {
				p.HandleLine(string(p.line[:p.n]), pos)
			}
			p.n = 0
		default:
			if p.n < lineCapacity-1 {
				p.line[p.n] = c
				p.n++
				continue
			}
			p.stats.Overflows++
			log.Debugf("gps: line exceeded %d bytes, discarded", lineCapacity-1)
			p.n = 0
		}
	}
}

// HandleLine classifies one complete line (without terminator) and applies
// it to pos. Unknown sentences are ignored.
func (p *Parser) HandleLine(line string, pos *Position) {
	p.stats.Lines++

	var handle func([]string, *Position) error
	switch {
	case hasAnyPrefix(line, prefixesGGA):
		handle = applyGGA
	case hasAnyPrefix(line, prefixesRMC):
		handle = applyRMC
	default:
		p.stats.Unrecognized++
		return
	}

	fields, err := splitSentence(line)
	if err == nil {
		err = handle(fields, pos)
	}
	if err != nil {
		p.stats.Rejected++
		log.Debugf("gps: rejected %q: %v", line, err)
		return
	}
	p.stats.Recognized++
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, pre := range prefixes {
		if strings.HasPrefix(s, pre) {
			return true
		}
	}
	return false
}

// splitSentence verifies the optional *hh checksum and returns the
// comma-separated fields, empty ones included. fields[0] is the talker and
// sentence type.
func splitSentence(line string) ([]string, error) {
	body := strings.TrimPrefix(line, "$")
	if i := strings.IndexByte(body, '*'); i >= 0 {
		sum := body[i+1:]
		body = body[:i]
		if want := nmea.Checksum(body); !strings.EqualFold(sum, want) {
			return nil, fmt.Errorf("checksum %q, want %q", sum, want)
		}
	}
	return strings.Split(body, ","), nil
}

// coordinate converts a DDMM.MMMM value and its hemisphere letter to signed
// decimal degrees.
func coordinate(value, hemisphere string) (float64, error) {
	return nmea.ParseGPS(value + " " + hemisphere)
}

// applyGGA handles the fix sentence. Losing the fix only clears the flag;
// the last known coordinates stay in place.
func applyGGA(f []string, pos *Position) error {
	if len(f) < 7 {
		return fmt.Errorf("GGA has %d fields", len(f))
	}
	quality, err := strconv.Atoi(f[6])
	if err != nil {
		quality = 0
	}
	if quality <= 0 {
		pos.Fix = false
		return nil
	}

	lat, err := coordinate(f[2], f[3])
	if err != nil {
		return fmt.Errorf("GGA latitude: %w", err)
	}
	lon, err := coordinate(f[4], f[5])
	if err != nil {
		return fmt.Errorf("GGA longitude: %w", err)
	}
	pos.Latitude, pos.Longitude = lat, lon
	pos.Fix = true
	return nil
}

// applyRMC handles the recommended-minimum sentence: validity, coordinates
// and UTC date/time.
func applyRMC(f []string, pos *Position) error {
	if len(f) < 10 {
		return fmt.Errorf("RMC has %d fields", len(f))
	}
	if f[2] != nmea.ValidRMC {
		pos.Fix = false
		pos.DateTimeValid = false
		pos.DateTime = ""
		return nil
	}

	t, terr := nmea.ParseTime(f[1])
	d, derr := nmea.ParseDate(f[9])
	if terr == nil && derr == nil && t.Valid && d.Valid {
		pos.DateTime = fmt.Sprintf("%04d%02d%02d %02d%02d%02d",
			2000+d.YY, d.MM, d.DD, t.Hour, t.Minute, t.Second)
		pos.DateTimeValid = true
	} else {
		pos.DateTimeValid = false
		pos.DateTime = ""
	}

	// The date/time above stands even when the coordinates are rejected.
	if nonZero(f[3]) && nonZero(f[5]) {
		lat, err := coordinate(f[3], f[4])
		if err != nil {
			return fmt.Errorf("RMC latitude: %w", err)
		}
		lon, err := coordinate(f[5], f[6])
		if err != nil {
			return fmt.Errorf("RMC longitude: %w", err)
		}
		pos.Latitude, pos.Longitude = lat, lon
		pos.Fix = true
	}
	return nil
}

func nonZero(s string) bool {
	v, err := strconv.ParseFloat(s, 64)
	return err == nil && v != 0
}
