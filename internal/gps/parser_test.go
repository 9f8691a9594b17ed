package gps

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

const (
	ggaFix     = "$GNGGA,123519,4836.5375,N,12220.1000,W,1,08,0.9,545.4,M,46.9,M,,*46"
	ggaFixGP   = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix   = "$GPGGA,123520,,,,,0,00,99.99,,,,,,*4F"
	rmcActive  = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	rmcSouth   = "$GNRMC,081836.00,A,3751.65,S,14507.36,E,000.0,360.0,130998,011.3,E*52"
	rmcVoid    = "$GPRMC,123521,V,,,,,,,230394,,,N*5A"
	rmcVoidBar = "$GNRMC,,V,,,,,,,,,,N*4D"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestGGA_FixConvertsCoordinates(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()

	p.HandleLine(ggaFix, &pos)
	if !pos.Fix {
		t.Fatalf("expected fix")
	}
	if !near(pos.Latitude, 48.608958333) || !near(pos.Longitude, -122.335) {
		t.Fatalf("got %v,%v", pos.Latitude, pos.Longitude)
	}
	if pos.DateTimeValid {
		t.Fatalf("GGA must not set datetime")
	}

	p.HandleLine(ggaFixGP, &pos)
	if !near(pos.Latitude, 48.1173) || !near(pos.Longitude, 11.516666667) {
		t.Fatalf("got %v,%v", pos.Latitude, pos.Longitude)
	}
	if s := p.Stats(); s.Recognized != 2 || s.Rejected != 0 {
		t.Fatalf("stats %+v", s)
	}
}

func TestGGA_LosingFixKeepsCoordinates(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()

	p.HandleLine(ggaFix, &pos)
	p.HandleLine(ggaNoFix, &pos)

	if pos.Fix {
		t.Fatalf("fix should be cleared")
	}
	if !near(pos.Latitude, 48.608958333) || !near(pos.Longitude, -122.335) {
		t.Fatalf("coordinates changed to %v,%v", pos.Latitude, pos.Longitude)
	}
}

func TestRMC_ActiveSetsFixAndDateTime(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		lat, lon float64
		dt       string
	}{
		{"north east", rmcActive, 48.1173, 11.516666667, "20940323 123519"},
		{"south with fractional time", rmcSouth, -37.860833333, 145.122666667, "20980913 081836"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(nil)
			pos := UnknownPosition()
			p.HandleLine(tt.line, &pos)

			if !pos.Fix || !near(pos.Latitude, tt.lat) || !near(pos.Longitude, tt.lon) {
				t.Fatalf("got %+v", pos)
			}
			if !pos.DateTimeValid || pos.DateTime != tt.dt {
				t.Fatalf("datetime=%q valid=%v want %q", pos.DateTime, pos.DateTimeValid, tt.dt)
			}
		})
	}
}

func TestRMC_VoidClearsFixAndDateTime(t *testing.T) {
	for _, void := range []string{rmcVoid, rmcVoidBar} {
		p := NewParser(nil)
		pos := UnknownPosition()
		p.HandleLine(rmcActive, &pos)

		p.HandleLine(void, &pos)
		if pos.Fix || pos.DateTimeValid || pos.DateTime != "" {
			t.Fatalf("%s: expected cleared state, got %+v", void, pos)
		}
		if !near(pos.Latitude, 48.1173) {
			t.Fatalf("%s: coordinates must be kept, got %v", void, pos.Latitude)
		}
	}
}

func TestRMC_ZeroCoordinatesLeaveFixAlone(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()
	p.HandleLine("$GPRMC,123519,A,0000.000,N,00000.000,E,,,230394,,", &pos)
	if pos.Fix {
		t.Fatalf("zero coordinates must not produce a fix")
	}
	if !math.IsNaN(pos.Latitude) {
		t.Fatalf("coordinates must stay unknown")
	}
	if !pos.DateTimeValid {
		t.Fatalf("datetime should still be taken")
	}
}

func TestRMC_MissingDateInvalidatesDateTime(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()
	p.HandleLine(rmcActive, &pos)

	p.HandleLine("$GPRMC,235959,A,4807.038,N,01131.000,E,022.4,084.4,,003.1,W", &pos)
	if pos.DateTimeValid || pos.DateTime != "" {
		t.Fatalf("stale datetime kept: valid=%v dt=%q", pos.DateTimeValid, pos.DateTime)
	}
	if !pos.Fix {
		t.Fatalf("fix should still come from the coordinates")
	}
}

func TestRMC_BadHemisphereStillTakesDateTime(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()
	p.HandleLine("$GPRMC,123519,A,4807.038,X,01131.000,E,022.4,084.4,230394,003.1,W", &pos)

	if pos.Fix || !math.IsNaN(pos.Latitude) {
		t.Fatalf("coordinates must be rejected, got %+v", pos)
	}
	if !pos.DateTimeValid || pos.DateTime != "20940323 123519" {
		t.Fatalf("datetime=%q valid=%v", pos.DateTime, pos.DateTimeValid)
	}
	if s := p.Stats(); s.Rejected != 1 {
		t.Fatalf("stats %+v", s)
	}
}

func TestHandleLine_ChecksumMismatchRejected(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()
	p.HandleLine(strings.Replace(ggaFix, "*46", "*47", 1), &pos)

	if pos.Fix {
		t.Fatalf("corrupted sentence must be ignored")
	}
	if s := p.Stats(); s.Rejected != 1 || s.Recognized != 0 {
		t.Fatalf("stats %+v", s)
	}
}

func TestHandleLine_NoChecksumAccepted(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()
	p.HandleLine(strings.TrimSuffix(ggaFix, "*46"), &pos)
	if !pos.Fix {
		t.Fatalf("expected fix")
	}
}

func TestHandleLine_UnrecognizedIgnored(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()
	for _, l := range []string{"$GPGSV,3,1,11,03,03,111,00*74", "garbage", "$GPGG"} {
		p.HandleLine(l, &pos)
	}
	if s := p.Stats(); s.Unrecognized != 3 || s.Lines != 3 {
		t.Fatalf("stats %+v", s)
	}
	if pos.Fix || !math.IsNaN(pos.Latitude) {
		t.Fatalf("state changed: %+v", pos)
	}
}

func TestFeed_AssemblesAcrossChunksAndStripsCR(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()

	stream := []byte(ggaNoFix + "\r\n" + rmcActive + "\r\n")
	for _, part := range [][]byte{stream[:10], stream[10:50], stream[50:]} {
		p.Feed(part, &pos)
	}
	if !pos.Fix || !pos.DateTimeValid {
		t.Fatalf("got %+v", pos)
	}
	if s := p.Stats(); s.Recognized != 2 {
		t.Fatalf("stats %+v", s)
	}
}

func TestFeed_LastWriterWins(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()
	p.Feed([]byte(rmcActive+"\n"+ggaFix+"\n"), &pos)
	if !near(pos.Latitude, 48.608958333) {
		t.Fatalf("later GGA should win, got %v", pos.Latitude)
	}
}

func TestFeed_OverflowDiscardsPartialLine(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()

	long := "$GPGGA," + strings.Repeat("9", 200)
	p.Feed([]byte(long+"\n"+ggaFix+"\n"), &pos)

	if s := p.Stats(); s.Overflows != 1 {
		t.Fatalf("overflows=%d want 1", s.Overflows)
	}
	if !pos.Fix || !near(pos.Latitude, 48.608958333) {
		t.Fatalf("following sentence should still parse, got %+v", pos)
	}
}

func TestFeed_ExactCapacityLineFits(t *testing.T) {
	p := NewParser(nil)
	pos := UnknownPosition()
	line := "$GPXXX," + strings.Repeat("0", lineCapacity-1-7)
	p.Feed([]byte(line+"\n"), &pos)
	if s := p.Stats(); s.Overflows != 0 || s.Lines != 1 {
		t.Fatalf("stats %+v", s)
	}
}

type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(b []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	n := copy(b, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestPoll_DrainsUntilEmpty(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{[]byte(rmcActive + "\r\n$GNGGA,1"), []byte("23519,4836")}}
	p := NewParser(r)
	pos := UnknownPosition()

	if err := p.Poll(&pos); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !pos.Fix || !near(pos.Latitude, 48.1173) {
		t.Fatalf("got %+v", pos)
	}

	// The partial GGA completes on a later poll.
	r.chunks = [][]byte{[]byte(".5375,N,12220.1000,W,1,08,0.9,545.4,M,46.9,M,,*46\n")}
	if err := p.Poll(&pos); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !near(pos.Longitude, -122.335) {
		t.Fatalf("got %+v", pos)
	}
}

func TestPoll_ReturnsReadErrors(t *testing.T) {
	boom := errors.New("boom")
	p := NewParser(&chunkReader{err: boom})
	pos := UnknownPosition()
	if err := p.Poll(&pos); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	p = NewParser(bytes.NewReader(nil))
	if err := p.Poll(&pos); err != nil {
		t.Fatalf("EOF should be quiet, got %v", err)
	}
}

func TestPosition_JSONUnknownCoordinatesAreNull(t *testing.T) {
	b, err := json.Marshal(UnknownPosition())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"fix":false,"lat":null,"lon":null,"datetime_valid":false,"datetime":""}`
	if string(b) != want {
		t.Fatalf("got %s", b)
	}
}

func TestPosition_Equal(t *testing.T) {
	a, b := UnknownPosition(), UnknownPosition()
	if !a.Equal(b) {
		t.Fatalf("unknown positions should be equal")
	}
	b.Latitude = 1
	if a.Equal(b) {
		t.Fatalf("different latitude should differ")
	}
}
