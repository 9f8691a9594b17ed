package sensors

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

var errShort = errors.New("short transfer")

// fakeConn answers every Tx with tx, recording what was written.
type fakeConn struct {
	tx     func(w, r []byte) error
	writes [][]byte
}

func (f *fakeConn) String() string      { return "fake" }
func (f *fakeConn) Duplex() conn.Duplex { return conn.Half }

func (f *fakeConn) Tx(w, r []byte) error {
	f.writes = append(f.writes, append([]byte(nil), w...))
	if f.tx == nil {
		return nil
	}
	return f.tx(w, r)
}

func failingConn() *fakeConn {
	return &fakeConn{tx: func(w, r []byte) error { return errShort }}
}

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	old := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = old })
	return &slept
}

func playback(addr uint16, ops ...i2ctest.IO) (*i2ctest.Playback, *i2c.Dev) {
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	return pb, &i2c.Dev{Bus: pb, Addr: addr}
}

func closePlayback(t *testing.T, pb *i2ctest.Playback) {
	t.Helper()
	if err := pb.Close(); err != nil {
		t.Fatalf("unconsumed bus ops: %v", err)
	}
}

func assertBusError(t *testing.T, err error, op string) {
	t.Helper()
	if !errors.Is(err, ErrBus) {
		t.Fatalf("expected ErrBus, got %v", err)
	}
	var be *BusError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BusError, got %T", err)
	}
	if be.Op != op {
		t.Fatalf("op=%q want %q", be.Op, op)
	}
	if !errors.Is(err, errShort) {
		t.Fatalf("expected underlying cause to be kept, got %v", err)
	}
}

func approx(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
