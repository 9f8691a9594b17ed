package sensors

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/relabs-tech/env_station/internal/env"
)

// Example coefficients and ADC values from the BMP280 datasheet, §8.2.
var datasheetCal = Calibration{
	T1: 27504, T2: 26435, T3: -1000,
	P1: 36477, P2: -10685, P3: 3024, P4: 2855, P5: 140, P6: -7,
	P7: 15500, P8: -14600, P9: 6000,
}

var datasheetCalBytes = []byte{
	0x70, 0x6B, 0x43, 0x67, 0x18, 0xFC, 0x7D, 0x8E, 0x43, 0xD6, 0xD0, 0x0B,
	0x27, 0x0B, 0x8C, 0x00, 0xF9, 0xFF, 0x8C, 0x3C, 0xF8, 0xC6, 0x70, 0x17,
}

// adc_P=415148, adc_T=519888
var datasheetData = []byte{0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00}

func TestParseCalibration(t *testing.T) {
	cal, err := ParseCalibration(datasheetCalBytes)
	if err != nil {
		t.Fatalf("ParseCalibration: %v", err)
	}
	if cal != datasheetCal {
		t.Fatalf("got %+v want %+v", cal, datasheetCal)
	}
	if _, err := ParseCalibration(datasheetCalBytes[:23]); err == nil {
		t.Fatalf("expected short block error")
	}
}

func TestCompensation_MatchesDatasheet(t *testing.T) {
	d := &BMP280{cal: &datasheetCal}

	temp := d.compensateTemperature(519888)
	if d.tFine != 128422 {
		t.Fatalf("tFine=%d want 128422", d.tFine)
	}
	if !approx(temp, 25.08, 1e-9) {
		t.Fatalf("temperature=%v want 25.08", temp)
	}

	press := d.compensatePressure(415148)
	if !approx(press, 100653.27, 0.05) {
		t.Fatalf("pressure=%v want ~100653.27", press)
	}
}

func TestCompensation_PressureDependsOnFineTemperature(t *testing.T) {
	d := &BMP280{cal: &datasheetCal}
	stale := d.compensatePressure(415148)

	d.compensateTemperature(519888)
	fresh := d.compensatePressure(415148)
	if approx(stale, fresh, 1) {
		t.Fatalf("pressure should change once tFine is computed (stale=%v fresh=%v)", stale, fresh)
	}
}

func TestBMP280Read_LoadsCalibrationLazily(t *testing.T) {
	pb, dev := playback(0x77,
		i2ctest.IO{Addr: 0x77, W: []byte{0x88}, R: datasheetCalBytes},
		i2ctest.IO{Addr: 0x77, W: []byte{0xF7}, R: datasheetData},
	)
	d := NewBMP280(dev)

	var out env.PressureReading
	if err := d.Read(&out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	closePlayback(t, pb)

	if !out.Valid {
		t.Fatalf("expected valid reading")
	}
	if !approx(out.Temperature, 25.08, 1e-9) {
		t.Fatalf("temperature=%v", out.Temperature)
	}
	if !approx(out.Pressure, 100653.27, 0.05) {
		t.Fatalf("pressure=%v", out.Pressure)
	}
	if !approx(out.Altitude, 56.08, 0.01) {
		t.Fatalf("altitude=%v want ~56.08", out.Altitude)
	}
	if d.Calibration() == nil {
		t.Fatalf("calibration should stay loaded")
	}
}

func TestBMP280Read_CalibrationUnavailable(t *testing.T) {
	d := NewBMP280(failingConn())
	out := env.PressureReading{Valid: true}

	err := d.Read(&out)
	if !errors.Is(err, ErrCalibrationUnavailable) {
		t.Fatalf("expected ErrCalibrationUnavailable, got %v", err)
	}
	if !errors.Is(err, ErrBus) {
		t.Fatalf("expected bus cause, got %v", err)
	}
	if out.Valid {
		t.Fatalf("reading must be invalid")
	}
}

func TestBMP280Read_DataFailure(t *testing.T) {
	d := NewBMP280(&fakeConn{tx: func(w, r []byte) error {
		if w[0] == bmp280RegPressMsb {
			return errShort
		}
		return nil
	}})
	d.cal = &datasheetCal

	var out env.PressureReading
	assertBusError(t, d.Read(&out), "read")
	if out.Valid {
		t.Fatalf("reading must be invalid")
	}
}

func TestBMP280Init(t *testing.T) {
	pb, dev := playback(0x77,
		i2ctest.IO{Addr: 0x77, W: []byte{0x88}, R: datasheetCalBytes},
		i2ctest.IO{Addr: 0x77, W: []byte{0xF4, 0x27}},
		i2ctest.IO{Addr: 0x77, W: []byte{0xF5, 0xA0}},
	)
	if err := NewBMP280(dev).Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	closePlayback(t, pb)
}

func TestBMP280Init_ReportsMissingCalibration(t *testing.T) {
	f := &fakeConn{tx: func(w, r []byte) error {
		if len(r) > 0 {
			return errShort
		}
		return nil
	}}
	d := NewBMP280(f)
	err := d.Init()
	if !errors.Is(err, ErrCalibrationUnavailable) {
		t.Fatalf("expected ErrCalibrationUnavailable, got %v", err)
	}
	if len(f.writes) != 3 {
		t.Fatalf("mode registers should still be written, got %d transactions", len(f.writes))
	}
	if d.Calibration() != nil {
		t.Fatalf("calibration must be absent")
	}
}

func TestAltitude(t *testing.T) {
	tests := []struct {
		pa   float64
		want float64
	}{
		{0, 0},
		{-5, 0},
		{101325, 0},
	}
	for _, tt := range tests {
		if got := Altitude(tt.pa); !approx(got, tt.want, 1e-9) {
			t.Errorf("Altitude(%v)=%v want %v", tt.pa, got, tt.want)
		}
	}
	if Altitude(90000) <= 0 {
		t.Errorf("lower pressure must give positive altitude")
	}
}
