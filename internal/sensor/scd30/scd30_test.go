// internal/sensor/scd30/scd30_test.go
package scd30

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"periph.io/x/conn/v3/physic"
)

type fakeBus struct {
	addr   uint16
	writes [][]byte
	reads  map[uint16][]byte
	last   uint16
	err    error
}

func newFakeBus() *fakeBus {
	return &fakeBus{reads: make(map[uint16][]byte)}
}

func (f *fakeBus) String() string                  { return "fake" }
func (f *fakeBus) SetSpeed(physic.Frequency) error { return nil }

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	f.addr = addr
	if len(w) > 0 {
		f.writes = append(f.writes, append([]byte(nil), w...))
		f.last = binary.BigEndian.Uint16(w[0:2])
	}
	if len(r) > 0 {
		copy(r, f.reads[f.last])
	}
	return nil
}

func (f *fakeBus) count(cmd uint16) int {
	n := 0
	for _, w := range f.writes {
		if binary.BigEndian.Uint16(w[0:2]) == cmd {
			n++
		}
	}
	return n
}

func word(v uint16) []byte {
	b := []byte{byte(v >> 8), byte(v)}
	return append(b, crc8(b))
}

func measurement(co2, t, rh float32) []byte {
	var out []byte
	for _, f := range []float32{co2, t, rh} {
		bits := math.Float32bits(f)
		out = append(out, word(uint16(bits>>16))...)
		out = append(out, word(uint16(bits))...)
	}
	return out
}

func newTestDev(t *testing.T, bus *fakeBus, opts Opts) *Dev {
	t.Helper()
	readDelay = 0
	d, err := New(bus, opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return d
}

func TestCRC8(t *testing.T) {
	if got := crc8([]byte{0xBE, 0xEF}); got != 0x92 {
		t.Fatalf("crc8(0xBEEF)=%#x want 0x92", got)
	}
}

func TestNew_StartupSequence(t *testing.T) {
	bus := newFakeBus()
	newTestDev(t, bus, Opts{TemperatureOffset: 1.5})

	if bus.addr != DefaultAddr {
		t.Fatalf("expected address %#x, got %#x", DefaultAddr, bus.addr)
	}

	want := [][]byte{
		append([]byte{0x53, 0x06}, word(0)...),      // ASC off
		append([]byte{0x46, 0x00}, word(2)...),      // 2 s interval
		append([]byte{0x54, 0x03}, word(150)...),    // 1.50 °C offset
		append([]byte{0x00, 0x10}, word(0x0000)...), // continuous, no pressure
	}
	if len(bus.writes) != len(want) {
		t.Fatalf("expected %d writes, got %d", len(want), len(bus.writes))
	}
	for i := range want {
		if !bytes.Equal(bus.writes[i], want[i]) {
			t.Fatalf("write %d: got=% X want=% X", i, bus.writes[i], want[i])
		}
	}
}

func TestNew_RejectsBadOptions(t *testing.T) {
	if _, err := New(newFakeBus(), Opts{MeasurementInterval: 1}); err == nil {
		t.Fatalf("expected interval error")
	}
	if _, err := New(newFakeBus(), Opts{TemperatureOffset: -1}); err == nil {
		t.Fatalf("expected offset error")
	}
}

func TestDev_ReadsOneMeasurementPerCycle(t *testing.T) {
	bus := newFakeBus()
	d := newTestDev(t, bus, Opts{})
	bus.reads[cmdDataReady] = word(1)
	bus.reads[cmdReadMeasurement] = measurement(812, 25.0, 45.5)

	ok, err := d.DataAvailable()
	if err != nil || !ok {
		t.Fatalf("data ready: ok=%v err=%v", ok, err)
	}

	temp, err := d.ReadTemperature()
	if err != nil || temp != 25.0 {
		t.Fatalf("temperature: %v %v", temp, err)
	}
	rh, err := d.ReadHumidity()
	if err != nil || rh != 45.5 {
		t.Fatalf("humidity: %v %v", rh, err)
	}
	co2, err := d.ReadCO2()
	if err != nil || co2 != 812 {
		t.Fatalf("co2: %v %v", co2, err)
	}
	if n := bus.count(cmdReadMeasurement); n != 1 {
		t.Fatalf("expected one measurement read, got %d", n)
	}

	// consumed fields trigger a new bus read
	if _, err := d.ReadTemperature(); err != nil {
		t.Fatalf("temperature: %v", err)
	}
	if n := bus.count(cmdReadMeasurement); n != 2 {
		t.Fatalf("expected second measurement read, got %d", n)
	}
}

func TestDev_DataNotReady(t *testing.T) {
	bus := newFakeBus()
	d := newTestDev(t, bus, Opts{})
	bus.reads[cmdDataReady] = word(0)

	ok, err := d.DataAvailable()
	if err != nil || ok {
		t.Fatalf("expected not ready, got ok=%v err=%v", ok, err)
	}
}

func TestDev_CRCError(t *testing.T) {
	bus := newFakeBus()
	d := newTestDev(t, bus, Opts{})
	m := measurement(600, 21, 40)
	m[5] ^= 0xFF // second word crc
	bus.reads[cmdReadMeasurement] = m

	_, err := d.ReadCO2()
	if !errors.Is(err, ErrCRC) {
		t.Fatalf("expected ErrCRC, got %v", err)
	}
	var c interface{ Code() uint16 }
	if !errors.As(err, &c) || c.Code() != CodeCRC {
		t.Fatalf("expected code %d", CodeCRC)
	}
}

func TestDev_BusError(t *testing.T) {
	bus := newFakeBus()
	d := newTestDev(t, bus, Opts{})
	cause := errors.New("nack")
	bus.err = cause

	_, err := d.DataAvailable()
	var be *BusError
	if !errors.As(err, &be) {
		t.Fatalf("expected BusError, got %v", err)
	}
	if !errors.Is(err, cause) || be.Code() != CodeBus {
		t.Fatalf("unexpected bus error %v", err)
	}
}

func TestDev_ForcedRecalibration(t *testing.T) {
	bus := newFakeBus()
	d := newTestDev(t, bus, Opts{})

	if err := d.ForcedRecalibration(300); err == nil {
		t.Fatalf("expected range error")
	}
	if err := d.ForcedRecalibration(415); err != nil {
		t.Fatalf("recalibration: %v", err)
	}
	last := bus.writes[len(bus.writes)-1]
	if !bytes.Equal(last, append([]byte{0x52, 0x04}, word(415)...)) {
		t.Fatalf("unexpected frame % X", last)
	}
}

func TestClampPPM(t *testing.T) {
	cases := []struct {
		in   float32
		want uint16
	}{
		{float32(math.NaN()), 0},
		{-5, 0},
		{411.6, 412},
		{70000, 65535},
	}
	for _, tc := range cases {
		if got := clampPPM(tc.in); got != tc.want {
			t.Fatalf("clampPPM(%v)=%d want %d", tc.in, got, tc.want)
		}
	}
}
