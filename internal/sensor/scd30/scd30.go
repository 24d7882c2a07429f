// internal/sensor/scd30/scd30.go

// Package scd30 drives a Sensirion SCD30 CO2/temperature/humidity sensor
// over I2C.
package scd30

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddr is the fixed SCD30 I2C address.
const DefaultAddr uint16 = 0x61

// Commands.
const (
	cmdStartContinuous     uint16 = 0x0010
	cmdStopContinuous      uint16 = 0x0104
	cmdMeasurementInterval uint16 = 0x4600
	cmdDataReady           uint16 = 0x0202
	cmdReadMeasurement     uint16 = 0x0300
	cmdAutoSelfCalibration uint16 = 0x5306
	cmdForcedRecalibration uint16 = 0x5204
	cmdTemperatureOffset   uint16 = 0x5403
)

// The sensor needs this long between a read command and the read.
var readDelay = 3 * time.Millisecond

// Opts configures the startup sequence.
type Opts struct {
	Addr uint16
	// MeasurementInterval in seconds, 2..1800.
	MeasurementInterval uint16
	// TemperatureOffset in °C, applied by the sensor. 0 leaves it untouched.
	TemperatureOffset float64
	// AutoSelfCalibration is off unless set.
	AutoSelfCalibration bool
	// AmbientPressure in mbar for compensation; 0 disables it.
	AmbientPressure uint16
}

// Dev is a handle to one SCD30.
//
// A measurement is read once from the bus and then handed out field by
// field; each getter fetches a new measurement only when its own field has
// already been consumed.
type Dev struct {
	mu  sync.Mutex
	dev i2c.Dev

	co2         uint16
	temperature float64
	humidity    float64

	freshCO2         bool
	freshTemperature bool
	freshHumidity    bool
}

// New runs the startup sequence and returns a measuring device.
func New(bus i2c.Bus, opts Opts) (*Dev, error) {
	if opts.Addr == 0 {
		opts.Addr = DefaultAddr
	}
	if opts.MeasurementInterval == 0 {
		opts.MeasurementInterval = 2
	}
	if opts.MeasurementInterval < 2 || opts.MeasurementInterval > 1800 {
		return nil, fmt.Errorf("scd30: measurement interval %ds out of range 2..1800", opts.MeasurementInterval)
	}
	if opts.TemperatureOffset < 0 {
		return nil, errors.New("scd30: temperature offset must be >= 0")
	}

	d := &Dev{dev: i2c.Dev{Bus: bus, Addr: opts.Addr}}

	asc := uint16(0)
	if opts.AutoSelfCalibration {
		asc = 1
	}
	if err := d.command(cmdAutoSelfCalibration, asc); err != nil {
		return nil, err
	}
	if err := d.command(cmdMeasurementInterval, opts.MeasurementInterval); err != nil {
		return nil, err
	}
	if opts.TemperatureOffset > 0 {
		if err := d.command(cmdTemperatureOffset, uint16(math.Round(opts.TemperatureOffset*100))); err != nil {
			return nil, err
		}
	}
	if err := d.command(cmdStartContinuous, opts.AmbientPressure); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("SCD30{%s}", &d.dev)
}

// DataAvailable reports whether a new measurement is ready.
func (d *Dev) DataAvailable() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, err := d.readWord(cmdDataReady)
	if err != nil {
		return false, err
	}
	return w == 1, nil
}

// ReadCO2 returns CO2 in ppm.
func (d *Dev) ReadCO2() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.freshCO2 {
		if err := d.readMeasurement(); err != nil {
			return 0, err
		}
	}
	d.freshCO2 = false
	return d.co2, nil
}

// ReadTemperature returns temperature in °C.
func (d *Dev) ReadTemperature() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.freshTemperature {
		if err := d.readMeasurement(); err != nil {
			return 0, err
		}
	}
	d.freshTemperature = false
	return d.temperature, nil
}

// ReadHumidity returns relative humidity in %RH.
func (d *Dev) ReadHumidity() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.freshHumidity {
		if err := d.readMeasurement(); err != nil {
			return 0, err
		}
	}
	d.freshHumidity = false
	return d.humidity, nil
}

// ForcedRecalibration tells the sensor the current CO2 concentration.
// The sensor must have been measuring in a stable environment for minutes.
func (d *Dev) ForcedRecalibration(ppm uint16) error {
	if ppm < 400 || ppm > 2000 {
		return fmt.Errorf("scd30: recalibration reference %d ppm out of range 400..2000", ppm)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.command(cmdForcedRecalibration, ppm)
}

// Halt stops continuous measurement.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var w [2]byte
	binary.BigEndian.PutUint16(w[:], cmdStopContinuous)
	return d.tx("stop", w[:], nil)
}

// ---- bus framing ----

// command writes cmd(2) arg(2) crc(1).
func (d *Dev) command(cmd, arg uint16) error {
	var w [5]byte
	binary.BigEndian.PutUint16(w[0:2], cmd)
	binary.BigEndian.PutUint16(w[2:4], arg)
	w[4] = crc8(w[2:4])
	return d.tx(fmt.Sprintf("command 0x%04x", cmd), w[:], nil)
}

func (d *Dev) readWord(cmd uint16) (uint16, error) {
	var r [3]byte
	if err := d.read(cmd, r[:]); err != nil {
		return 0, err
	}
	if crc8(r[0:2]) != r[2] {
		return 0, ErrCRC
	}
	return binary.BigEndian.Uint16(r[0:2]), nil
}

// readMeasurement reads 6 words (3 big-endian float32s, CO2/T/RH),
// each word followed by its CRC.
func (d *Dev) readMeasurement() error {
	var r [18]byte
	if err := d.read(cmdReadMeasurement, r[:]); err != nil {
		return err
	}

	var words [6]uint16
	for i := range words {
		chunk := r[3*i : 3*i+3]
		if crc8(chunk[0:2]) != chunk[2] {
			return ErrCRC
		}
		words[i] = binary.BigEndian.Uint16(chunk[0:2])
	}

	co2 := math.Float32frombits(uint32(words[0])<<16 | uint32(words[1]))
	t := math.Float32frombits(uint32(words[2])<<16 | uint32(words[3]))
	rh := math.Float32frombits(uint32(words[4])<<16 | uint32(words[5]))

	d.co2 = clampPPM(co2)
	d.temperature = float64(t)
	d.humidity = float64(rh)
	d.freshCO2 = true
	d.freshTemperature = true
	d.freshHumidity = true
	return nil
}

func (d *Dev) read(cmd uint16, r []byte) error {
	var w [2]byte
	binary.BigEndian.PutUint16(w[:], cmd)
	op := fmt.Sprintf("read 0x%04x", cmd)
	if err := d.tx(op, w[:], nil); err != nil {
		return err
	}
	time.Sleep(readDelay)
	return d.tx(op, nil, r)
}

func (d *Dev) tx(op string, w, r []byte) error {
	if err := d.dev.Tx(w, r); err != nil {
		return &BusError{Op: op, Err: err}
	}
	return nil
}

func clampPPM(v float32) uint16 {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(math.Round(float64(v)))
	}
}

// crc8 is the Sensirion CRC: polynomial 0x31, init 0xFF, no final xor.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
