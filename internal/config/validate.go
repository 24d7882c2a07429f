// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	maxSpaceCapacity = 65536
	statusBlockSize  = 20
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	b := cfg.Bridge

	if err := validateAmbient(b); err != nil {
		return err
	}

	if len(b.Sensors) == 0 {
		return errors.New("bridge: at least one sensor is required")
	}

	type span struct {
		start  int
		end    int // inclusive
		sensor string
	}

	ids := make(map[string]struct{})
	var holding []span

	// key = status_slot
	statusOwner := make(map[uint16]string)

	for _, s := range b.Sensors {
		if s.ID == "" {
			return errors.New("sensor: id is required")
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("sensor %q: duplicate id", s.ID)
		}
		ids[s.ID] = struct{}{}

		if err := validateSensor(s); err != nil {
			return err
		}

		// ------------------------------------------------------------
		// HOLDING REGISTER GEOMETRY
		// ------------------------------------------------------------

		start := int(s.HoldingBase)
		end := start + s.HoldingWidth() - 1
		if end >= b.Registers.HoldingRegisters {
			return fmt.Errorf(
				"sensor %q: holding range %d-%d exceeds holding_registers capacity %d",
				s.ID, start, end, b.Registers.HoldingRegisters,
			)
		}
		for _, o := range holding {
			// overlap check (inclusive)
			if !(end < o.start || start > o.end) {
				return fmt.Errorf(
					"holding overlap: sensor %q range=%d-%d overlaps with sensor %q range=%d-%d",
					s.ID, start, end, o.sensor, o.start, o.end,
				)
			}
		}
		holding = append(holding, span{start: start, end: end, sensor: s.ID})

		// ------------------------------------------------------------
		// SENSOR STATUS BLOCK (OPT-IN)
		// ------------------------------------------------------------

		if s.StatusSlot == nil {
			continue
		}
		slot := *s.StatusSlot

		if prev, exists := statusOwner[slot]; exists {
			return fmt.Errorf(
				"status_slot collision: slot=%d used by sensors %q and %q",
				slot, prev, s.ID,
			)
		}
		statusOwner[slot] = s.ID

		blockEnd := (int(slot)+1)*statusBlockSize - 1
		if blockEnd >= b.Registers.InputRegisters {
			return fmt.Errorf(
				"sensor %q: status block %d-%d exceeds input_registers capacity %d",
				s.ID, int(slot)*statusBlockSize, blockEnd, b.Registers.InputRegisters,
			)
		}
		if int(slot) >= b.Registers.DiscreteInputs {
			return fmt.Errorf(
				"sensor %q: status_slot %d has no discrete input (capacity %d)",
				s.ID, slot, b.Registers.DiscreteInputs,
			)
		}
	}

	return nil
}

func validateAmbient(b BridgeConfig) error {
	// device_name sanity (ASCII only)
	for i := 0; i < len(b.DeviceName); i++ {
		if b.DeviceName[i] > 0x7F {
			return errors.New("bridge: device_name must contain ASCII characters only")
		}
	}

	switch strings.ToLower(b.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", b.Log.Level)
	}
	switch b.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log: unknown format %q", b.Log.Format)
	}

	if b.Modbus.Listen == "" {
		return errors.New("modbus: listen is required")
	}
	if b.Modbus.IdleTimeoutMs <= 0 {
		return errors.New("modbus: idle_timeout_ms must be > 0")
	}
	if b.Modbus.WriteTimeoutMs <= 0 {
		return errors.New("modbus: write_timeout_ms must be > 0")
	}
	if b.Publish.IntervalMs <= 0 {
		return errors.New("publish: interval_ms must be > 0")
	}
	if b.Link.Interface != "" && b.Link.PollIntervalMs <= 0 {
		return errors.New("link: poll_interval_ms must be > 0")
	}

	caps := []struct {
		name string
		n    int
	}{
		{"discrete_inputs", b.Registers.DiscreteInputs},
		{"coils", b.Registers.Coils},
		{"input_registers", b.Registers.InputRegisters},
		{"holding_registers", b.Registers.HoldingRegisters},
	}
	for _, c := range caps {
		if c.n < 1 || c.n > maxSpaceCapacity {
			return fmt.Errorf("registers: %s must be within 1..%d, got %d", c.name, maxSpaceCapacity, c.n)
		}
	}
	return nil
}

func validateSensor(s SensorConfig) error {
	switch s.Driver {
	case DriverSCD30:
		if s.I2CAddr > 0x7F {
			return fmt.Errorf("sensor %q: i2c_addr %#x is not a 7-bit address", s.ID, s.I2CAddr)
		}
		if !s.CO2 {
			return fmt.Errorf("sensor %q: scd30 always publishes co2, set co2: true", s.ID)
		}
		if s.MeasurementIntervalS < 2 || s.MeasurementIntervalS > 1800 {
			return fmt.Errorf("sensor %q: measurement_interval_s must be within 2..1800", s.ID)
		}
		// the sensor can only lower its reported temperature
		if s.TemperatureOffset < 0 || s.TemperatureOffset > 655.35 {
			return fmt.Errorf("sensor %q: temperature_offset must be within 0..655.35", s.ID)
		}
	case DriverSim:
		if s.Sim.FailEvery < 0 {
			return fmt.Errorf("sensor %q: sim.fail_every must be >= 0", s.ID)
		}
	case "":
		return fmt.Errorf("sensor %q: driver is required", s.ID)
	default:
		return fmt.Errorf("sensor %q: unknown driver %q", s.ID, s.Driver)
	}

	if s.SampleIntervalMs <= 0 {
		return fmt.Errorf("sensor %q: sample_interval_ms must be > 0", s.ID)
	}
	if s.ReadTimeoutMs <= 0 {
		return fmt.Errorf("sensor %q: read_timeout_ms must be > 0", s.ID)
	}
	if s.StaleAfter <= 0 {
		return fmt.Errorf("sensor %q: stale_after must be > 0", s.ID)
	}
	return nil
}
