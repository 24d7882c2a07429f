// internal/config/normalize.go
package config

// Defaults.
const (
	DefaultModbusListen       = ":502"
	DefaultIdleTimeoutMs      = 60000
	DefaultWriteTimeoutMs     = 2000
	DefaultDiscreteInputs     = 16
	DefaultCoils              = 16
	DefaultInputRegisters     = 64
	DefaultHoldingRegisters   = 16
	DefaultPublishIntervalMs  = 1000
	DefaultLinkPollIntervalMs = 1000
	DefaultSampleIntervalMs   = 2000
	DefaultReadTimeoutMs      = 500
	DefaultStaleAfter         = 3
	DefaultSCD30Addr          = 0x61
	DefaultMeasurementS       = 2
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "console"

	deviceNameMaxChars = 16
)

// Normalize fills zero values with defaults and truncates device_name.
// It is allowed to mutate configuration.
// It MUST be called before Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	b := &cfg.Bridge

	setString(&b.Log.Level, DefaultLogLevel)
	setString(&b.Log.Format, DefaultLogFormat)

	setString(&b.Modbus.Listen, DefaultModbusListen)
	setInt(&b.Modbus.IdleTimeoutMs, DefaultIdleTimeoutMs)
	setInt(&b.Modbus.WriteTimeoutMs, DefaultWriteTimeoutMs)

	setInt(&b.Registers.DiscreteInputs, DefaultDiscreteInputs)
	setInt(&b.Registers.Coils, DefaultCoils)
	setInt(&b.Registers.InputRegisters, DefaultInputRegisters)
	setInt(&b.Registers.HoldingRegisters, DefaultHoldingRegisters)

	setInt(&b.Publish.IntervalMs, DefaultPublishIntervalMs)
	setInt(&b.Link.PollIntervalMs, DefaultLinkPollIntervalMs)

	// Normalize device_name:
	// - ASCII is checked by Validate
	// - Truncate to max 16 characters
	if len(b.DeviceName) > deviceNameMaxChars {
		b.DeviceName = b.DeviceName[:deviceNameMaxChars]
	}

	for i := range b.Sensors {
		s := &b.Sensors[i]

		setInt(&s.SampleIntervalMs, DefaultSampleIntervalMs)
		setInt(&s.ReadTimeoutMs, DefaultReadTimeoutMs)
		setInt(&s.StaleAfter, DefaultStaleAfter)

		if s.Driver == DriverSCD30 {
			if s.I2CAddr == 0 {
				s.I2CAddr = DefaultSCD30Addr
			}
			if s.MeasurementIntervalS == 0 {
				s.MeasurementIntervalS = DefaultMeasurementS
			}
		}
	}
}

// Negative values are left for Validate to reject.
func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}
