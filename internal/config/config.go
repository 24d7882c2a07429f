// internal/config/config.go
package config

type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
}

type BridgeConfig struct {
	// DeviceName is published in every sensor status block (ASCII, max 16 chars).
	DeviceName string          `yaml:"device_name"`
	Log        LogConfig       `yaml:"log"`
	Modbus     ModbusConfig    `yaml:"modbus"`
	Registers  RegistersConfig `yaml:"registers"`
	Publish    PublishConfig   `yaml:"publish"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Link       LinkConfig      `yaml:"link"`
	Sensors    []SensorConfig  `yaml:"sensors"`
}

// ---- AMBIENT ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // console|json
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

// ---- MODBUS SERVER ----

type ModbusConfig struct {
	Listen         string `yaml:"listen"`
	IdleTimeoutMs  int    `yaml:"idle_timeout_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
}

// ---- REGISTER TABLE ----

type RegistersConfig struct {
	DiscreteInputs   int `yaml:"discrete_inputs"`
	Coils            int `yaml:"coils"`
	InputRegisters   int `yaml:"input_registers"`
	HoldingRegisters int `yaml:"holding_registers"`
}

// ---- PUBLISHER ----

type PublishConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- LINK ----

type LinkConfig struct {
	Interface      string `yaml:"interface"` // empty = always up
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// ---- SENSOR ----

type SensorConfig struct {
	ID     string `yaml:"id"`
	Driver string `yaml:"driver"` // scd30|sim

	// I2C (scd30)
	I2CBus               string  `yaml:"i2c_bus"`
	I2CAddr              uint16  `yaml:"i2c_addr"`
	MeasurementIntervalS uint16  `yaml:"measurement_interval_s"`
	TemperatureOffset    float64 `yaml:"temperature_offset"`
	AutoSelfCalibration  bool    `yaml:"auto_self_calibration"`

	// Acquisition
	SampleIntervalMs int `yaml:"sample_interval_ms"`
	ReadTimeoutMs    int `yaml:"read_timeout_ms"`
	StaleAfter       int `yaml:"stale_after"`

	// Register map
	CO2         bool    `yaml:"co2"`
	HoldingBase uint16  `yaml:"holding_base"`
	StatusSlot  *uint16 `yaml:"status_slot"` // optional, opt-in

	Sim SimConfig `yaml:"sim"`
}

// SimConfig drives the simulated sensor.
type SimConfig struct {
	Temperature float64 `yaml:"temperature"`
	Humidity    float64 `yaml:"humidity"`
	CO2         uint16  `yaml:"co2"`
	// FailEvery makes every Nth sample fail; 0 never fails.
	FailEvery int `yaml:"fail_every"`
}

// Driver names.
const (
	DriverSCD30 = "scd30"
	DriverSim   = "sim"
)

// HoldingWidth is the number of holding registers a sensor publishes.
func (s SensorConfig) HoldingWidth() int {
	if s.CO2 {
		return 3
	}
	return 2
}
