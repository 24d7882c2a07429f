// internal/status/constants.go
package status

// Sensor Status Block layout constants.
// These values define the register map and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerSensor is the fixed number of input registers per sensor block.
// A sensor with status slot N owns input registers N*SlotsPerSensor onward.
const SlotsPerSensor = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the sensor health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the failure code of the last cycle, 0 after a good one.
const SlotLastErrorCode = 1

// SlotSecondsSinceGood holds seconds since the last good sample (saturating).
const SlotSecondsSinceGood = 2

// SlotConsecutiveMisses holds the number of failed cycles since the last good sample.
const SlotConsecutiveMisses = 3

// ---- RESERVED RANGE ----

// Slots 4-10 are reserved and always read as zero.
const (
	SlotReservedStart = 4
	SlotReservedEnd   = 10
)

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// MaxCounter is the saturation point of every counter slot.
const MaxCounter uint16 = 65535

// ---- HEALTH CODES ----

// HealthUnknown means no sample has been taken yet.
const HealthUnknown uint16 = 0

// HealthOK means the last cycle produced a good sample.
const HealthOK uint16 = 1

// HealthError means recent cycles failed but values are not yet stale.
const HealthError uint16 = 2

// HealthStale means the published values are older than the stale threshold.
const HealthStale uint16 = 3

// HealthDisabled is reserved for a sensor that is configured but not polled.
const HealthDisabled uint16 = 4

// HealthName is the label for a health code.
func HealthName(code uint16) string {
	switch code {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}
