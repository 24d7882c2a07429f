// internal/status/snapshot.go
package status

// Snapshot represents exactly what the publisher is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health            uint16
	LastErrorCode     uint16
	SecondsSinceGood  uint16
	ConsecutiveMisses uint16
}

// Saturate clamps a counter into a register slot.
func Saturate(n int64) uint16 {
	switch {
	case n < 0:
		return 0
	case n > int64(MaxCounter):
		return MaxCounter
	default:
		return uint16(n)
	}
}
