// internal/publisher/status_writer.go
package publisher

import (
	"fmt"
	"time"

	"github.com/tamzrod/modbus-sensorbridge/internal/poller"
	"github.com/tamzrod/modbus-sensorbridge/internal/registers"
	"github.com/tamzrod/modbus-sensorbridge/internal/status"
)

// statusWriter owns one sensor status block in input registers
// and its freshness bit in discrete inputs.
type statusWriter struct {
	slot int

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

func newStatusWriter(slot uint16, deviceName string) *statusWriter {
	return &statusWriter{
		slot:     int(slot),
		needFull: true, // full re-assert on first successful write
		nameRegs: status.EncodeDeviceName(deviceName),
	}
}

// snapshotOf derives the status block contents from a reading.
// since is the reference time when no good sample exists yet.
func snapshotOf(r poller.Reading, now, since time.Time) status.Snapshot {
	s := status.Snapshot{
		LastErrorCode:     r.LastErrorCode,
		ConsecutiveMisses: status.Saturate(int64(r.Misses)),
	}

	switch {
	case r.Stale:
		s.Health = status.HealthStale
	case r.Misses > 0:
		s.Health = status.HealthError
	case r.Valid:
		s.Health = status.HealthOK
	default:
		s.Health = status.HealthUnknown
	}

	ref := since
	if r.Valid {
		ref = r.SampledAt
	}
	s.SecondsSinceGood = status.Saturate(int64(now.Sub(ref) / time.Second))
	return s
}

// write delivers a snapshot into the table.
// The first write (and the first after any failure) asserts the full block,
// device name included; later writes cover only the live slots.
func (sw *statusWriter) write(tbl Table, s status.Snapshot, fresh bool) error {
	base := sw.slot * status.SlotsPerSensor

	if sw.needFull {
		if err := tbl.WriteRegisters(registers.InputRegisters, base, status.Encode(s, sw.nameRegs)); err != nil {
			return fmt.Errorf("status block %d: full write failed: %w", sw.slot, err)
		}
		sw.needFull = false
	} else if s != sw.last {
		live := status.Encode(s, nil)[:status.SlotConsecutiveMisses+1]
		if err := tbl.WriteRegisters(registers.InputRegisters, base, live); err != nil {
			// Any failure introduces doubt: re-assert on next success.
			sw.needFull = true
			return fmt.Errorf("status block %d: live write failed: %w", sw.slot, err)
		}
	}
	sw.last = s

	if err := tbl.WriteBits(registers.DiscreteInputs, sw.slot, []bool{fresh}); err != nil {
		return fmt.Errorf("status block %d: fresh bit write failed: %w", sw.slot, err)
	}
	return nil
}
