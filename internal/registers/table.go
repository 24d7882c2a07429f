// internal/registers/table.go
package registers

import (
	"errors"
	"fmt"
	"sync"
)

// Space names one of the four Modbus object spaces.
type Space uint8

const (
	DiscreteInputs Space = iota
	Coils
	InputRegisters
	HoldingRegisters
)

func (s Space) String() string {
	switch s {
	case DiscreteInputs:
		return "discrete_inputs"
	case Coils:
		return "coils"
	case InputRegisters:
		return "input_registers"
	case HoldingRegisters:
		return "holding_registers"
	default:
		return fmt.Sprintf("space(%d)", uint8(s))
	}
}

// IsBit reports whether the space holds single-bit objects.
func (s Space) IsBit() bool { return s == DiscreteInputs || s == Coils }

var (
	// ErrIllegalDataAddress means start+count runs past the space capacity.
	ErrIllegalDataAddress = errors.New("registers: illegal data address")
	// ErrIllegalDataValue means a zero-length access.
	ErrIllegalDataValue = errors.New("registers: illegal data value")
	// ErrWrongSpace means a bit access on a register space or the reverse.
	ErrWrongSpace = errors.New("registers: wrong object space for access")
)

// Capacity fixes the size of each space at construction.
type Capacity struct {
	DiscreteInputs   int
	Coils            int
	InputRegisters   int
	HoldingRegisters int
}

// Table owns the four object spaces behind one lock.
// The lock covers array copies only; callers never do I/O under it.
type Table struct {
	mu       sync.Mutex
	discrete []bool
	coils    []bool
	input    []uint16
	holding  []uint16
}

// New allocates a table. Negative capacities are treated as zero.
func New(c Capacity) *Table {
	return &Table{
		discrete: make([]bool, clampCap(c.DiscreteInputs)),
		coils:    make([]bool, clampCap(c.Coils)),
		input:    make([]uint16, clampCap(c.InputRegisters)),
		holding:  make([]uint16, clampCap(c.HoldingRegisters)),
	}
}

func clampCap(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Capacity returns the configured sizes.
func (t *Table) Capacity() Capacity {
	// Slices are never resized, lengths are safe to read without the lock.
	return Capacity{
		DiscreteInputs:   len(t.discrete),
		Coils:            len(t.coils),
		InputRegisters:   len(t.input),
		HoldingRegisters: len(t.holding),
	}
}

// Len returns the capacity of one space.
func (t *Table) Len(space Space) int {
	switch space {
	case DiscreteInputs:
		return len(t.discrete)
	case Coils:
		return len(t.coils)
	case InputRegisters:
		return len(t.input)
	case HoldingRegisters:
		return len(t.holding)
	}
	return 0
}

// checkRange validates (start, count) against capacity.
// A zero count is a value error; an overrun is an address error.
func checkRange(start, count, capacity int) error {
	if count == 0 {
		return ErrIllegalDataValue
	}
	if start < 0 || count < 0 || start+count > capacity {
		return fmt.Errorf("%w: start=%d count=%d capacity=%d", ErrIllegalDataAddress, start, count, capacity)
	}
	return nil
}

// ReadBits copies count bits starting at start.
func (t *Table) ReadBits(space Space, start, count int) ([]bool, error) {
	src, err := t.bitSpace(space)
	if err != nil {
		return nil, err
	}
	if err := checkRange(start, count, len(src)); err != nil {
		return nil, err
	}
	out := make([]bool, count)

	t.mu.Lock()
	copy(out, src[start:start+count])
	t.mu.Unlock()

	return out, nil
}

// ReadRegisters copies count registers starting at start.
func (t *Table) ReadRegisters(space Space, start, count int) ([]uint16, error) {
	src, err := t.registerSpace(space)
	if err != nil {
		return nil, err
	}
	if err := checkRange(start, count, len(src)); err != nil {
		return nil, err
	}
	out := make([]uint16, count)

	t.mu.Lock()
	copy(out, src[start:start+count])
	t.mu.Unlock()

	return out, nil
}

// WriteBits stores values starting at start. All-or-nothing.
func (t *Table) WriteBits(space Space, start int, values []bool) error {
	dst, err := t.bitSpace(space)
	if err != nil {
		return err
	}
	if err := checkRange(start, len(values), len(dst)); err != nil {
		return err
	}

	t.mu.Lock()
	copy(dst[start:], values)
	t.mu.Unlock()

	return nil
}

// WriteRegisters stores values starting at start under one lock acquisition,
// so readers see either none or all of them.
func (t *Table) WriteRegisters(space Space, start int, values []uint16) error {
	dst, err := t.registerSpace(space)
	if err != nil {
		return err
	}
	if err := checkRange(start, len(values), len(dst)); err != nil {
		return err
	}

	t.mu.Lock()
	copy(dst[start:], values)
	t.mu.Unlock()

	return nil
}

func (t *Table) bitSpace(space Space) ([]bool, error) {
	switch space {
	case DiscreteInputs:
		return t.discrete, nil
	case Coils:
		return t.coils, nil
	}
	return nil, fmt.Errorf("%w: %s is not a bit space", ErrWrongSpace, space)
}

func (t *Table) registerSpace(space Space) ([]uint16, error) {
	switch space {
	case InputRegisters:
		return t.input, nil
	case HoldingRegisters:
		return t.holding, nil
	}
	return nil, fmt.Errorf("%w: %s is not a register space", ErrWrongSpace, space)
}
