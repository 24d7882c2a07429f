// internal/sensor/scd30/errors.go
package scd30

import "fmt"

// Status codes for the sensor status block.
const (
	CodeBus uint16 = 16
	CodeCRC uint16 = 17
)

// BusError is an I2C transaction failure.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string { return fmt.Sprintf("scd30: %s: %v", e.Op, e.Err) }
func (e *BusError) Unwrap() error { return e.Err }
func (e *BusError) Code() uint16  { return CodeBus }

type crcError struct{}

func (crcError) Error() string { return "scd30: crc mismatch" }
func (crcError) Code() uint16  { return CodeCRC }

// ErrCRC means a received word failed its checksum.
var ErrCRC error = crcError{}
