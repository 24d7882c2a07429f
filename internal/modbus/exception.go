// internal/modbus/exception.go
package modbus

import (
	"errors"
	"fmt"

	"github.com/tamzrod/modbus-sensorbridge/internal/registers"
)

// Exception is a Modbus exception code. ExceptionNone means success.
type Exception byte

const (
	ExceptionNone                Exception = 0x00
	ExceptionIllegalFunction     Exception = 0x01
	ExceptionIllegalDataAddress  Exception = 0x02
	ExceptionIllegalDataValue    Exception = 0x03
	ExceptionServerDeviceFailure Exception = 0x04
)

func (e Exception) Error() string {
	switch e {
	case ExceptionNone:
		return "modbus: no exception"
	case ExceptionIllegalFunction:
		return "modbus: illegal function"
	case ExceptionIllegalDataAddress:
		return "modbus: illegal data address"
	case ExceptionIllegalDataValue:
		return "modbus: illegal data value"
	case ExceptionServerDeviceFailure:
		return "modbus: server device failure"
	default:
		return fmt.Sprintf("modbus: exception 0x%02x", byte(e))
	}
}

// String is the label used in logs and metrics.
func (e Exception) String() string {
	switch e {
	case ExceptionNone:
		return "none"
	case ExceptionIllegalFunction:
		return "illegal_function"
	case ExceptionIllegalDataAddress:
		return "illegal_data_address"
	case ExceptionIllegalDataValue:
		return "illegal_data_value"
	case ExceptionServerDeviceFailure:
		return "server_device_failure"
	default:
		return fmt.Sprintf("0x%02x", byte(e))
	}
}

// put writes the 2-byte exception PDU: fc|0x80, code.
func (e Exception) put(dst []byte, fc FunctionCode) int {
	dst[0] = byte(fc) | 0x80
	dst[1] = byte(e)
	return 2
}

// exceptionFor maps a register table error onto the wire code.
func exceptionFor(err error) Exception {
	switch {
	case err == nil:
		return ExceptionNone
	case errors.Is(err, registers.ErrIllegalDataAddress):
		return ExceptionIllegalDataAddress
	case errors.Is(err, registers.ErrIllegalDataValue):
		return ExceptionIllegalDataValue
	default:
		return ExceptionServerDeviceFailure
	}
}
