// internal/modbus/pdu.go
package modbus

import (
	"encoding/binary"
	"fmt"

	"github.com/tamzrod/modbus-sensorbridge/internal/registers"
)

// FunctionCode is the first PDU byte.
type FunctionCode byte

const (
	FCReadCoils              FunctionCode = 0x01
	FCReadDiscreteInputs     FunctionCode = 0x02
	FCReadHoldingRegisters   FunctionCode = 0x03
	FCReadInputRegisters     FunctionCode = 0x04
	FCWriteSingleCoil        FunctionCode = 0x05
	FCWriteSingleRegister    FunctionCode = 0x06
	FCWriteMultipleCoils     FunctionCode = 0x0F
	FCWriteMultipleRegisters FunctionCode = 0x10
)

func (fc FunctionCode) String() string {
	switch fc {
	case FCReadCoils:
		return "read_coils"
	case FCReadDiscreteInputs:
		return "read_discrete_inputs"
	case FCReadHoldingRegisters:
		return "read_holding_registers"
	case FCReadInputRegisters:
		return "read_input_registers"
	case FCWriteSingleCoil:
		return "write_single_coil"
	case FCWriteSingleRegister:
		return "write_single_register"
	case FCWriteMultipleCoils:
		return "write_multiple_coils"
	case FCWriteMultipleRegisters:
		return "write_multiple_registers"
	default:
		return fmt.Sprintf("fc_0x%02x", byte(fc))
	}
}

// Protocol quantity ceilings.
const (
	maxReadBits       = 2000
	maxReadRegisters  = 125
	maxWriteBits      = 1968
	maxWriteRegisters = 123
)

const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// Store is the register table surface the dispatcher needs.
type Store interface {
	ReadBits(space registers.Space, start, count int) ([]bool, error)
	ReadRegisters(space registers.Space, start, count int) ([]uint16, error)
	WriteBits(space registers.Space, start int, values []bool) error
	WriteRegisters(space registers.Space, start int, values []uint16) error
}

// Dispatch handles one request PDU (function code first) and writes the
// response PDU into dst, which must hold maxPDUSize bytes.
// It returns the response length and the exception sent, if any.
// Byte counts in the response are computed here, never copied from req.
func Dispatch(store Store, req, dst []byte) (int, Exception) {
	if len(req) == 0 {
		return ExceptionIllegalFunction.put(dst, 0), ExceptionIllegalFunction
	}

	fc := FunctionCode(req[0])
	data := req[1:]

	var (
		n   int
		exc Exception
	)

	switch fc {
	case FCReadCoils:
		n, exc = readBits(store, registers.Coils, fc, data, dst)
	case FCReadDiscreteInputs:
		n, exc = readBits(store, registers.DiscreteInputs, fc, data, dst)
	case FCReadHoldingRegisters:
		n, exc = readRegisters(store, registers.HoldingRegisters, fc, data, dst)
	case FCReadInputRegisters:
		n, exc = readRegisters(store, registers.InputRegisters, fc, data, dst)
	case FCWriteSingleCoil:
		n, exc = writeSingleCoil(store, data, dst)
	case FCWriteSingleRegister:
		n, exc = writeSingleRegister(store, data, dst)
	case FCWriteMultipleCoils:
		n, exc = writeMultipleCoils(store, data, dst)
	case FCWriteMultipleRegisters:
		n, exc = writeMultipleRegisters(store, data, dst)
	default:
		exc = ExceptionIllegalFunction
	}

	if exc != ExceptionNone {
		return exc.put(dst, fc), exc
	}
	return n, ExceptionNone
}

// ---- read functions (1, 2, 3, 4) ----

// Request data: start(2) quantity(2)
// Response: fc(1) byteCount(1) values(n)

func readBits(store Store, space registers.Space, fc FunctionCode, data, dst []byte) (int, Exception) {
	if len(data) != 4 {
		return 0, ExceptionIllegalDataValue
	}
	start := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty == 0 || qty > maxReadBits {
		return 0, ExceptionIllegalDataValue
	}

	bits, err := store.ReadBits(space, int(start), int(qty))
	if err != nil {
		return 0, exceptionFor(err)
	}

	byteCount := (int(qty) + 7) / 8
	dst[0] = byte(fc)
	dst[1] = byte(byteCount)
	packBits(dst[2:2+byteCount], bits)
	return 2 + byteCount, ExceptionNone
}

func readRegisters(store Store, space registers.Space, fc FunctionCode, data, dst []byte) (int, Exception) {
	if len(data) != 4 {
		return 0, ExceptionIllegalDataValue
	}
	start := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty == 0 || qty > maxReadRegisters {
		return 0, ExceptionIllegalDataValue
	}

	regs, err := store.ReadRegisters(space, int(start), int(qty))
	if err != nil {
		return 0, exceptionFor(err)
	}

	byteCount := 2 * len(regs)
	dst[0] = byte(fc)
	dst[1] = byte(byteCount)
	for i, r := range regs {
		binary.BigEndian.PutUint16(dst[2+2*i:], r)
	}
	return 2 + byteCount, ExceptionNone
}

// ---- single writes (5, 6) ----

// Request data: address(2) value(2)
// Response: echo of fc, address, value

func writeSingleCoil(store Store, data, dst []byte) (int, Exception) {
	if len(data) != 4 {
		return 0, ExceptionIllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])
	if value != coilOn && value != coilOff {
		return 0, ExceptionIllegalDataValue
	}

	if err := store.WriteBits(registers.Coils, int(addr), []bool{value == coilOn}); err != nil {
		return 0, exceptionFor(err)
	}
	return putAddrValue(dst, FCWriteSingleCoil, addr, value), ExceptionNone
}

func writeSingleRegister(store Store, data, dst []byte) (int, Exception) {
	if len(data) != 4 {
		return 0, ExceptionIllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if err := store.WriteRegisters(registers.HoldingRegisters, int(addr), []uint16{value}); err != nil {
		return 0, exceptionFor(err)
	}
	return putAddrValue(dst, FCWriteSingleRegister, addr, value), ExceptionNone
}

// ---- multiple writes (15, 16) ----

// Request data: start(2) quantity(2) byteCount(1) values(byteCount)
// Response: fc, start, quantity

func writeMultipleCoils(store Store, data, dst []byte) (int, Exception) {
	if len(data) < 5 {
		return 0, ExceptionIllegalDataValue
	}
	start := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	byteCount := int(data[4])
	if qty == 0 || qty > maxWriteBits {
		return 0, ExceptionIllegalDataValue
	}
	if byteCount != (int(qty)+7)/8 || len(data) != 5+byteCount {
		return 0, ExceptionIllegalDataValue
	}

	bits := unpackBits(data[5:5+byteCount], int(qty))
	if err := store.WriteBits(registers.Coils, int(start), bits); err != nil {
		return 0, exceptionFor(err)
	}
	return putAddrValue(dst, FCWriteMultipleCoils, start, qty), ExceptionNone
}

func writeMultipleRegisters(store Store, data, dst []byte) (int, Exception) {
	if len(data) < 5 {
		return 0, ExceptionIllegalDataValue
	}
	start := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	byteCount := int(data[4])
	if qty == 0 || qty > maxWriteRegisters {
		return 0, ExceptionIllegalDataValue
	}
	if byteCount != 2*int(qty) || len(data) != 5+byteCount {
		return 0, ExceptionIllegalDataValue
	}

	regs := make([]uint16, qty)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[5+2*i:])
	}
	if err := store.WriteRegisters(registers.HoldingRegisters, int(start), regs); err != nil {
		return 0, exceptionFor(err)
	}
	return putAddrValue(dst, FCWriteMultipleRegisters, start, qty), ExceptionNone
}

// ---- helpers (pure geometry) ----

func putAddrValue(dst []byte, fc FunctionCode, v1, v2 uint16) int {
	dst[0] = byte(fc)
	binary.BigEndian.PutUint16(dst[1:3], v1)
	binary.BigEndian.PutUint16(dst[3:5], v2)
	return 5
}

// packBits packs LSB-first; dst must be zeroable to ceil(len(bits)/8).
func packBits(dst []byte, bits []bool) {
	for i := range dst {
		dst[i] = 0
	}
	for i, v := range bits {
		if v {
			dst[i/8] |= 1 << uint(i%8)
		}
	}
}

func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		out[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return out
}
