// internal/modbus/mbap.go
package modbus

import "encoding/binary"

// MBAP / ADU geometry.
//
//	TID(2) PID(2=0) LEN(2) UID(1) | FC(1) DATA(n)
//
// LEN counts UID + PDU, so a frame carries at least UID+FC (2)
// and at most UID + 253 PDU bytes (254).
const (
	mbapSize     = 7
	maxPDUSize   = 253
	maxADUSize   = mbapSize + maxPDUSize
	minMBAPLen   = 2
	maxMBAPLen   = 1 + maxPDUSize
	modbusProtID = 0
)

// header is the decoded MBAP prefix of one frame.
type header struct {
	Transaction uint16
	Protocol    uint16
	Length      uint16
	Unit        uint8
}

// decodeHeader reads the 7 MBAP bytes. No validation is done here:
// the connection decides what a bad length or protocol id means.
func decodeHeader(b []byte) header {
	return header{
		Transaction: binary.BigEndian.Uint16(b[0:2]),
		Protocol:    binary.BigEndian.Uint16(b[2:4]),
		Length:      binary.BigEndian.Uint16(b[4:6]),
		Unit:        b[6],
	}
}

// lengthOK reports whether LEN frames a PDU we can buffer.
func (h header) lengthOK() bool {
	return h.Length >= minMBAPLen && h.Length <= maxMBAPLen
}

func (h header) put(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], h.Transaction)
	binary.BigEndian.PutUint16(b[2:4], h.Protocol)
	binary.BigEndian.PutUint16(b[4:6], h.Length)
	b[6] = h.Unit
}
