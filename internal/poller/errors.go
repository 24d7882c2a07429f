// internal/poller/errors.go
package poller

import (
	"errors"
	"fmt"
)

// Error codes published in the status block.
// Driver errors may carry their own code; anything else is 1.
const (
	CodeNoData      uint16 = 2
	CodeReadTimeout uint16 = 3
)

// codedError is a sentinel that exposes a status code.
type codedError struct {
	code uint16
	msg  string
}

func (e *codedError) Error() string { return e.msg }
func (e *codedError) Code() uint16  { return e.code }

var (
	// ErrNoData means the driver had no new measurement this cycle.
	ErrNoData error = &codedError{code: CodeNoData, msg: "poller: no data available"}
	// ErrReadTimeout means the driver did not answer within the read timeout.
	ErrReadTimeout error = &codedError{code: CodeReadTimeout, msg: "poller: sensor read timed out"}
)

func resultOf(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrNoData):
		return ResultNoData
	case errors.Is(err, ErrReadTimeout):
		return ResultTimeout
	default:
		return ResultError
	}
}

func wrapDriver(op string, err error) error {
	return fmt.Errorf("poller: %s: %w", op, err)
}
