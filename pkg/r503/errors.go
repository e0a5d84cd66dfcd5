package r503

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized indicates Init has not completed successfully and
	// the operation depends on device parameters read during Init.
	ErrNotInitialized = errors.New("sensor not initialized")
	// ErrInvalidBaudrate indicates a baudrate the sensor doesn't support.
	// Nothing is transmitted.
	ErrInvalidBaudrate = errors.New("invalid baudrate")
	// ErrReadTimeout is returned by Transport.ReadByte when no byte arrives
	// in time.
	ErrReadTimeout = errors.New("read timeout")
)

// CodeError wraps a non-success confirmation code of an operation.
type CodeError struct {
	Op   string
	Code Code
}

// Error implements error.
func (e *CodeError) Error() string {
	return fmt.Sprintf("%s: %s (0x%02x)", e.Op, e.Code, byte(e.Code))
}
