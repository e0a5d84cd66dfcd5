package r503

import (
	"io"
	"time"
)

// Transport is the byte-oriented serial link to the sensor.
type Transport interface {
	io.Writer
	// ReadByte waits up to timeout for a byte, returns ErrReadTimeout if
	// nothing arrives. A zero timeout only polls.
	ReadByte(timeout time.Duration) (byte, error)
	// Available returns the number of bytes readable without blocking.
	Available() (int, error)
	// SetBaudrate reconfigures the link speed.
	SetBaudrate(baud int) error
}

// readFull reads len(buf) bytes before deadline.
func readFull(t Transport, buf []byte, deadline time.Time) error {
	for i := range buf {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrReadTimeout
		}
		b, err := t.ReadByte(remaining)
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

// discard drops whatever is pending on the transport and returns the count.
func discard(t Transport) (int, error) {
	n, err := t.Available()
	if err != nil || n <= 0 {
		return 0, err
	}
	for i := 0; i < n; i++ {
		if _, err := t.ReadByte(0); err != nil {
			if err == ErrReadTimeout {
				return i, nil
			}
			return i, err
		}
	}
	return n, nil
}
