package serial

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by port and source operations after Close.
	ErrClosed = errors.New("serial: port closed")

	// ErrTokenTooLong is reported by PollLoop when a token exceeds the
	// configured maximum and the working buffer was reset.
	ErrTokenTooLong = errors.New("serial: token exceeds maximum size")

	// ErrInvalidTokenSize is returned by SetMaxTokenSize for sizes below 1.
	ErrInvalidTokenSize = errors.New("serial: max token size must be at least 1")

	// ErrUnsupportedBaudRate is returned when the transport can't apply the
	// requested rate.
	ErrUnsupportedBaudRate = errors.New("serial: unsupported baud rate")

	// ErrUnsupportedConfig is returned when a framing or flow control value
	// can't be applied by the transport.
	ErrUnsupportedConfig = errors.New("serial: unsupported port configuration")
)

// OpenError reports a failure to open or configure the device.
type OpenError struct {
	Device string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("serial: open %s: %v", e.Device, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// WriteError reports a failed SendSync. Written is the number of bytes that
// reached the transport before the failure.
type WriteError struct {
	Written int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("serial: write failed after %d bytes: %v", e.Written, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError is the reason a Source's receive loop stopped.
type ReadError struct {
	// Attempts is the number of consecutive failed reads, including the last.
	Attempts int
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("serial: receive loop stopped after %d failed reads: %v", e.Attempts, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
