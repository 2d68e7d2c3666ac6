package serial

import (
	"errors"
	"io"
	"os"
	"syscall"

	bugst "go.bug.st/serial"
)

// Port is the transport a Source drives. Close must unblock a Read that is
// in progress; that Read then returns an error.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// Opener opens a Port for cfg.
type Opener func(cfg Config) (Port, error)

// isFatalReadError reports whether err means the port can't be read again.
func isFatalReadError(err error) bool {
	if errors.Is(err, ErrClosed) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var pe *bugst.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case bugst.PortClosed, bugst.PortNotFound, bugst.InvalidSerialPort:
			return true
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBADF, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}
