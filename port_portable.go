package serial

import (
	"fmt"

	bugst "go.bug.st/serial"
)

// OpenPortable opens cfg.Device with go.bug.st/serial. It works on every
// platform that library supports but can't configure flow control, so any
// FlowControl other than FlowNone is rejected.
func OpenPortable(cfg Config) (Port, error) {
	mode, err := portableMode(cfg)
	if err != nil {
		return nil, &OpenError{Device: cfg.Device, Err: err}
	}
	p, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, &OpenError{Device: cfg.Device, Err: err}
	}
	return p, nil
}

func portableMode(cfg Config) (*bugst.Mode, error) {
	if cfg.BaudRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, cfg.BaudRate)
	}
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return nil, fmt.Errorf("%w: data bits %d", ErrUnsupportedConfig, cfg.DataBits)
	}
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}

	switch cfg.Parity {
	case ParityNone:
		mode.Parity = bugst.NoParity
	case ParityOdd:
		mode.Parity = bugst.OddParity
	case ParityEven:
		mode.Parity = bugst.EvenParity
	default:
		return nil, fmt.Errorf("%w: parity %s", ErrUnsupportedConfig, cfg.Parity)
	}

	switch cfg.StopBits {
	case StopBitsOne:
		mode.StopBits = bugst.OneStopBit
	case StopBitsTwo:
		mode.StopBits = bugst.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: stop bits %s", ErrUnsupportedConfig, cfg.StopBits)
	}

	if cfg.FlowControl != FlowNone {
		return nil, fmt.Errorf("%w: flow control %s not supported by portable backend", ErrUnsupportedConfig, cfg.FlowControl)
	}
	return mode, nil
}
