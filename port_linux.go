//go:build linux

package serial

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultOpener is the Opener used when WithOpener isn't given.
var DefaultOpener Opener = OpenLinux

// linuxPort is a raw termios serial port. Reads poll the device together
// with a self-pipe so Close can wake a blocked reader.
type linuxPort struct {
	fd        int
	device    string
	done      chan struct{}
	closeOnce sync.Once

	// mu is held shared by Read/Write and exclusively by Close while it
	// releases the descriptors.
	mu    sync.RWMutex
	pipeR int // self-pipe read fd
	pipeW int // self-pipe write fd
}

// OpenLinux opens cfg.Device in raw mode with the requested framing.
func OpenLinux(cfg Config) (Port, error) {
	p, err := openLinux(cfg)
	if err != nil {
		return nil, &OpenError{Device: cfg.Device, Err: err}
	}
	return p, nil
}

func openLinux(cfg Config) (*linuxPort, error) {
	baud, ok := baudToUnix(cfg.BaudRate)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, cfg.BaudRate)
	}
	csize, ok := dataBitsToUnix(cfg.DataBits)
	if !ok {
		return nil, fmt.Errorf("%w: data bits %d", ErrUnsupportedConfig, cfg.DataBits)
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	fail := func(err error) (*linuxPort, error) {
		unix.Close(fd)
		return nil, err
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fail(fmt.Errorf("get termios: %w", err))
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CRTSCTS
	termios.Cflag |= csize | unix.CREAD | unix.CLOCAL

	switch cfg.Parity {
	case ParityNone:
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
		termios.Iflag |= unix.INPCK
	case ParityEven:
		termios.Cflag |= unix.PARENB
		termios.Iflag |= unix.INPCK
	default:
		return fail(fmt.Errorf("%w: parity %s", ErrUnsupportedConfig, cfg.Parity))
	}

	switch cfg.StopBits {
	case StopBitsOne:
	case StopBitsTwo:
		termios.Cflag |= unix.CSTOPB
	default:
		return fail(fmt.Errorf("%w: stop bits %s", ErrUnsupportedConfig, cfg.StopBits))
	}

	switch cfg.FlowControl {
	case FlowNone:
	case FlowHardware:
		termios.Cflag |= unix.CRTSCTS
	case FlowSoftware:
		termios.Iflag |= unix.IXON | unix.IXOFF
	default:
		return fail(fmt.Errorf("%w: flow control %s", ErrUnsupportedConfig, cfg.FlowControl))
	}

	// Baud rate
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	// VMIN=1, VTIME=0: a read returns as soon as one byte is available
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fail(fmt.Errorf("set termios: %w", err))
	}

	// Turn back into blocking mode now that config is done
	if err := unix.SetNonblock(fd, false); err != nil {
		return fail(fmt.Errorf("set blocking: %w", err))
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		return fail(fmt.Errorf("pipe: %w", err))
	}

	return &linuxPort{
		fd:     fd,
		device: cfg.Device,
		done:   make(chan struct{}),
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}, nil
}

func (p *linuxPort) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Read blocks until at least one byte is available, the device reports an
// error or hang-up, or Close is called.
func (p *linuxPort) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	for {
		if p.closed() {
			return 0, ErrClosed
		}
		pfd := []unix.PollFd{
			{Fd: int32(p.fd), Events: unix.POLLIN},
			{Fd: int32(p.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, fmt.Errorf("poll: %w", err)
		}
		if p.closed() || pfd[1].Revents != 0 {
			return 0, ErrClosed
		}
		if pfd[0].Revents&unix.POLLNVAL != 0 {
			return 0, fmt.Errorf("poll: %w", unix.EBADF)
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			continue
		}
		n, err := unix.Read(p.fd, b)
		switch {
		case err == unix.EINTR || err == unix.EAGAIN:
			continue
		case err != nil:
			return 0, fmt.Errorf("read %s: %w", p.device, err)
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

func (p *linuxPort) Write(b []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed() {
		return 0, ErrClosed
	}
	for {
		n, err := unix.Write(p.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return max(n, 0), fmt.Errorf("write %s: %w", p.device, err)
		}
		return n, nil
	}
}

// Close wakes any blocked Read and releases the descriptors. Safe to call
// multiple times; subsequent calls are no-ops.
func (p *linuxPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe
		unix.Write(p.pipeW, []byte{1})

		p.mu.Lock()
		defer p.mu.Unlock()
		err = unix.Close(p.fd)
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
	})
	return err
}

func baudToUnix(baud int) (uint32, bool) {
	switch baud {
	case 1200:
		return unix.B1200, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	case 230400:
		return unix.B230400, true
	case 460800:
		return unix.B460800, true
	case 921600:
		return unix.B921600, true
	default:
		return 0, false
	}
}

func dataBitsToUnix(bits int) (uint32, bool) {
	switch bits {
	case 5:
		return unix.CS5, true
	case 6:
		return unix.CS6, true
	case 7:
		return unix.CS7, true
	case 8:
		return unix.CS8, true
	default:
		return 0, false
	}
}
