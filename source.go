package serial

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source owns a Port and keeps exactly one single-byte read outstanding on
// it from a dedicated goroutine, pushing every received byte into a
// ByteChannel. SendSync may be called from any goroutine while the receive
// loop runs.
type Source struct {
	port    Port
	ch      *ByteChannel
	log     *zap.Logger
	metrics *Metrics

	maxRetries int
	backoff    time.Duration

	stop      chan struct{}
	exited    chan struct{}
	failed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error
}

// NewSource opens the port described by cfg and starts the receive loop.
// If the port can't be opened the error is returned here and no goroutine
// is started.
func NewSource(ch *ByteChannel, cfg Config, opts ...Option) (*Source, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.With(zap.String("component", "serial.source"), zap.String("device", cfg.Device))

	port, err := o.opener(cfg)
	if err != nil {
		log.Debug("open failed", zap.Error(err))
		var oe *OpenError
		if !errors.As(err, &oe) {
			err = &OpenError{Device: cfg.Device, Err: err}
		}
		return nil, err
	}
	log.Debug("port opened", zap.Stringer("config", cfg))

	s := &Source{
		port:       port,
		ch:         ch,
		log:        log,
		metrics:    o.metrics,
		maxRetries: o.maxRetries,
		backoff:    o.backoff,
		stop:       make(chan struct{}),
		exited:     make(chan struct{}),
		failed:     make(chan struct{}),
	}
	go s.receiveLoop()
	return s, nil
}

func (s *Source) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// receiveLoop re-arms a one-byte read as soon as the previous one completes.
// A byte delivered after stop is signalled is dropped.
func (s *Source) receiveLoop() {
	defer close(s.exited)

	var b [1]byte
	attempts := 0
	for {
		n, err := s.port.Read(b[:])
		if s.stopping() {
			return
		}
		if n > 0 {
			s.ch.Push(b[0])
			s.metrics.rx()
			attempts = 0
		}
		if err == nil {
			continue
		}

		attempts++
		s.metrics.readError()
		if isFatalReadError(err) || attempts > s.maxRetries {
			s.fail(&ReadError{Attempts: attempts, Err: err})
			return
		}
		s.log.Warn("read failed, re-arming", zap.Error(err), zap.Int("attempt", attempts), zap.Duration("backoff", s.backoff))
		if s.backoff > 0 {
			t := time.NewTimer(s.backoff)
			select {
			case <-s.stop:
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

func (s *Source) fail(err *ReadError) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
	s.log.Error("receive loop stopped", zap.Error(err))
	close(s.failed)
}

// Failed returns a channel that is closed when the receive loop has given up
// after a read error. It is never closed by Close alone.
func (s *Source) Failed() <-chan struct{} {
	return s.failed
}

// Err returns the *ReadError that stopped the receive loop, or nil.
func (s *Source) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Wait blocks until the receive goroutine has exited, either through Close
// or after a failure.
func (s *Source) Wait() {
	<-s.exited
}

// SendSync writes p to the port and blocks until every byte has been written
// or the write fails. Calls are serialized.
func (s *Source) SendSync(p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.stopping() {
		return &WriteError{Err: ErrClosed}
	}
	written := 0
	for written < len(p) {
		n, err := s.port.Write(p[written:])
		written += n
		s.metrics.tx(n)
		if err == nil && n == 0 {
			err = io.ErrShortWrite
		}
		if err != nil {
			s.log.Warn("write failed", zap.Error(err), zap.Int("written", written), zap.Int("len", len(p)))
			return &WriteError{Written: written, Err: err}
		}
	}
	return nil
}

// SendString is SendSync for a string.
func (s *Source) SendString(str string) error {
	return s.SendSync([]byte(str))
}

// Close stops the receive loop, closes the port and waits for the receive
// goroutine to exit. A read still outstanding is abandoned. Safe to call
// multiple times; subsequent calls return the first result.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.closeErr = s.port.Close()
		<-s.exited
		s.log.Debug("source closed", zap.Error(s.closeErr))
	})
	return s.closeErr
}
