package serial

import (
	"bytes"
	"errors"
	"sync"
)

var errFakeClosed = errors.New("fake port closed")

// fakePort is an in-memory Port. Reads block until data or a scripted error
// is queued, or the port is closed.
type fakePort struct {
	mu   sync.Mutex
	cond *sync.Cond

	rx        bytes.Buffer
	readErrs  []error
	reads     int
	tx        bytes.Buffer
	writeErr  error
	maxChunk  int // caps bytes accepted per Write when > 0
	closed    bool
	closeErr  error
	closeHits int
}

func newFakePort() *fakePort {
	p := &fakePort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *fakePort) opener() Opener {
	return func(Config) (Port, error) { return p, nil }
}

// feed queues bytes for the reader.
func (p *fakePort) feed(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx.WriteString(data)
	p.cond.Broadcast()
}

// failReads queues errors returned by the next reads, ahead of any data.
func (p *fakePort) failReads(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErrs = append(p.readErrs, errs...)
	p.cond.Broadcast()
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && len(p.readErrs) == 0 && p.rx.Len() == 0 {
		p.cond.Wait()
	}
	p.reads++
	if p.closed {
		return 0, errFakeClosed
	}
	if len(p.readErrs) > 0 {
		err := p.readErrs[0]
		p.readErrs = p.readErrs[1:]
		return 0, err
	}
	return p.rx.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errFakeClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.maxChunk > 0 && len(b) > p.maxChunk {
		b = b[:p.maxChunk]
	}
	return p.tx.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closeHits++
	p.cond.Broadcast()
	return p.closeErr
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx.String()
}

func (p *fakePort) readCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// zeroWriter accepts nothing and reports no error.
type zeroWriter struct{ *fakePort }

func (zeroWriter) Write([]byte) (int, error) { return 0, nil }
