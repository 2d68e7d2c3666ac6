package serial

import "sync"

// compactThreshold is the number of consumed head bytes after which the
// backing slice is compacted.
const compactThreshold = 4096

// ByteChannel is an unbounded FIFO of bytes safe for concurrent Push and
// TryPop. Each producer's bytes are observed in the order it pushed them.
// Neither operation blocks beyond a short critical section.
type ByteChannel struct {
	mu   sync.Mutex
	buf  []byte
	head int
}

// NewByteChannel returns an empty channel.
func NewByteChannel() *ByteChannel {
	return &ByteChannel{buf: make([]byte, 0, 256)}
}

// Push appends b to the tail.
func (c *ByteChannel) Push(b byte) {
	c.mu.Lock()
	c.buf = append(c.buf, b)
	c.mu.Unlock()
}

// PushBytes appends p to the tail as one contiguous run; no other producer's
// bytes are interleaved inside it.
func (c *ByteChannel) PushBytes(p []byte) {
	if len(p) == 0 {
		return
	}
	c.mu.Lock()
	c.buf = append(c.buf, p...)
	c.mu.Unlock()
}

// TryPop removes and returns the head byte. ok is false when the channel is
// empty.
func (c *ByteChannel) TryPop() (b byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.head == len(c.buf) {
		return 0, false
	}
	b = c.buf[c.head]
	c.head++
	switch {
	case c.head == len(c.buf):
		c.buf = c.buf[:0]
		c.head = 0
	case c.head >= compactThreshold && c.head*2 >= len(c.buf):
		n := copy(c.buf, c.buf[c.head:])
		c.buf = c.buf[:n]
		c.head = 0
	}
	return b, true
}

// Len returns the number of bytes waiting to be popped.
func (c *ByteChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf) - c.head
}
