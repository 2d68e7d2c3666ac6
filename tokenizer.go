package serial

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxTokenSize is the maximum token length of a new Tokenizer.
	DefaultMaxTokenSize = 128

	defaultDelimiter = ' '
)

// Result is the outcome of a Poll.
type Result int

const (
	// NoTokenAvailable means the channel ran dry before a delimiter arrived.
	// The partial token stays in the State for the next Poll.
	NoTokenAvailable Result = iota
	// TokenReturned means a delimiter closed a token.
	TokenReturned
	// TokenLengthError means the token outgrew the maximum size. The working
	// buffer was cleared and the offending byte consumed.
	TokenLengthError
)

func (r Result) String() string {
	switch r {
	case NoTokenAvailable:
		return "no token available"
	case TokenReturned:
		return "token returned"
	case TokenLengthError:
		return "token length error"
	default:
		return "unknown result"
	}
}

// Popper is the non-blocking read side of a byte queue. *ByteChannel
// implements it.
type Popper interface {
	TryPop() (byte, bool)
}

// State is the working buffer of a token that hasn't been terminated yet.
// The zero value is ready to use. A State belongs to one consumer.
type State struct {
	buf []byte
	gen uint64
}

// Len returns the number of bytes collected for the current token.
func (s *State) Len() int { return len(s.buf) }

// Reset discards the partial token.
func (s *State) Reset() { s.buf = s.buf[:0] }

// Tokenizer splits the bytes it pops from a Popper into tokens terminated by
// any of its delimiter bytes. The delimiter is not part of the token.
//
// Tokenizer itself is not safe for concurrent use; it is meant to be driven
// by the single consumer that owns the State passed to Poll.
type Tokenizer struct {
	q       Popper
	delims  [256]bool
	maxSize int
	// gen changes on every reconfiguration so States holding a partial
	// token from the old settings are cleared on their next Poll.
	gen     uint64
	log     *zap.Logger
	metrics *Metrics
}

// NewTokenizer returns a Tokenizer reading from q with a single space as the
// delimiter and DefaultMaxTokenSize as the maximum token length.
func NewTokenizer(q Popper, opts ...Option) *Tokenizer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	t := &Tokenizer{
		q:       q,
		maxSize: DefaultMaxTokenSize,
		log:     o.logger.With(zap.String("component", "serial.tokenizer")),
		metrics: o.metrics,
	}
	t.delims[defaultDelimiter] = true
	return t
}

// SetDelimiters replaces the delimiter set. With no delimiters every token
// ends in a TokenLengthError. Any partial token is discarded.
func (t *Tokenizer) SetDelimiters(delims ...byte) {
	t.delims = [256]bool{}
	for _, d := range delims {
		t.delims[d] = true
	}
	t.gen++
}

// SetDelimiterString uses every byte of s as a delimiter.
func (t *Tokenizer) SetDelimiterString(s string) {
	t.SetDelimiters([]byte(s)...)
}

// Delimiters returns the delimiter set in ascending byte order.
func (t *Tokenizer) Delimiters() []byte {
	var out []byte
	for i, ok := range t.delims {
		if ok {
			out = append(out, byte(i))
		}
	}
	return out
}

// SetMaxTokenSize sets the longest token Poll will return. Any partial token
// is discarded.
func (t *Tokenizer) SetMaxTokenSize(n int) error {
	if n < 1 {
		return ErrInvalidTokenSize
	}
	t.maxSize = n
	t.gen++
	return nil
}

// MaxTokenSize returns the configured maximum token length.
func (t *Tokenizer) MaxTokenSize() int { return t.maxSize }

// Poll pops bytes until the queue is empty, a delimiter arrives or the token
// grows past the maximum size. It never blocks. On TokenReturned the token is
// appended to dst[:0] and returned; otherwise dst[:0] is returned.
func (t *Tokenizer) Poll(st *State, dst []byte) ([]byte, Result) {
	dst = dst[:0]
	if st.gen != t.gen {
		st.Reset()
		st.gen = t.gen
	}
	if cap(st.buf) == 0 {
		st.buf = make([]byte, 0, min(t.maxSize, 256))
	}

	for {
		b, ok := t.q.TryPop()
		if !ok {
			return dst, NoTokenAvailable
		}
		if t.delims[b] {
			dst = append(dst, st.buf...)
			st.Reset()
			t.metrics.token()
			return dst, TokenReturned
		}
		if len(st.buf) >= t.maxSize {
			t.log.Debug("token exceeds maximum size, buffer reset", zap.Int("max", t.maxSize))
			st.Reset()
			t.metrics.lengthError()
			return dst, TokenLengthError
		}
		st.buf = append(st.buf, b)
	}
}

// PollLoop polls on every tick of interval until ctx is done, handing each
// token to onToken and reporting ErrTokenTooLong to onError. All tokens
// already queued are drained on each tick. The slice passed to onToken is
// reused between calls. PollLoop returns ctx.Err().
func (t *Tokenizer) PollLoop(ctx context.Context, interval time.Duration, onToken func([]byte), onError func(error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		st  State
		buf []byte
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		for {
			var res Result
			buf, res = t.Poll(&st, buf)
			if res == NoTokenAvailable {
				break
			}
			if res == TokenReturned {
				onToken(buf)
			} else if onError != nil {
				onError(ErrTokenTooLong)
			}
		}
	}
}
