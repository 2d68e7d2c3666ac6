package serial

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestTokenizer(t *testing.T, delims string, maxSize int) (*ByteChannel, *Tokenizer) {
	t.Helper()
	ch := NewByteChannel()
	tok := NewTokenizer(ch)
	tok.SetDelimiterString(delims)
	require.NoError(t, tok.SetMaxTokenSize(maxSize))
	return ch, tok
}

func TestTokenizer_Defaults(t *testing.T) {
	ch := NewByteChannel()
	tok := NewTokenizer(ch)
	assert.Equal(t, []byte{' '}, tok.Delimiters())
	assert.Equal(t, DefaultMaxTokenSize, tok.MaxTokenSize())

	ch.PushBytes([]byte("hello world"))
	var st State
	out, res := tok.Poll(&st, nil)
	require.Equal(t, TokenReturned, res)
	assert.Equal(t, "hello", string(out))

	out, res = tok.Poll(&st, out)
	assert.Equal(t, NoTokenAvailable, res)
	assert.Empty(t, out)
	assert.Equal(t, 5, st.Len())
}

func TestTokenizer_Split(t *testing.T) {
	ch, tok := newTestTokenizer(t, ";", 32)
	ch.PushBytes([]byte("Hello World 0;"))

	var st State
	out, res := tok.Poll(&st, nil)
	require.Equal(t, TokenReturned, res)
	assert.Equal(t, "Hello World 0", string(out))
	assert.Zero(t, st.Len())
}

func TestTokenizer_PartialAcrossPolls(t *testing.T) {
	ch, tok := newTestTokenizer(t, ";", 32)
	var st State

	ch.PushBytes([]byte("AB"))
	out, res := tok.Poll(&st, nil)
	require.Equal(t, NoTokenAvailable, res)
	assert.Empty(t, out)
	assert.Equal(t, 2, st.Len())

	ch.PushBytes([]byte("C;"))
	out, res = tok.Poll(&st, out)
	require.Equal(t, TokenReturned, res)
	assert.Equal(t, "ABC", string(out))
}

func TestTokenizer_OverflowRecovery(t *testing.T) {
	ch, tok := newTestTokenizer(t, ";", 4)
	var st State

	ch.PushBytes([]byte("12345"))
	out, res := tok.Poll(&st, nil)
	require.Equal(t, TokenLengthError, res)
	assert.Empty(t, out)
	assert.Zero(t, st.Len())
	assert.Zero(t, ch.Len(), "overflowing byte is consumed")

	ch.PushBytes([]byte("ok;"))
	out, res = tok.Poll(&st, out)
	require.Equal(t, TokenReturned, res)
	assert.Equal(t, "ok", string(out))
}

func TestTokenizer_MaxSizeTokenFits(t *testing.T) {
	ch, tok := newTestTokenizer(t, ";", 4)
	ch.PushBytes([]byte("1234;"))

	var st State
	out, res := tok.Poll(&st, nil)
	require.Equal(t, TokenReturned, res)
	assert.Equal(t, "1234", string(out))
}

func TestTokenizer_OverflowResumesMidStream(t *testing.T) {
	ch, tok := newTestTokenizer(t, ";", 3)
	ch.PushBytes([]byte("abcdef;xy;"))

	var st State
	out, res := tok.Poll(&st, nil)
	require.Equal(t, TokenLengthError, res)

	// "d" triggered the overflow; accumulation restarts at "e"
	out, res = tok.Poll(&st, out)
	require.Equal(t, TokenReturned, res)
	assert.Equal(t, "ef", string(out))

	out, res = tok.Poll(&st, out)
	require.Equal(t, TokenReturned, res)
	assert.Equal(t, "xy", string(out))
}

func TestTokenizer_EmptyTokens(t *testing.T) {
	ch, tok := newTestTokenizer(t, ";", 8)
	ch.PushBytes([]byte(";;ab;"))

	var st State
	out, res := tok.Poll(&st, []byte("stale"))
	require.Equal(t, TokenReturned, res)
	assert.Len(t, out, 0)

	out, res = tok.Poll(&st, out)
	require.Equal(t, TokenReturned, res)
	assert.Len(t, out, 0)

	out, res = tok.Poll(&st, out)
	require.Equal(t, TokenReturned, res)
	assert.Equal(t, "ab", string(out))

	_, res = tok.Poll(&st, out)
	assert.Equal(t, NoTokenAvailable, res)
}

func TestTokenizer_MultipleDelimiters(t *testing.T) {
	ch, tok := newTestTokenizer(t, "\r\n", 16)
	assert.Equal(t, []byte{'\n', '\r'}, tok.Delimiters())
	ch.PushBytes([]byte("one\r\ntwo\n"))

	var (
		st     State
		out    []byte
		res    Result
		tokens []string
	)
	for {
		out, res = tok.Poll(&st, out)
		if res == NoTokenAvailable {
			break
		}
		require.Equal(t, TokenReturned, res)
		tokens = append(tokens, string(out))
	}
	assert.Equal(t, []string{"one", "", "two"}, tokens)
}

func TestTokenizer_ReconfigureClearsPartialToken(t *testing.T) {
	tests := []struct {
		name   string
		change func(*Tokenizer) error
	}{
		{
			name:   "delimiters",
			change: func(tok *Tokenizer) error { tok.SetDelimiters(';', ','); return nil },
		},
		{
			name:   "max size",
			change: func(tok *Tokenizer) error { return tok.SetMaxTokenSize(64) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, tok := newTestTokenizer(t, ";", 16)
			var st State

			ch.PushBytes([]byte("lost"))
			_, res := tok.Poll(&st, nil)
			require.Equal(t, NoTokenAvailable, res)
			require.Equal(t, 4, st.Len())

			require.NoError(t, tt.change(tok))

			ch.PushBytes([]byte("kept;"))
			out, res := tok.Poll(&st, nil)
			require.Equal(t, TokenReturned, res)
			assert.Equal(t, "kept", string(out))
		})
	}
}

func TestTokenizer_InvalidMaxSize(t *testing.T) {
	tok := NewTokenizer(NewByteChannel())
	assert.ErrorIs(t, tok.SetMaxTokenSize(0), ErrInvalidTokenSize)
	assert.ErrorIs(t, tok.SetMaxTokenSize(-3), ErrInvalidTokenSize)
	assert.Equal(t, DefaultMaxTokenSize, tok.MaxTokenSize())
}

func TestTokenizer_NoDelimiters(t *testing.T) {
	ch := NewByteChannel()
	tok := NewTokenizer(ch)
	tok.SetDelimiters()
	require.NoError(t, tok.SetMaxTokenSize(2))
	assert.Empty(t, tok.Delimiters())

	ch.PushBytes([]byte("   "))
	var st State
	_, res := tok.Poll(&st, nil)
	assert.Equal(t, TokenLengthError, res)
}

func TestTokenizer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ch := NewByteChannel()
	tok := NewTokenizer(ch, WithMetrics(m))
	tok.SetDelimiterString(";")
	require.NoError(t, tok.SetMaxTokenSize(2))

	ch.PushBytes([]byte("a;b;toolong;"))
	var st State
	var out []byte
	for {
		var res Result
		out, res = tok.Poll(&st, out)
		if res == NoTokenAvailable {
			break
		}
	}
	// "too" overflows at the second "o", "lon" at the "n", leaving "g"
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Tokens))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokenLengthErrors))
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "token returned", TokenReturned.String())
	assert.Equal(t, "no token available", NoTokenAvailable.String())
	assert.Equal(t, "token length error", TokenLengthError.String())
	assert.Equal(t, "unknown result", Result(42).String())
}

// tokenizeModel is the straightforward batch definition of tokenization.
func tokenizeModel(data []byte, delims []byte, maxSize int) (tokens []string, lengthErrors int) {
	var cur []byte
	for _, b := range data {
		if bytes.IndexByte(delims, b) >= 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
			continue
		}
		if len(cur) == maxSize {
			cur = cur[:0]
			lengthErrors++
			continue
		}
		cur = append(cur, b)
	}
	return tokens, lengthErrors
}

// Splitting the input across polls at arbitrary points never changes the
// token stream.
func TestTokenizer_ArbitrarySplitsMatchModel(t *testing.T) {
	alphabet := []byte("ab;,")
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.SampledFrom(alphabet), 0, 200).Draw(t, "data")
		maxSize := rapid.IntRange(1, 8).Draw(t, "max")
		chunks := rapid.SliceOfN(rapid.IntRange(1, 10), 1, 50).Draw(t, "chunks")

		ch := NewByteChannel()
		tok := NewTokenizer(ch)
		tok.SetDelimiterString(";,")
		if err := tok.SetMaxTokenSize(maxSize); err != nil {
			t.Fatal(err)
		}

		var (
			st        State
			out       []byte
			tokens    []string
			lengthErr int
		)
		poll := func() {
			for {
				var res Result
				out, res = tok.Poll(&st, out)
				switch res {
				case NoTokenAvailable:
					return
				case TokenReturned:
					tokens = append(tokens, string(out))
				case TokenLengthError:
					lengthErr++
				}
			}
		}
		rest := data
		for i := 0; len(rest) > 0; i++ {
			n := min(chunks[i%len(chunks)], len(rest))
			ch.PushBytes(rest[:n])
			rest = rest[n:]
			poll()
		}
		poll()

		wantTokens, wantErrs := tokenizeModel(data, []byte(";,"), maxSize)
		assert.Equal(t, wantTokens, tokens)
		assert.Equal(t, wantErrs, lengthErr)
	})
}

func TestTokenizer_PollLoop(t *testing.T) {
	ch, tok := newTestTokenizer(t, ";", 3)

	var (
		mu     sync.Mutex
		tokens []string
		errs   []error
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- tok.PollLoop(ctx, time.Millisecond,
			func(tok []byte) {
				mu.Lock()
				tokens = append(tokens, string(tok))
				mu.Unlock()
			},
			func(err error) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			},
		)
	}()

	ch.PushBytes([]byte("ab;"))
	ch.PushBytes([]byte("wxyz;cd;"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(tokens) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-loopErr:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for PollLoop to return")
	}

	mu.Lock()
	defer mu.Unlock()
	// "z" overflowed, leaving an empty token before "cd"
	assert.Equal(t, []string{"ab", "", "cd"}, tokens)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrTokenTooLong)
}
