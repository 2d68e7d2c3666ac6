package serial

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts traffic through a Source and Tokenizer. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RxBytes           prometheus.Counter
	TxBytes           prometheus.Counter
	ReadErrors        prometheus.Counter
	Tokens            prometheus.Counter
	TokenLengthErrors prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RxBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "serial",
			Name:      "rx_bytes_total",
			Help:      "Bytes received from the port and pushed to the byte channel.",
		}),
		TxBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "serial",
			Name:      "tx_bytes_total",
			Help:      "Bytes written to the port.",
		}),
		ReadErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "serial",
			Name:      "read_errors_total",
			Help:      "Failed single-byte reads.",
		}),
		Tokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: "serial",
			Name:      "tokens_total",
			Help:      "Delimited tokens returned by the tokenizer.",
		}),
		TokenLengthErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "serial",
			Name:      "token_length_errors_total",
			Help:      "Tokens discarded for exceeding the maximum size.",
		}),
	}
}

func (m *Metrics) rx() {
	if m != nil {
		m.RxBytes.Inc()
	}
}

func (m *Metrics) tx(n int) {
	if m != nil && n > 0 {
		m.TxBytes.Add(float64(n))
	}
}

func (m *Metrics) readError() {
	if m != nil {
		m.ReadErrors.Inc()
	}
}

func (m *Metrics) token() {
	if m != nil {
		m.Tokens.Inc()
	}
}

func (m *Metrics) lengthError() {
	if m != nil {
		m.TokenLengthErrors.Inc()
	}
}
