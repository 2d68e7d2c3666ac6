package serial

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the parameters handed to the transport when a port is opened.
// Source does not interpret these values; invalid ones surface as an
// *OpenError from NewSource.
type Config struct {
	Device      string      `yaml:"device" json:"device"`
	BaudRate    int         `yaml:"baud_rate" json:"baud_rate"`
	DataBits    int         `yaml:"data_bits" json:"data_bits"`
	Parity      Parity      `yaml:"parity" json:"parity"`
	StopBits    StopBits    `yaml:"stop_bits" json:"stop_bits"`
	FlowControl FlowControl `yaml:"flow_control" json:"flow_control"`
}

const (
	defaultBaudRate = 115200
	defaultDataBits = 8
)

// DefaultConfig returns 115200 8N1 with no flow control for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:   device,
		BaudRate: defaultBaudRate,
		DataBits: defaultDataBits,
	}
}

// withDefaults fills unset rate and data bits. Enum zero values already
// mean none parity, one stop bit and no flow control.
func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = defaultBaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = defaultDataBits
	}
	return c
}

// LoadConfig reads a YAML port configuration from path. Fields left unset
// take the DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML port configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s %d %d%s%s flow=%s", c.Device, c.BaudRate, c.DataBits, c.Parity.short(), c.StopBits.short(), c.FlowControl)
}

// Parity selects the parity bit mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

func (p Parity) short() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	default:
		return "?"
	}
}

func (p Parity) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Parity) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "none", "n":
		*p = ParityNone
	case "odd", "o":
		*p = ParityOdd
	case "even", "e":
		*p = ParityEven
	default:
		return fmt.Errorf("unknown parity %q: expected none, odd or even", text)
	}
	return nil
}

func (p *Parity) UnmarshalYAML(node *yaml.Node) error {
	return p.UnmarshalText([]byte(node.Value))
}

// StopBits selects the number of stop bits.
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsTwo
)

func (s StopBits) String() string {
	switch s {
	case StopBitsOne:
		return "one"
	case StopBitsTwo:
		return "two"
	default:
		return fmt.Sprintf("StopBits(%d)", int(s))
	}
}

func (s StopBits) short() string {
	switch s {
	case StopBitsOne:
		return "1"
	case StopBitsTwo:
		return "2"
	default:
		return "?"
	}
}

func (s StopBits) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StopBits) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "one", "1":
		*s = StopBitsOne
	case "two", "2":
		*s = StopBitsTwo
	default:
		return fmt.Errorf("unknown stop bits %q: expected one or two", text)
	}
	return nil
}

func (s *StopBits) UnmarshalYAML(node *yaml.Node) error {
	return s.UnmarshalText([]byte(node.Value))
}

// FlowControl selects the flow control signalling.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowSoftware
)

func (f FlowControl) String() string {
	switch f {
	case FlowNone:
		return "none"
	case FlowHardware:
		return "hardware"
	case FlowSoftware:
		return "software"
	default:
		return fmt.Sprintf("FlowControl(%d)", int(f))
	}
}

func (f FlowControl) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FlowControl) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "none":
		*f = FlowNone
	case "hardware", "rtscts":
		*f = FlowHardware
	case "software", "xonxoff":
		*f = FlowSoftware
	default:
		return fmt.Errorf("unknown flow control %q: expected none, hardware or software", text)
	}
	return nil
}

func (f *FlowControl) UnmarshalYAML(node *yaml.Node) error {
	return f.UnmarshalText([]byte(node.Value))
}
