package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Suhaibinator/SLine/pkg/framing"
	"github.com/Suhaibinator/SLine/pkg/metrics"
)

// Default option values.
const (
	DefaultIdleTimeout    = 5 * time.Second
	DefaultMaxLifetime    = 100 * time.Second
	DefaultSendTimeout    = 600 * time.Second
	DefaultRecvTimeout    = 600 * time.Second
	DefaultEncoding       = "utf-8"
	DefaultDelimiter      = framing.DefaultDelimiter
	DefaultMaxMessageSize = framing.DefaultMaxSize
)

// TLSConfig enables TLS on the listener. Key and certificate are PEM file paths.
type TLSConfig struct {
	KeyFile      string `yaml:"key"`          // Private key file. Required.
	CertFile     string `yaml:"cert"`         // Certificate file. Required.
	CAFile       string `yaml:"caFile"`       // CA bundle used to verify client certificates (optional)
	VerifyClient bool   `yaml:"verifyClient"` // Close connections whose client certificate was not verified
}

// KeepAliveConfig bounds how long a connection stays open.
// Zero means use the default; a negative value disables the timer.
type KeepAliveConfig struct {
	Timeout time.Duration // Idle timeout, reset by every received chunk
	Max     time.Duration // Absolute lifetime, never reset
}

// TimeoutConfig bounds individual socket operations.
// Zero means use the default; a negative value disables the deadline.
type TimeoutConfig struct {
	Send time.Duration // Write deadline for each sent line
	Recv time.Duration // Read deadline for each read call
}

// Config defines the configuration of a Server.
// Every zero-valued field falls back to its default, at every nesting level.
type Config struct {
	TLS            *TLSConfig        // TLS options. Nil serves plain TCP.
	KeepAlive      KeepAliveConfig   // Idle and absolute connection timeouts
	Timeout        TimeoutConfig     // Per-operation socket deadlines
	Encoding       string            // Text encoding of the incoming stream (WHATWG label, e.g. "utf-8", "latin1")
	Delimiter      string            // Message delimiter for incoming data
	MaxMessageSize int               // Largest partial message kept while waiting for a delimiter, in bytes
	Logger         *zap.Logger       // Logger for all server operations
	Metrics        metrics.Collector // Receives connection and message events (optional)
}

// DefaultConfig returns the configuration used when no option is set.
func DefaultConfig() Config {
	return Config{
		KeepAlive: KeepAliveConfig{
			Timeout: DefaultIdleTimeout,
			Max:     DefaultMaxLifetime,
		},
		Timeout: TimeoutConfig{
			Send: DefaultSendTimeout,
			Recv: DefaultRecvTimeout,
		},
		Encoding:       DefaultEncoding,
		Delimiter:      DefaultDelimiter,
		MaxMessageSize: DefaultMaxMessageSize,
	}
}

// withDefaults merges c over DefaultConfig. User values win at every level.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.KeepAlive.Timeout == 0 {
		c.KeepAlive.Timeout = d.KeepAlive.Timeout
	}
	if c.KeepAlive.Max == 0 {
		c.KeepAlive.Max = d.KeepAlive.Max
	}
	if c.Timeout.Send == 0 {
		c.Timeout.Send = d.Timeout.Send
	}
	if c.Timeout.Recv == 0 {
		c.Timeout.Recv = d.Timeout.Recv
	}
	if c.Encoding == "" {
		c.Encoding = d.Encoding
	}
	if c.Delimiter == "" {
		c.Delimiter = d.Delimiter
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NopCollector{}
	}
	return c
}

// fileConfig is the YAML form of Config. Durations are milliseconds.
type fileConfig struct {
	TLS       tlsOption `yaml:"tls"`
	KeepAlive struct {
		Timeout int64 `yaml:"timeout"`
		Max     int64 `yaml:"max"`
	} `yaml:"keepAlive"`
	Timeout struct {
		Send int64 `yaml:"send"`
		Recv int64 `yaml:"recv"`
	} `yaml:"timeout"`
	Encoding       string `yaml:"encoding"`
	Delimiter      string `yaml:"delimiter"`
	MaxMessageSize int    `yaml:"maxMessageSize"`
}

// tlsOption accepts either `tls: false` or a mapping of TLS options.
type tlsOption struct {
	config *TLSConfig
}

func (o *tlsOption) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var enabled bool
		if err := value.Decode(&enabled); err != nil {
			return fmt.Errorf("tls: expected false or a mapping: %w", err)
		}
		if enabled {
			return fmt.Errorf("tls: true is not valid; give key and cert")
		}
		o.config = nil
		return nil
	}
	// Node.Decode does not inherit KnownFields, so decode a fresh document.
	raw, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	var cfg TLSConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	o.config = &cfg
	return nil
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ParseConfigYAML parses a YAML configuration document. Unknown keys are an error.
//
//	tls:
//	  key: server.key
//	  cert: server.crt
//	  verifyClient: true
//	keepAlive:
//	  timeout: 5000
//	  max: 100000
//	delimiter: "\r\n"
//
// The returned Config has no Logger or Metrics set.
func ParseConfigYAML(data []byte) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg := Config{
		TLS: fc.TLS.config,
		KeepAlive: KeepAliveConfig{
			Timeout: millis(fc.KeepAlive.Timeout),
			Max:     millis(fc.KeepAlive.Max),
		},
		Timeout: TimeoutConfig{
			Send: millis(fc.Timeout.Send),
			Recv: millis(fc.Timeout.Recv),
		},
		Encoding:       fc.Encoding,
		Delimiter:      fc.Delimiter,
		MaxMessageSize: fc.MaxMessageSize,
	}
	if cfg.TLS != nil && (cfg.TLS.KeyFile == "" || cfg.TLS.CertFile == "") {
		return Config{}, fmt.Errorf("parse config: tls requires key and cert")
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a YAML configuration file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfigYAML(data)
}
