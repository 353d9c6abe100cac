package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Suhaibinator/SLine/pkg/metrics"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Nil(t, cfg.TLS)
	assert.Equal(t, 5*time.Second, cfg.KeepAlive.Timeout)
	assert.Equal(t, 100*time.Second, cfg.KeepAlive.Max)
	assert.Equal(t, 600*time.Second, cfg.Timeout.Send)
	assert.Equal(t, 600*time.Second, cfg.Timeout.Recv)
	assert.Equal(t, "utf-8", cfg.Encoding)
	assert.Equal(t, "\n", cfg.Delimiter)
	assert.Equal(t, 1<<20, cfg.MaxMessageSize)
}

func TestWithDefaultsMergesEveryLevel(t *testing.T) {
	cfg := Config{
		KeepAlive: KeepAliveConfig{Timeout: time.Second},
		Timeout:   TimeoutConfig{Recv: -1},
		Delimiter: "\r\n",
	}.withDefaults()

	assert.Equal(t, time.Second, cfg.KeepAlive.Timeout)
	assert.Equal(t, DefaultMaxLifetime, cfg.KeepAlive.Max)
	assert.Equal(t, DefaultSendTimeout, cfg.Timeout.Send)
	assert.Equal(t, time.Duration(-1), cfg.Timeout.Recv)
	assert.Equal(t, "\r\n", cfg.Delimiter)
	assert.Equal(t, DefaultEncoding, cfg.Encoding)
	assert.Equal(t, metrics.NopCollector{}, cfg.Metrics)
}

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte(`
tls:
  key: server.key
  cert: server.crt
  caFile: ca.crt
  verifyClient: true
keepAlive:
  timeout: 2500
timeout:
  send: 1000
delimiter: "\r\n"
encoding: latin1
maxMessageSize: 4096
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.TLS)
	assert.Equal(t, TLSConfig{KeyFile: "server.key", CertFile: "server.crt", CAFile: "ca.crt", VerifyClient: true}, *cfg.TLS)
	assert.Equal(t, 2500*time.Millisecond, cfg.KeepAlive.Timeout)
	assert.Zero(t, cfg.KeepAlive.Max)
	assert.Equal(t, time.Second, cfg.Timeout.Send)
	assert.Equal(t, "\r\n", cfg.Delimiter)
	assert.Equal(t, "latin1", cfg.Encoding)
	assert.Equal(t, 4096, cfg.MaxMessageSize)

	// unset options still pick up defaults
	merged := cfg.withDefaults()
	assert.Equal(t, DefaultMaxLifetime, merged.KeepAlive.Max)
	assert.Equal(t, DefaultRecvTimeout, merged.Timeout.Recv)
}

func TestParseConfigYAMLTLSFalse(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte("tls: false\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.TLS)

	cfg, err = ParseConfigYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestParseConfigYAMLErrors(t *testing.T) {
	tests := map[string]string{
		"tls true":        "tls: true\n",
		"tls no cert":     "tls:\n  key: server.key\n",
		"unknown option":  "keepalive:\n  timeout: 1\n",
		"wrong type":      "keepAlive:\n  timeout: soon\n",
		"tls not boolean": "tls: maybe\n",
		"tls unknown key": "tls:\n  key: server.key\n  cert: server.crt\n  verifyclient: true\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfigYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delimiter: \"|\"\n"), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "|", cfg.Delimiter)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
