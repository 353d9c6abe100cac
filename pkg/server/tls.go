package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// loadTLSConfig builds the listener TLS configuration from cfg.
//
// With VerifyClient set the handshake requests a client certificate and verifies it when
// given, but does not fail without one; the connection is closed afterwards by the
// authorization check so the rejection is logged and counted.
func loadTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file %s: %w", cfg.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("parse CA certificate from %s: invalid PEM data", cfg.CAFile)
		}
		tlsConfig.ClientCAs = pool
	}

	if cfg.VerifyClient {
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}

	return tlsConfig, nil
}

// authorized reports whether a completed handshake verified the client certificate.
func authorized(state tls.ConnectionState) bool {
	return len(state.VerifiedChains) > 0
}
