// Package tlsutil builds client TLS configuration for the hub's HTTPS and NATS endpoints.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/c360/datahub/errors"
)

// ClientConfig describes how to trust the hub and optionally present a
// client certificate
type ClientConfig struct {
	// CAFiles are trusted in addition to the system pool
	CAFiles []string
	// CertFile and KeyFile enable mutual TLS when both are set
	CertFile string
	KeyFile  string
	// InsecureSkipVerify accepts the hub's self-signed certificate
	InsecureSkipVerify bool
	// MinVersion is "1.2" (default) or "1.3"
	MinVersion string
}

// LoadClientTLSConfig creates a tls.Config from cfg. The system CA bundle
// is always the base pool.
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(fmt.Errorf("invalid PEM data"),
				"tlsutil", "LoadClientTLSConfig", fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}
	tlsConfig.RootCAs = rootCAs

	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	case cfg.CertFile != "" || cfg.KeyFile != "":
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "tlsutil", "LoadClientTLSConfig",
			"client certificate needs both cert_file and key_file")
	}

	// Operators opt in through configuration; hub appliances ship self-signed certificates.
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}
	return tlsConfig, nil
}

// HTTPClient returns an http.Client using tlsConfig for every request
func HTTPClient(tlsConfig *tls.Config, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &http.Client{Transport: transport, Timeout: timeout}
}

// parseTLSVersion returns tls.VersionTLS12 if empty or invalid
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
