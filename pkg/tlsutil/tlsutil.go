// Package tlsutil builds the TLS configuration used to dial wss:// brokers.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// ClientOptions describe how the client verifies the broker and, for
// brokers requiring mutual TLS, which certificate it presents.
type ClientOptions struct {
	// CAFiles are trusted in addition to the system CA bundle.
	CAFiles []string
	// MinVersion is "1.2" (default) or "1.3".
	MinVersion string
	// CertFile and KeyFile hold the client certificate for mutual TLS.
	CertFile string
	KeyFile  string
	// InsecureSkipVerify accepts any broker certificate.
	InsecureSkipVerify bool
}

// IsZero reports whether no option is set.
func (o ClientOptions) IsZero() bool {
	return len(o.CAFiles) == 0 && o.MinVersion == "" && o.CertFile == "" && o.KeyFile == "" && !o.InsecureSkipVerify
}

// LoadClientConfig creates a tls.Config for dialing the broker. It returns
// nil when opts is zero so the dialer keeps Go's defaults.
// The system CA bundle is always trusted; CAFiles are added to it.
func LoadClientConfig(opts ClientOptions) (*tls.Config, error) {
	if opts.IsZero() {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(opts.MinVersion),
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range opts.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("invalid PEM data"),
				"tlsutil",
				"LoadClientConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile),
			)
		}
	}
	tlsConfig.RootCAs = rootCAs

	if opts.CertFile != "" || opts.KeyFile != "" {
		clientCert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	}

	if opts.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true //nolint:gosec // opt-in for self-signed brokers
	}

	return tlsConfig, nil
}

// ValidVersion reports whether version is accepted by LoadClientConfig.
func ValidVersion(version string) bool {
	switch version {
	case "", "1.2", "1.3":
		return true
	}
	return false
}

// parseTLSVersion converts version string to crypto/tls constant
// Returns tls.VersionTLS12 if empty or invalid
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
