package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// tlsMinVersion disables TLS 1.0/1.1; the vendor brokers speak 1.2.
const tlsMinVersion = tls.VersionTLS12

// TLSConfig builds a TLS client configuration from a materialized file set.
//
// The configuration requires server certificate verification against the
// bundled vendor CA (rather than the system pool, since the broker
// certificates are vendor-issued) and presents the client keypair for
// mutual authentication.
//
// Parameters:
//   - fs: File set returned by Materialize or LookupFileSet
//
// Returns:
//   - *tls.Config: Ready for the MQTT dialer
//   - error: ErrTLSContext if any file is missing or unparseable; the
//     caller must treat this as fatal for the connection attempt
func TLSConfig(fs FileSet) (*tls.Config, error) {
	keypair, err := tls.LoadX509KeyPair(fs.ClientCert, fs.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("%w: loading client keypair: %w", ErrTLSContext, err)
	}

	caData, err := os.ReadFile(fs.CACert)
	if err != nil {
		return nil, fmt.Errorf("%w: reading CA certificate: %w", ErrTLSContext, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("%w: no usable CA certificate in %s", ErrTLSContext, fs.CACert)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{keypair},
		RootCAs:      pool,
		MinVersion:   tlsMinVersion,
	}, nil
}
