package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"
)

// selfSignedPEM generates a throwaway self-signed certificate and key.
func selfSignedPEM(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "daybetter-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IsCA:         true,
		KeyUsage:     x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestTLSConfig(t *testing.T) {
	certPEM, keyPEM := selfSignedPEM(t)

	bundle := Bundle{
		ClientID:      []byte("dbclient01"),
		ClientCert:    certPEM,
		ClientKey:     keyPEM,
		CACert:        certPEM,
		BrokerAddress: "broker.daybetter.com:8883",
	}

	fs, err := Materialize(bundle, t.TempDir())
	if err != nil {
		t.Fatalf("Materialize() unexpected error: %v", err)
	}

	cfg, err := TLSConfig(fs)
	if err != nil {
		t.Fatalf("TLSConfig() unexpected error: %v", err)
	}

	if len(cfg.Certificates) != 1 {
		t.Errorf("Certificates count = %d, want 1", len(cfg.Certificates))
	}
	if cfg.RootCAs == nil {
		t.Error("RootCAs not set")
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %#x, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.InsecureSkipVerify {
		t.Error("server verification must not be disabled")
	}
}

func TestTLSConfig_MissingKeyFile(t *testing.T) {
	certPEM, keyPEM := selfSignedPEM(t)

	bundle := Bundle{
		ClientID:      []byte("dbclient01"),
		ClientCert:    certPEM,
		ClientKey:     keyPEM,
		CACert:        certPEM,
		BrokerAddress: "h:1",
	}

	fs, err := Materialize(bundle, t.TempDir())
	if err != nil {
		t.Fatalf("Materialize() unexpected error: %v", err)
	}

	if err := os.Remove(fs.ClientKey); err != nil {
		t.Fatalf("removing key: %v", err)
	}

	_, err = TLSConfig(fs)
	if !errors.Is(err, ErrTLSContext) {
		t.Errorf("TLSConfig() error = %v, want ErrTLSContext", err)
	}
}

func TestTLSConfig_GarbageCA(t *testing.T) {
	certPEM, keyPEM := selfSignedPEM(t)

	bundle := Bundle{
		ClientID:      []byte("dbclient01"),
		ClientCert:    certPEM,
		ClientKey:     keyPEM,
		CACert:        []byte("not a certificate"),
		BrokerAddress: "h:1",
	}

	fs, err := Materialize(bundle, t.TempDir())
	if err != nil {
		t.Fatalf("Materialize() unexpected error: %v", err)
	}

	_, err = TLSConfig(fs)
	if !errors.Is(err, ErrTLSContext) {
		t.Errorf("TLSConfig() error = %v, want ErrTLSContext", err)
	}
}
