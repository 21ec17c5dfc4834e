package certs

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Credential file names within a materialized directory.
const (
	FileClientID      = "client_id.txt"
	FileClientCert    = "client_cert.crt"
	FileClientKey     = "client_key.key"
	FileCACert        = "ca_cert.crt"
	FileBrokerAddress = "broker_address.txt"
)

// File permission modes for materialized credentials.
const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// pemBeginMarker identifies content that already carries a PEM envelope.
const pemBeginMarker = "-----BEGIN"

// FileSet maps each bundle segment to its file on disk.
type FileSet struct {
	ClientID      string
	ClientCert    string
	ClientKey     string
	CACert        string
	BrokerAddress string
}

// fileSetIn returns the canonical file set for a directory.
func fileSetIn(dir string) FileSet {
	return FileSet{
		ClientID:      filepath.Join(dir, FileClientID),
		ClientCert:    filepath.Join(dir, FileClientCert),
		ClientKey:     filepath.Join(dir, FileClientKey),
		CACert:        filepath.Join(dir, FileCACert),
		BrokerAddress: filepath.Join(dir, FileBrokerAddress),
	}
}

// paths returns all five file paths.
func (fs FileSet) paths() []string {
	return []string{fs.ClientID, fs.ClientCert, fs.ClientKey, fs.CACert, fs.BrokerAddress}
}

// LookupFileSet returns the file set for dir if all five credential files
// exist. The set is all-or-nothing: a single missing file yields
// ErrFilesIncomplete, and the caller should re-materialize from a bundle.
func LookupFileSet(dir string) (FileSet, error) {
	fs := fileSetIn(dir)
	for _, p := range fs.paths() {
		if _, err := os.Stat(p); err != nil {
			return FileSet{}, fmt.Errorf("%w: missing %s", ErrFilesIncomplete, filepath.Base(p))
		}
	}
	return fs, nil
}

// ReadClientID reads the materialized client ID.
func (fs FileSet) ReadClientID() (string, error) {
	return readTrimmed(fs.ClientID)
}

// ReadBrokerAddress reads the materialized broker address.
func (fs FileSet) ReadBrokerAddress() (string, error) {
	addr, err := readTrimmed(fs.BrokerAddress)
	if err != nil {
		return "", err
	}
	return trimBrokerAddress(addr), nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Materialize writes a bundle's segments to individual files in dir.
//
// If dir is empty a fresh temporary directory is created. Certificate and
// key segments are normalised to PEM where possible (see writeCertFile);
// the client ID and broker address are written as plain text. A failed
// write fails the whole call; already-written files are not rolled back.
//
// Parameters:
//   - bundle: Parsed certificate bundle
//   - dir: Destination directory, created if absent ("" for a temp dir)
//
// Returns:
//   - FileSet: Paths of the five written files
//   - error: ErrMaterializeFailed wrapping the first write failure
func Materialize(bundle Bundle, dir string) (FileSet, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "daybetter-certs-")
		if err != nil {
			return FileSet{}, fmt.Errorf("%w: creating temp dir: %w", ErrMaterializeFailed, err)
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return FileSet{}, fmt.Errorf("%w: creating %s: %w", ErrMaterializeFailed, dir, err)
	}

	fs := fileSetIn(dir)

	if err := writeFile(fs.ClientID, bundle.ClientID); err != nil {
		return FileSet{}, err
	}
	if err := writeCertFile(fs.ClientCert, bundle.ClientCert, "CERTIFICATE"); err != nil {
		return FileSet{}, err
	}
	if err := writeCertFile(fs.ClientKey, bundle.ClientKey, keyPEMType(bundle.ClientKey)); err != nil {
		return FileSet{}, err
	}
	if err := writeCertFile(fs.CACert, bundle.CACert, "CERTIFICATE"); err != nil {
		return FileSet{}, err
	}
	// Leading "/" is stripped again here in case the bundle was built by
	// hand rather than through Parse.
	if err := writeFile(fs.BrokerAddress, []byte(trimBrokerAddress(bundle.BrokerAddress))); err != nil {
		return FileSet{}, err
	}

	return fs, nil
}

// writeCertFile writes a certificate or key segment, normalising to PEM.
//
// Policy per segment:
//  1. Attempt base64 decoding; on failure keep the raw bytes.
//  2. If the (possibly decoded) bytes are valid UTF-8 and lack a PEM
//     BEGIN marker, wrap them in a PEM envelope of the given type.
//  3. If the bytes are not valid UTF-8, treat them as binary PEM/DER
//     material and write unchanged.
func writeCertFile(path string, segment []byte, pemType string) error {
	data := segment
	if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(segment))); err == nil {
		data = decoded
	}

	if utf8.Valid(data) {
		text := strings.TrimSpace(string(data))
		if !strings.Contains(text, pemBeginMarker) {
			text = fmt.Sprintf("-----BEGIN %s-----\n%s\n-----END %s-----\n", pemType, text, pemType)
		}
		return writeFile(path, []byte(text))
	}

	return writeFile(path, data)
}

// keyPEMType picks the PEM block type for a private key segment: keys
// mentioning RSA get the PKCS#1 label, everything else the PKCS#8 one.
func keyPEMType(segment []byte) string {
	decoded := segment
	if d, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(segment))); err == nil {
		decoded = d
	}
	if utf8.Valid(decoded) && strings.Contains(string(decoded), "RSA") {
		return "RSA PRIVATE KEY"
	}
	return "PRIVATE KEY"
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrMaterializeFailed, filepath.Base(path), err)
	}
	return nil
}
