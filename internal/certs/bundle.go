package certs

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Segment framing constants.
const (
	// u8LenSize is the size of a 1-byte length prefix (client ID, broker address).
	u8LenSize = 1

	// u16LenSize is the size of a 2-byte little-endian length prefix (certificates).
	u16LenSize = 2

	// terminatorSize is the trailing terminator byte included in every
	// segment's declared length but excluded from its payload.
	terminatorSize = 1
)

// cleanCutset is the set of bytes stripped from segment edges.
// Only leading/trailing bytes are removed; segments may be binary, so
// interior bytes are never touched.
const cleanCutset = "\x00 \t\n\r\v\f"

// Bundle holds the five decoded segments of a device certificate bundle.
//
// Certificate and key segments are kept as raw bytes: depending on the
// vendor backend they may arrive as PEM text, base64 text, or DER.
// Materialize normalises them when writing to disk.
type Bundle struct {
	// ClientID is the MQTT client identifier assigned to this account.
	ClientID []byte

	// ClientCert is the client certificate segment.
	ClientCert []byte

	// ClientKey is the client private key segment.
	ClientKey []byte

	// CACert is the broker CA certificate segment.
	CACert []byte

	// BrokerAddress is the broker endpoint, typically "host:port".
	// A single leading "/" from the wire form is already stripped.
	BrokerAddress string
}

// Parse decodes a binary certificate bundle.
//
// Segments are consumed sequentially per the wire format described in the
// package documentation. Any declared length that would read past the end
// of the buffer fails the whole parse; no partial bundle is ever returned.
//
// Parameters:
//   - data: Raw bundle bytes as downloaded from the vendor
//
// Returns:
//   - Bundle: All five segments, terminator-trimmed and edge-cleaned
//   - error: ErrInvalidBundle if the buffer is truncated or a segment is empty
func Parse(data []byte) (Bundle, error) {
	r := reader{buf: data}

	clientID, err := r.segmentU8("client id")
	if err != nil {
		return Bundle{}, err
	}

	clientCert, err := r.segmentU16("client certificate")
	if err != nil {
		return Bundle{}, err
	}

	clientKey, err := r.segmentU16("client key")
	if err != nil {
		return Bundle{}, err
	}

	caCert, err := r.segmentU16("ca certificate")
	if err != nil {
		return Bundle{}, err
	}

	broker, err := r.segmentU8("broker address")
	if err != nil {
		return Bundle{}, err
	}

	// Remaining bytes are padding and are discarded.

	return Bundle{
		ClientID:      clientID,
		ClientCert:    clientCert,
		ClientKey:     clientKey,
		CACert:        caCert,
		BrokerAddress: trimBrokerAddress(string(broker)),
	}, nil
}

// Clean strips leading and trailing NUL bytes and whitespace from a
// segment. Interior bytes are preserved. Clean is idempotent.
func Clean(b []byte) []byte {
	start := 0
	for start < len(b) && strings.IndexByte(cleanCutset, b[start]) >= 0 {
		start++
	}
	end := len(b)
	for end > start && strings.IndexByte(cleanCutset, b[end-1]) >= 0 {
		end--
	}
	return b[start:end]
}

// trimBrokerAddress removes a single leading "/" from a decoded broker
// address. The vendor prepends one when the bundle is generated from a URL
// path component.
func trimBrokerAddress(addr string) string {
	return strings.TrimPrefix(addr, "/")
}

// Encode serializes a bundle back to the binary wire format.
//
// Each segment is written with its length prefix and a single NUL
// terminator, matching what Parse consumes. Encode is used to persist a
// parsed bundle in the store and as the reference serializer in tests.
//
// Returns:
//   - []byte: Wire-format bundle
//   - error: ErrInvalidBundle if a segment exceeds its length field's range
func (b Bundle) Encode() ([]byte, error) {
	if len(b.ClientID)+terminatorSize > 0xFF {
		return nil, fmt.Errorf("%w: client id too long (%d bytes)", ErrInvalidBundle, len(b.ClientID))
	}
	if len(b.BrokerAddress)+terminatorSize > 0xFF {
		return nil, fmt.Errorf("%w: broker address too long (%d bytes)", ErrInvalidBundle, len(b.BrokerAddress))
	}
	for _, seg := range [][]byte{b.ClientCert, b.ClientKey, b.CACert} {
		if len(seg)+terminatorSize > 0xFFFF {
			return nil, fmt.Errorf("%w: segment too long (%d bytes)", ErrInvalidBundle, len(seg))
		}
	}

	var out []byte

	out = append(out, byte(len(b.ClientID)+terminatorSize))
	out = append(out, b.ClientID...)
	out = append(out, 0x00)

	for _, seg := range [][]byte{b.ClientCert, b.ClientKey, b.CACert} {
		var lenBuf [u16LenSize]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(seg)+terminatorSize)) //nolint:gosec // bounded above
		out = append(out, lenBuf[:]...)
		out = append(out, seg...)
		out = append(out, 0x00)
	}

	out = append(out, byte(len(b.BrokerAddress)+terminatorSize))
	out = append(out, b.BrokerAddress...)
	out = append(out, 0x00)

	return out, nil
}

// reader walks a bundle buffer, consuming length-prefixed segments.
type reader struct {
	buf []byte
	off int
}

// segmentU8 reads a segment with a 1-byte length prefix.
func (r *reader) segmentU8(name string) ([]byte, error) {
	if r.off+u8LenSize > len(r.buf) {
		return nil, fmt.Errorf("%w: %s length prefix beyond end of buffer (offset %d, size %d)",
			ErrInvalidBundle, name, r.off, len(r.buf))
	}
	declared := int(r.buf[r.off])
	r.off += u8LenSize
	return r.payload(name, declared)
}

// segmentU16 reads a segment with a 2-byte little-endian length prefix.
func (r *reader) segmentU16(name string) ([]byte, error) {
	if r.off+u16LenSize > len(r.buf) {
		return nil, fmt.Errorf("%w: %s length prefix beyond end of buffer (offset %d, size %d)",
			ErrInvalidBundle, name, r.off, len(r.buf))
	}
	declared := int(binary.LittleEndian.Uint16(r.buf[r.off : r.off+u16LenSize]))
	r.off += u16LenSize
	return r.payload(name, declared)
}

// payload consumes declared bytes, drops the trailing terminator and
// cleans the segment edges.
func (r *reader) payload(name string, declared int) ([]byte, error) {
	if declared < terminatorSize {
		return nil, fmt.Errorf("%w: %s declared length %d too short for terminator",
			ErrInvalidBundle, name, declared)
	}
	if r.off+declared > len(r.buf) {
		return nil, fmt.Errorf("%w: %s declared length %d exceeds remaining %d bytes",
			ErrInvalidBundle, name, declared, len(r.buf)-r.off)
	}

	// Last declared byte is a terminator, excluded from the payload.
	seg := r.buf[r.off : r.off+declared-terminatorSize]
	r.off += declared

	out := make([]byte, len(seg))
	copy(out, seg)
	return Clean(out), nil
}
