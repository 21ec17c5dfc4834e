// Package certs handles the DayBetter device certificate bundle.
//
// The vendor distributes per-account MQTT credentials as a single binary
// blob downloaded over HTTPS. This package decodes that blob, writes the
// individual credential files to disk, and assembles a TLS client
// configuration from them.
//
// # Bundle wire format
//
// The blob is a length-prefixed container with five segments, consumed
// sequentially from offset 0:
//
//	Byte 0:    client ID length L1 (uint8)
//	Bytes 1+:  L1 bytes, last byte is a terminator (excluded from output)
//	           2-byte little-endian length, then payload (terminator-trimmed),
//	           three times: client certificate, client key, CA certificate
//	Byte n:    broker address length (uint8), then payload (terminator-trimmed)
//	Rest:      unparsed padding, discarded
//
// The format carries no version byte and no checksum. A vendor-side layout
// change would be misread rather than rejected; Parse only guards against
// truncation.
//
// # Usage
//
//	bundle, err := certs.Parse(raw)
//	if err != nil { ... }
//	files, err := certs.Materialize(bundle, dir)
//	if err != nil { ... }
//	tlsCfg, err := certs.TLSConfig(files)
package certs
