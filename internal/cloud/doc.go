// Package cloud implements the DayBetter vendor API client.
//
// The bridge talks to the cloud twice during certificate acquisition:
//
//  1. POST to the MQTT config endpoint with the account token, which
//     returns a JSON envelope containing a short-lived deviceCertUrl.
//  2. GET that URL for the raw binary certificate bundle.
//
// Everything else (device state, commands) flows over MQTT once the
// connection is established; the HTTP surface is deliberately small.
package cloud
