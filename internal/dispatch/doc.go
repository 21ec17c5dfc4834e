// Package dispatch routes decoded DayBetter device messages to registered
// callbacks.
//
// Devices publish JSON payloads tagged with an integer "type" field on the
// per-account update topic. The dispatcher decodes a payload, validates the
// type-specific fields and invokes callbacks looked up by a typed composite
// key of device name and attribute. A device-specific callback and a
// general (device-agnostic) callback may both be registered for the same
// attribute; both fire for a matching event.
//
// Malformed payloads are dropped and reported, never retried: device state
// is republished on change, so a lost reading heals itself.
package dispatch
