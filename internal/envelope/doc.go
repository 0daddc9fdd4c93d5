// Package envelope implements the platform's wire format.
//
// Every exchange is double-encoded: an outer transport object wraps a
// JSON-encoded signed message string, whose device_exec field is itself a
// JSON-encoded command string. The ed25519 signature covers the exact
// device_exec bytes, so the string is kept verbatim between decode and
// verification.
//
// Outbound messages (command replies and telemetry aggregates) are produced
// by MakeCommand, which signs the body with the device key and wraps it in
// the same transport format.
package envelope
