// Package telemetry runs the periodic sensor publish loop and keeps a
// local history of published readings in SQLite, with optional mirroring
// of numeric fields to InfluxDB.
//
// The loop wakes every second and publishes when a full interval has
// elapsed, so cancellation is observed within a second regardless of the
// interval length.
package telemetry
