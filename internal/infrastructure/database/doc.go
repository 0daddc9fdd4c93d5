// Package database opens and manages the agent's local SQLite database.
//
// The database holds the telemetry history consulted by the status CLI.
// SQLite is configured with WAL mode and a busy timeout; the connection pool
// is capped at one writer, which matches SQLite's locking model.
package database
