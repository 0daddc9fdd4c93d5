// Package logging provides the structured logger used across the agent.
//
// It is a thin wrapper over log/slog that applies the configured level,
// format and output, and stamps every record with the service name and
// version. Packages that need logging accept a minimal Logger interface and
// default to a no-op implementation so they stay independently testable.
package logging
