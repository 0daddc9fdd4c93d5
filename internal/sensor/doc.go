// Package sensor implements the capability-polymorphic sensor registry.
//
// Each sensor identifier moves through a small state machine:
//
//	absent -> registered-disabled   add with enabled=false (no hardware touched)
//	absent -> registered-enabled    add with enabled=true (instantiation must succeed)
//	enabled -> disabled             disable destroys the instance, keeps the config
//	disabled -> enabled             enable re-instantiates from the stored config
//	registered-* -> absent          remove drops both
//
// Configure is the one transactional path: a failed re-instantiation while
// enabling restores the exact prior configuration and instance. All other
// failures are fail-fast with no state change.
//
// # Capabilities
//
// Drivers come from an injected Factory and expose capabilities as optional
// interfaces (Displayable, Toggleable, Settable) discovered by type
// assertion. Execute maps action verbs onto those interfaces; a verb the
// instance does not support is an error result, never a panic.
//
// # Persistence
//
// Every successful mutation fires the registered SaveFunc asynchronously
// with a full configuration snapshot. Persistence failure is logged and
// never rolls back the in-memory change.
//
// # Thread Safety
//
// The registry is safe for concurrent use; the dispatch core and the
// telemetry publisher share it.
package sensor
