// Package platform is the HTTP client for a node's device registry:
// device records (owner, guests, status) and automation rules. Lookups are
// signed with the device key and bounded by a per-request timeout.
package platform
