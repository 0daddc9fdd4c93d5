// Package identity defines the device's platform identity.
//
// An Identity bundles the device ID, ed25519 key pair, derived account name
// ("k:" + hex public key), network environment and node endpoint. It is
// immutable after construction. The platform's mutable per-device metadata
// (owner, guest ACL) lives in DeviceInfo and is replaced wholesale whenever
// the agent refreshes it.
package identity
