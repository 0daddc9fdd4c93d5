// Package auth gates inbound command envelopes.
//
// Validation is two independent checks combined with a logical AND: the
// command's expiry must be strictly in the future, and the envelope's
// signature must verify against a signer account the device's metadata
// authorises. Rejection is a boolean, never an error — the caller logs and
// drops the envelope without replying.
package auth
