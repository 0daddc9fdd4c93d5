package auth

import (
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/envelope"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
)

// Authenticator validates inbound command envelopes against the device's
// known metadata.
//
// It is a pure predicate: no side effects, no errors. The dispatch core logs
// a warning on rejection and, deliberately, never replies to an envelope that
// fails authentication — unauthenticated traffic is not acknowledged.
type Authenticator struct {
	// now is injectable for expiry tests.
	now func() time.Time
}

// New creates an Authenticator using the wall clock.
func New() *Authenticator {
	return &Authenticator{now: time.Now}
}

// NewWithClock creates an Authenticator with an injected clock.
func NewWithClock(now func() time.Time) *Authenticator {
	return &Authenticator{now: now}
}

// Validate reports whether the envelope may be dispatched.
//
// Both checks must pass (logical AND, no partial credit):
//   - the command's expiry timestamp is strictly in the future
//   - the signature is valid and the signer's account is authorised by the
//     device metadata (owner or guest ACL)
func (a *Authenticator) Validate(signed *envelope.SignedMessage, cmd *envelope.Command, info *identity.DeviceInfo) bool {
	return a.ValidateExpiry(cmd) && a.CheckAuth(signed, info)
}

// ValidateExpiry reports whether the command has not yet expired.
//
// A zero expiry is treated as already expired; commands must carry an
// explicit deadline.
func (a *Authenticator) ValidateExpiry(cmd *envelope.Command) bool {
	if cmd == nil || cmd.ExpiryTime == 0 {
		return false
	}
	return time.Unix(cmd.ExpiryTime, 0).After(a.now())
}

// CheckAuth reports whether the signed message was produced by an account
// the device metadata authorises.
func (a *Authenticator) CheckAuth(signed *envelope.SignedMessage, info *identity.DeviceInfo) bool {
	if signed == nil || signed.PubKey == "" {
		return false
	}
	if !envelope.VerifySignature(signed) {
		return false
	}
	return info.Authorized(identity.AccountFor(signed.PubKey))
}
