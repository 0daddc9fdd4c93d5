package identity

import "errors"

// Domain errors for the identity package, checkable with errors.Is().
var (
	// ErrInvalidKey is returned when key material cannot be decoded.
	ErrInvalidKey = errors.New("identity: invalid key")

	// ErrKeyMismatch is returned when the public key does not belong to the secret key.
	ErrKeyMismatch = errors.New("identity: key mismatch")

	// ErrMissingDeviceID is returned when constructing an identity without a device ID.
	ErrMissingDeviceID = errors.New("identity: device ID required")

	// ErrInvalidNetwork is returned for an unknown network environment.
	ErrInvalidNetwork = errors.New("identity: invalid network")
)
