package envelope

import "errors"

// Sentinel errors for envelope encoding and decoding.
var (
	// ErrDecode is returned when a transport payload cannot be unwrapped.
	ErrDecode = errors.New("envelope: decode failed")

	// ErrEncode is returned when an outbound body cannot be encoded.
	ErrEncode = errors.New("envelope: encode failed")
)
