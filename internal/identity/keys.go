package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// KeyPair holds the device's ed25519 key material.
//
// Keys are stored hex-encoded in configuration; the secret key is the
// 32-byte seed, matching the key format the platform issues.
type KeyPair struct {
	PublicKey ed25519.PublicKey
	secretKey ed25519.PrivateKey
}

// ParseKeyPair builds a KeyPair from hex-encoded public and secret keys.
//
// The secret key must be the 32-byte seed; the derived public key is checked
// against the supplied one so a mismatched pair fails fast instead of
// producing signatures the platform rejects.
func ParseKeyPair(publicHex, secretHex string) (KeyPair, error) {
	pub, err := hex.DecodeString(publicHex)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: public key: %w", ErrInvalidKey, err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return KeyPair{}, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(pub))
	}

	seed, err := hex.DecodeString(secretHex)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: secret key: %w", ErrInvalidKey, err)
	}
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, fmt.Errorf("%w: secret key must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	derived := priv.Public().(ed25519.PublicKey)
	if !derived.Equal(ed25519.PublicKey(pub)) {
		return KeyPair{}, fmt.Errorf("%w: public key does not match secret key", ErrKeyMismatch)
	}

	return KeyPair{
		PublicKey: pub,
		secretKey: priv,
	}, nil
}

// PublicKeyHex returns the hex encoding of the public key.
func (k KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(k.PublicKey)
}

// Sign signs the message with the device's secret key.
func (k KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.secretKey, message)
}

// VerifySignature checks an ed25519 signature against a hex-encoded public key.
//
// Used by the authenticator to verify inbound command envelopes; the signer's
// key comes from the envelope itself and is matched against the device's
// access-control list separately.
func VerifySignature(publicHex string, message, sig []byte) bool {
	pub, err := hex.DecodeString(publicHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}

// AccountFor derives the platform account name for a hex-encoded public key.
func AccountFor(publicHex string) string {
	return "k:" + publicHex
}

// New constructs a device Identity from its configuration values.
func New(deviceID string, keys KeyPair, network NetworkID, nodeURL string) (*Identity, error) {
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}
	if !network.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, network)
	}
	return &Identity{
		DeviceID: deviceID,
		Keys:     keys,
		Account:  AccountFor(keys.PublicKeyHex()),
		Network:  network,
		NodeURL:  nodeURL,
	}, nil
}
