package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/envelope"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
)

var testClock = func() time.Time {
	return time.Unix(1_700_000_000, 0)
}

func testKeys(t *testing.T) identity.KeyPair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	keys, err := identity.ParseKeyPair(hex.EncodeToString(pub), hex.EncodeToString(priv.Seed()))
	if err != nil {
		t.Fatal(err)
	}
	return keys
}

// signedCommand builds a decoded envelope signed by keys with the given expiry.
func signedCommand(t *testing.T, keys identity.KeyPair, expiry int64) (*envelope.SignedMessage, *envelope.Command) {
	t.Helper()
	payload, err := envelope.MakeCommand(map[string]any{"expiry_time": expiry}, keys)
	if err != nil {
		t.Fatal(err)
	}
	signed, cmd, err := envelope.Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	return signed, cmd
}

func TestValidateExpiry(t *testing.T) {
	a := NewWithClock(testClock)
	now := testClock().Unix()

	tests := []struct {
		name   string
		expiry int64
		want   bool
	}{
		{"future", now + 60, true},
		{"past", now - 60, false},
		{"exactly now", now, false},
		{"zero means expired", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &envelope.Command{ExpiryTime: tt.expiry}
			if got := a.ValidateExpiry(cmd); got != tt.want {
				t.Errorf("ValidateExpiry(%d) = %v, want %v", tt.expiry, got, tt.want)
			}
		})
	}

	if a.ValidateExpiry(nil) {
		t.Error("nil command must be rejected")
	}
}

func TestCheckAuth(t *testing.T) {
	a := NewWithClock(testClock)
	ownerKeys := testKeys(t)
	guestKeys := testKeys(t)
	strangerKeys := testKeys(t)

	info := &identity.DeviceInfo{
		DeviceID: "dev-1",
		Owner:    identity.AccountFor(ownerKeys.PublicKeyHex()),
		Guests:   []string{identity.AccountFor(guestKeys.PublicKeyHex())},
	}

	expiry := testClock().Unix() + 60

	ownerSigned, _ := signedCommand(t, ownerKeys, expiry)
	if !a.CheckAuth(ownerSigned, info) {
		t.Error("owner signature must pass")
	}

	guestSigned, _ := signedCommand(t, guestKeys, expiry)
	if !a.CheckAuth(guestSigned, info) {
		t.Error("guest signature must pass")
	}

	strangerSigned, _ := signedCommand(t, strangerKeys, expiry)
	if a.CheckAuth(strangerSigned, info) {
		t.Error("unauthorised signer must fail even with a valid signature")
	}

	// Valid signer claiming to be the owner: signature check must catch the
	// forged pubkey/sig pairing.
	forged, _ := signedCommand(t, strangerKeys, expiry)
	forged.PubKey = ownerKeys.PublicKeyHex()
	if a.CheckAuth(forged, info) {
		t.Error("forged pubkey must fail signature verification")
	}

	if a.CheckAuth(nil, info) {
		t.Error("nil message must fail")
	}
	if a.CheckAuth(ownerSigned, nil) {
		t.Error("missing device metadata must fail")
	}
}

func TestValidate_BothGatesRequired(t *testing.T) {
	a := NewWithClock(testClock)
	ownerKeys := testKeys(t)
	info := &identity.DeviceInfo{
		Owner: identity.AccountFor(ownerKeys.PublicKeyHex()),
	}

	// Valid signature, expired command: rejected.
	signed, cmd := signedCommand(t, ownerKeys, testClock().Unix()-1)
	if a.Validate(signed, cmd, info) {
		t.Error("expired command must be rejected regardless of signature")
	}

	// Fresh command, valid signature: accepted.
	signed, cmd = signedCommand(t, ownerKeys, testClock().Unix()+60)
	if !a.Validate(signed, cmd, info) {
		t.Error("fresh authorised command must pass")
	}

	// Fresh command, unauthorised signer: rejected.
	strangerSigned, strangerCmd := signedCommand(t, testKeys(t), testClock().Unix()+60)
	if a.Validate(strangerSigned, strangerCmd, info) {
		t.Error("unauthorised signer must be rejected")
	}
}
