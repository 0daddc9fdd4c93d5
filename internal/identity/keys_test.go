package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func generateKeys(t *testing.T) (publicHex, secretHex string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating keys: %v", err)
	}
	return hex.EncodeToString(pub), hex.EncodeToString(priv.Seed())
}

func TestParseKeyPair(t *testing.T) {
	publicHex, secretHex := generateKeys(t)

	keys, err := ParseKeyPair(publicHex, secretHex)
	if err != nil {
		t.Fatalf("ParseKeyPair failed: %v", err)
	}
	if keys.PublicKeyHex() != publicHex {
		t.Errorf("public key mismatch: %s", keys.PublicKeyHex())
	}

	msg := []byte(`{"expiry_time":123}`)
	sig := keys.Sign(msg)
	if !VerifySignature(publicHex, msg, sig) {
		t.Error("signature from parsed pair must verify")
	}
	if VerifySignature(publicHex, []byte("tampered"), sig) {
		t.Error("signature must not verify for different message")
	}
}

func TestParseKeyPair_Errors(t *testing.T) {
	publicHex, secretHex := generateKeys(t)
	otherPublic, _ := generateKeys(t)

	tests := []struct {
		name      string
		publicHex string
		secretHex string
		want      error
	}{
		{"bad public hex", "zz", secretHex, ErrInvalidKey},
		{"bad secret hex", publicHex, "zz", ErrInvalidKey},
		{"short public", "abcd", secretHex, ErrInvalidKey},
		{"short secret", publicHex, "abcd", ErrInvalidKey},
		{"mismatched pair", otherPublic, secretHex, ErrKeyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseKeyPair(tt.publicHex, tt.secretHex); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestVerifySignature_BadKey(t *testing.T) {
	if VerifySignature("not-hex", []byte("x"), []byte("y")) {
		t.Error("invalid key hex must not verify")
	}
	if VerifySignature("abcd", []byte("x"), []byte("y")) {
		t.Error("wrong-length key must not verify")
	}
}

func TestAccountFor(t *testing.T) {
	publicHex, _ := generateKeys(t)
	account := AccountFor(publicHex)
	if !strings.HasPrefix(account, "k:") || account[2:] != publicHex {
		t.Errorf("unexpected account: %s", account)
	}
}

func TestNew(t *testing.T) {
	publicHex, secretHex := generateKeys(t)
	keys, err := ParseKeyPair(publicHex, secretHex)
	if err != nil {
		t.Fatal(err)
	}

	id, err := New("dev-1", keys, NetworkMainnet, "https://node.cyberfly.io")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if id.Account != "k:"+publicHex {
		t.Errorf("account not derived from public key: %s", id.Account)
	}

	if _, err := New("", keys, NetworkMainnet, ""); !errors.Is(err, ErrMissingDeviceID) {
		t.Errorf("expected ErrMissingDeviceID, got %v", err)
	}
	if _, err := New("dev-1", keys, NetworkID("devnet"), ""); !errors.Is(err, ErrInvalidNetwork) {
		t.Errorf("expected ErrInvalidNetwork, got %v", err)
	}
}

func TestDeviceInfo_Authorized(t *testing.T) {
	info := &DeviceInfo{
		DeviceID: "dev-1",
		Owner:    "k:owner",
		Guests:   []string{"k:guest1", "k:guest2"},
	}

	tests := []struct {
		account string
		want    bool
	}{
		{"k:owner", true},
		{"k:guest1", true},
		{"k:guest2", true},
		{"k:stranger", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := info.Authorized(tt.account); got != tt.want {
			t.Errorf("Authorized(%q) = %v, want %v", tt.account, got, tt.want)
		}
	}

	var nilInfo *DeviceInfo
	if nilInfo.Authorized("k:owner") {
		t.Error("nil metadata must authorize nobody")
	}
}
