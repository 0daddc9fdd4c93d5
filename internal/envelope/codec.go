package envelope

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
)

// Decode unwraps a raw transport payload into its signed message and command.
//
// Both decoding layers must succeed; a failure at either layer means the
// envelope is dropped by the caller (no reply channel is knowable without a
// decoded command).
func Decode(payload []byte) (*SignedMessage, *Command, error) {
	var transport Transport
	if err := json.Unmarshal(payload, &transport); err != nil {
		return nil, nil, fmt.Errorf("%w: transport layer: %w", ErrDecode, err)
	}
	if transport.Message == "" {
		return nil, nil, fmt.Errorf("%w: empty transport message", ErrDecode)
	}

	var signed SignedMessage
	if err := json.Unmarshal([]byte(transport.Message), &signed); err != nil {
		return nil, nil, fmt.Errorf("%w: signed layer: %w", ErrDecode, err)
	}
	if signed.DeviceExec == "" {
		return nil, nil, fmt.Errorf("%w: missing device_exec", ErrDecode)
	}

	cmd, err := decodeCommand(signed.DeviceExec)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: command layer: %w", ErrDecode, err)
	}

	return &signed, cmd, nil
}

// MakeCommand signs an arbitrary body with the device key and wraps it in the
// transport format. Every outbound message (reply or telemetry) goes through
// here so the platform can verify the device produced it.
func MakeCommand(body any, keys identity.KeyPair) ([]byte, error) {
	exec, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: body: %w", ErrEncode, err)
	}

	sig := keys.Sign(exec)

	signed := SignedMessage{
		DeviceExec: string(exec),
		PubKey:     keys.PublicKeyHex(),
		Sig:        hex.EncodeToString(sig),
		Nonce:      uuid.New().String(),
	}

	inner, err := json.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("%w: signed layer: %w", ErrEncode, err)
	}

	payload, err := json.Marshal(Transport{Message: string(inner)})
	if err != nil {
		return nil, fmt.Errorf("%w: transport layer: %w", ErrEncode, err)
	}

	return payload, nil
}

// VerifySignature checks the signed message's signature against its claimed key.
func VerifySignature(m *SignedMessage) bool {
	sig, err := hex.DecodeString(m.Sig)
	if err != nil {
		return false
	}
	return identity.VerifySignature(m.PubKey, m.ExecBytes(), sig)
}
