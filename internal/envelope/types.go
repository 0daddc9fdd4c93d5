package envelope

import (
	"encoding/json"
)

// Transport is the outer payload delivered over MQTT.
//
// The platform wraps every exchange in a transport object whose "message"
// field is itself a JSON-encoded string. Decoding is therefore always two
// structured passes: transport -> signed message -> command.
type Transport struct {
	Message string `json:"message"`
}

// SignedMessage is the authenticated unit inside a transport payload.
//
// DeviceExec is a JSON-encoded command string; the signature covers exactly
// those bytes. Nonce is a correlation ID, not part of the signed input.
type SignedMessage struct {
	DeviceExec string `json:"device_exec"`
	PubKey     string `json:"pubkey"`
	Sig        string `json:"sig"`
	Nonce      string `json:"nonce,omitempty"`
}

// ExecBytes returns the bytes the signature covers.
func (m *SignedMessage) ExecBytes() []byte {
	return []byte(m.DeviceExec)
}

// Command is the decoded device_exec body.
//
// Exactly one interpretation wins per envelope: a sensor command
// short-circuits routing; otherwise the full body goes to the user callback.
// The refresh flags are orthogonal side effects that may accompany either.
type Command struct {
	// ResponseTopic is the reply channel, extracted before authentication so
	// handler faults can still be reported. Optional.
	ResponseTopic string `json:"response_topic,omitempty"`

	// ExpiryTime is the unix timestamp (seconds) after which the command is
	// rejected. Must be strictly in the future.
	ExpiryTime int64 `json:"expiry_time"`

	// UpdateRules asks the device to refresh its rule cache.
	UpdateRules bool `json:"update_rules,omitempty"`

	// UpdateDevice asks the device to refresh its platform metadata.
	UpdateDevice bool `json:"update_device,omitempty"`

	// SensorCommand, when present, is handled by the sensor registry and
	// never reaches the user callback.
	SensorCommand *SensorCommand `json:"sensor_command,omitempty"`

	// Raw holds the complete decoded body, including fields this struct does
	// not model. The user callback receives it verbatim.
	Raw map[string]any `json:"-"`
}

// SensorCommand is the generic sensor request shape.
type SensorCommand struct {
	Action   string         `json:"action"`
	SensorID string         `json:"sensor_id,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}

// Reply bodies emitted by the dispatch core.

// SuccessReply is the generic acknowledgment for a handled user command.
func SuccessReply() map[string]any {
	return map[string]any{"info": "success"}
}

// ErrorReply converts a handler fault into a structured reply body.
func ErrorReply(msg string) map[string]any {
	return map[string]any{"info": "error", "error": msg}
}

// decodeCommand parses a device_exec string into a Command, retaining the raw body.
func decodeCommand(exec string) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal([]byte(exec), &cmd); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(exec), &raw); err != nil {
		return nil, err
	}
	cmd.Raw = raw

	return &cmd, nil
}
