package agent

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/auth"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/envelope"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/rules"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

// fakePublisher captures every outbound publish.
type fakePublisher struct {
	mu       sync.Mutex
	messages []published
}

type published struct {
	topic   string
	payload []byte
}

func (p *fakePublisher) PublishJSON(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, payload: payload})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *fakePublisher) last(t *testing.T) published {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		t.Fatal("no messages published")
	}
	return p.messages[len(p.messages)-1]
}

// fakeDirectory serves canned device records and rules, counting calls.
type fakeDirectory struct {
	mu          sync.Mutex
	info        *identity.DeviceInfo
	rules       []rules.Rule
	infoErr     error
	rulesErr    error
	deviceCalls int
	rulesCalls  int
}

func (d *fakeDirectory) GetDevice(_ context.Context, _ string) (*identity.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deviceCalls++
	if d.infoErr != nil {
		return nil, d.infoErr
	}
	return d.info, nil
}

func (d *fakeDirectory) GetRules(_ context.Context, _ string) ([]rules.Rule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rulesCalls++
	if d.rulesErr != nil {
		return nil, d.rulesErr
	}
	return d.rules, nil
}

func (d *fakeDirectory) calls() (device, ruleFetches int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceCalls, d.rulesCalls
}

// echoDriver is a minimal always-readable sensor driver.
type echoDriver struct{}

func (echoDriver) Read(_ context.Context) (map[string]any, error) {
	return map[string]any{"value": 1.0}, nil
}

type echoFactory struct{}

func (echoFactory) Create(_ string, _ map[string]any) (sensor.Driver, error) {
	return echoDriver{}, nil
}

func newTestKeys(t *testing.T) identity.KeyPair {
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

// testHarness wires an agent against fakes, with an authorised owner key.
type testHarness struct {
	client    *Client
	publisher *fakePublisher
	directory *fakeDirectory
	owner     identity.KeyPair
	registry  *sensor.Registry
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	deviceKeys := newTestKeys(t)
	ownerKeys := newTestKeys(t)

	id, err := identity.New("dev-1", deviceKeys, identity.NetworkMainnet, "https://node.test")
	if err != nil {
		t.Fatal(err)
	}

	publisher := &fakePublisher{}
	directory := &fakeDirectory{
		info: &identity.DeviceInfo{
			DeviceID: "dev-1",
			Owner:    identity.AccountFor(ownerKeys.PublicKeyHex()),
		},
	}

	registry := sensor.NewRegistry(echoFactory{})
	if err := registry.Add(sensor.Config{SensorID: "temp1", SensorType: "echo", Enabled: true}); err != nil {
		t.Fatal(err)
	}

	client := New(id, publisher, registry, directory)
	if err := client.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	return &testHarness{
		client:    client,
		publisher: publisher,
		directory: directory,
		owner:     ownerKeys,
		registry:  registry,
	}
}

// command builds a signed inbound payload from the given signer.
func command(t *testing.T, signer identity.KeyPair, body map[string]any) []byte {
	t.Helper()
	if _, ok := body["expiry_time"]; !ok {
		body["expiry_time"] = time.Now().Add(time.Minute).Unix()
	}
	payload, err := envelope.MakeCommand(body, signer)
	if err != nil {
		t.Fatal(err)
	}
	return payload
}

// decodeReply unwraps a published reply into its body map.
func decodeReply(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	_, cmd, err := envelope.Decode(payload)
	if err != nil {
		t.Fatalf("reply is not a valid envelope: %v", err)
	}
	return cmd.Raw
}

func TestOnReceive_SensorCommandShortCircuits(t *testing.T) {
	h := newHarness(t)

	handlerCalled := false
	h.client.OnMessage(func(map[string]any) error {
		handlerCalled = true
		return nil
	})

	baseDevice, baseRules := h.directory.calls()

	payload := command(t, h.owner, map[string]any{
		"response_topic": "replies/1",
		"update_rules":   true,
		"update_device":  true,
		"sensor_command": map[string]any{"action": "read", "sensor_id": "temp1"},
	})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	// Both refresh side effects ran.
	device, ruleFetches := h.directory.calls()
	if device != baseDevice+1 {
		t.Errorf("update_device flag must refresh metadata (calls %d -> %d)", baseDevice, device)
	}
	if ruleFetches != baseRules+1 {
		t.Errorf("update_rules flag must refresh rules (calls %d -> %d)", baseRules, ruleFetches)
	}

	// Exactly one reply: the sensor result, not the generic ack.
	if h.publisher.count() != 1 {
		t.Fatalf("expected exactly 1 reply, got %d", h.publisher.count())
	}
	msg := h.publisher.last(t)
	if msg.topic != "replies/1" {
		t.Errorf("reply went to %q", msg.topic)
	}
	reply := decodeReply(t, msg.payload)
	if reply["command"] != "read" {
		t.Errorf("reply must be the sensor result, got %v", reply)
	}

	// And the user handler never ran.
	if handlerCalled {
		t.Error("sensor commands must not reach the user handler")
	}
}

func TestOnReceive_RuleRefreshFailureAbortsWithErrorReply(t *testing.T) {
	h := newHarness(t)
	h.directory.rulesErr = errors.New("registry unreachable")

	handlerCalled := false
	h.client.OnMessage(func(map[string]any) error {
		handlerCalled = true
		return nil
	})

	payload := command(t, h.owner, map[string]any{
		"response_topic": "replies/1",
		"update_rules":   true,
		"sensor_command": map[string]any{"action": "read", "sensor_id": "temp1"},
	})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	// The failed refresh is the reply; nothing after it runs.
	if h.publisher.count() != 1 {
		t.Fatalf("expected exactly 1 reply, got %d", h.publisher.count())
	}
	reply := decodeReply(t, h.publisher.last(t).payload)
	if reply["info"] != "error" {
		t.Errorf("failed refresh must produce an error reply, got %v", reply)
	}
	if reply["error"] != "registry unreachable" {
		t.Errorf("reply must carry the refresh error, got %v", reply)
	}
	if handlerCalled {
		t.Error("a failed refresh must abort the envelope before the handler")
	}
}

func TestOnReceive_DeviceRefreshFailureAbortsWithErrorReply(t *testing.T) {
	h := newHarness(t)
	h.directory.infoErr = errors.New("device lookup failed")

	payload := command(t, h.owner, map[string]any{
		"response_topic": "replies/1",
		"update_device":  true,
	})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	if h.publisher.count() != 1 {
		t.Fatalf("expected exactly 1 reply, got %d", h.publisher.count())
	}
	reply := decodeReply(t, h.publisher.last(t).payload)
	if reply["info"] != "error" || reply["error"] != "device lookup failed" {
		t.Errorf("unexpected reply: %v", reply)
	}
}

func TestOnReceive_ExpiredCommandIsSilentlyDropped(t *testing.T) {
	h := newHarness(t)

	handlerCalled := false
	h.client.OnMessage(func(map[string]any) error {
		handlerCalled = true
		return nil
	})

	payload := command(t, h.owner, map[string]any{
		"response_topic": "replies/1",
		"expiry_time":    time.Now().Add(-time.Minute).Unix(),
	})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	if h.publisher.count() != 0 {
		t.Error("expired commands must not be acknowledged")
	}
	if handlerCalled {
		t.Error("expired commands must not reach the handler")
	}
}

func TestOnReceive_UnauthorizedSignerIsSilentlyDropped(t *testing.T) {
	h := newHarness(t)
	stranger := newTestKeys(t)

	payload := command(t, stranger, map[string]any{
		"response_topic": "replies/1",
		"sensor_command": map[string]any{"action": "read"},
	})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	if h.publisher.count() != 0 {
		t.Error("unauthenticated traffic must never be acknowledged")
	}
}

func TestOnReceive_HandlerErrorProducesOneErrorReply(t *testing.T) {
	h := newHarness(t)
	h.client.OnMessage(func(map[string]any) error {
		return errors.New("sprinkler jammed")
	})

	payload := command(t, h.owner, map[string]any{"response_topic": "replies/1"})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	if h.publisher.count() != 1 {
		t.Fatalf("expected exactly 1 reply, got %d", h.publisher.count())
	}
	reply := decodeReply(t, h.publisher.last(t).payload)
	if reply["info"] != "error" || reply["error"] != "sprinkler jammed" {
		t.Errorf("unexpected error reply: %v", reply)
	}

	// The agent keeps serving after a handler fault.
	h.client.OnMessage(func(map[string]any) error { return nil })
	payload = command(t, h.owner, map[string]any{"response_topic": "replies/2"})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}
	reply = decodeReply(t, h.publisher.last(t).payload)
	if reply["info"] != "success" {
		t.Errorf("agent must recover after a handler fault: %v", reply)
	}
}

func TestOnReceive_HandlerPanicProducesErrorReply(t *testing.T) {
	h := newHarness(t)
	h.client.OnMessage(func(map[string]any) error {
		panic("wiring fault")
	})

	payload := command(t, h.owner, map[string]any{"response_topic": "replies/1"})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	if h.publisher.count() != 1 {
		t.Fatalf("expected exactly 1 reply, got %d", h.publisher.count())
	}
	reply := decodeReply(t, h.publisher.last(t).payload)
	if reply["info"] != "error" {
		t.Errorf("panic must surface as an error reply: %v", reply)
	}
}

func TestOnReceive_UserCommandSuccessAck(t *testing.T) {
	h := newHarness(t)

	var received map[string]any
	h.client.OnMessage(func(body map[string]any) error {
		received = body
		return nil
	})

	payload := command(t, h.owner, map[string]any{
		"response_topic": "replies/1",
		"irrigate_zone":  "north",
	})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	if received == nil {
		t.Fatal("handler was not invoked")
	}
	if received["irrigate_zone"] != "north" {
		t.Errorf("handler must receive the full body: %v", received)
	}

	reply := decodeReply(t, h.publisher.last(t).payload)
	if reply["info"] != "success" {
		t.Errorf("expected generic success ack, got %v", reply)
	}
}

func TestOnReceive_NoResponseTopicMeansNoReply(t *testing.T) {
	h := newHarness(t)
	h.client.OnMessage(func(map[string]any) error { return nil })

	payload := command(t, h.owner, map[string]any{"note": "fire and forget"})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	if h.publisher.count() != 0 {
		t.Error("commands without a response topic get no reply")
	}
}

func TestOnReceive_UndecodablePayloadIsDropped(t *testing.T) {
	h := newHarness(t)

	if err := h.client.OnReceive("dev-1", []byte("garbage")); err != nil {
		t.Fatalf("OnReceive must not propagate decode failures: %v", err)
	}
	if h.publisher.count() != 0 {
		t.Error("undecodable payloads get no reply")
	}
}

func TestOnReceive_NoHandlerStillAcks(t *testing.T) {
	h := newHarness(t)

	payload := command(t, h.owner, map[string]any{"response_topic": "replies/1"})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}

	reply := decodeReply(t, h.publisher.last(t).payload)
	if reply["info"] != "success" {
		t.Errorf("expected success ack without a handler, got %v", reply)
	}
}

func TestOnReceive_ExpiredWithValidOwnerSig(t *testing.T) {
	h := newHarness(t)

	a := auth.NewWithClock(func() time.Time { return time.Unix(2_000_000_000, 0) })
	WithAuthenticator(a)(h.client)

	payload := command(t, h.owner, map[string]any{
		"response_topic": "replies/1",
		"expiry_time":    int64(1_999_999_999),
	})
	if err := h.client.OnReceive("dev-1", payload); err != nil {
		t.Fatalf("OnReceive failed: %v", err)
	}
	if h.publisher.count() != 0 {
		t.Error("expiry is checked even for the owner's valid signature")
	}
}
