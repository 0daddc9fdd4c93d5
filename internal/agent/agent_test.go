package agent

import (
	"context"
	"testing"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/envelope"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/rules"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

// thresholdMatcher fires when data["temperature"] exceeds the condition's
// "above" value.
type thresholdMatcher struct{}

func (thresholdMatcher) Matches(condition, data map[string]any) (bool, error) {
	above, _ := condition["above"].(float64)
	temp, _ := data["temperature"].(float64)
	return temp > above, nil
}

func TestProcessRules_PublishesFiredActions(t *testing.T) {
	h := newHarness(t)
	WithMatcher(thresholdMatcher{})(h.client)

	h.client.Rules().Replace([]rules.Rule{
		{
			ID:     "r1",
			Rule:   map[string]any{"above": 30.0},
			Action: map[string]any{"device_id": "fan-1", "sensor_command": map[string]any{"action": "execute"}},
		},
		{
			ID:     "r2",
			Rule:   map[string]any{"above": 90.0},
			Action: map[string]any{"device_id": "alarm-1"},
		},
	})

	h.client.ProcessRules(context.Background(), map[string]any{"temperature": 42.0})

	if h.publisher.count() != 1 {
		t.Fatalf("expected 1 fired action, got %d publishes", h.publisher.count())
	}
	msg := h.publisher.last(t)
	if msg.topic != "fan-1" {
		t.Errorf("action published to %q", msg.topic)
	}

	// Actions go out signed like any other device message.
	signed, cmd, err := envelope.Decode(msg.payload)
	if err != nil {
		t.Fatalf("action payload is not a valid envelope: %v", err)
	}
	if !envelope.VerifySignature(signed) {
		t.Error("action must carry a valid device signature")
	}
	if cmd.Raw["device_id"] != "fan-1" {
		t.Errorf("unexpected action body: %v", cmd.Raw)
	}
}

func TestProcessRules_EmptyCacheRefreshesFirst(t *testing.T) {
	h := newHarness(t)
	WithMatcher(thresholdMatcher{})(h.client)

	h.directory.mu.Lock()
	h.directory.rules = []rules.Rule{
		{ID: "r1", Rule: map[string]any{"above": 10.0}, Action: map[string]any{"device_id": "fan-1"}},
	}
	h.directory.mu.Unlock()
	h.client.Rules().Replace(nil)

	_, before := h.directory.calls()
	h.client.ProcessRules(context.Background(), map[string]any{"temperature": 20.0})
	_, after := h.directory.calls()

	if after != before+1 {
		t.Error("an empty cache must trigger a rule refresh")
	}
	if h.publisher.count() != 1 {
		t.Errorf("freshly fetched rule should fire, got %d publishes", h.publisher.count())
	}
}

func TestProcessRules_NoMatcherIsNoop(t *testing.T) {
	h := newHarness(t)
	h.client.Rules().Replace([]rules.Rule{{ID: "r1", Action: map[string]any{"device_id": "x"}}})

	h.client.ProcessRules(context.Background(), map[string]any{"temperature": 99.0})
	if h.publisher.count() != 0 {
		t.Error("rule evaluation requires a matcher")
	}
}

func TestUpdateData(t *testing.T) {
	h := newHarness(t)

	h.client.UpdateData("temperature", 21.5)
	h.client.UpdateData("humidity", 40.0)

	data := h.client.Data()
	if data["temperature"] != 21.5 || data["humidity"] != 40.0 {
		t.Errorf("unexpected data snapshot: %v", data)
	}

	// Snapshot must be isolated from internal state.
	data["temperature"] = 0.0
	if h.client.Data()["temperature"] != 21.5 {
		t.Error("Data must return a copy")
	}
}

func TestPublishReadings(t *testing.T) {
	h := newHarness(t)

	readings := []sensor.Reading{
		{SensorID: "temp1", SensorType: "echo", Status: sensor.StatusSuccess, Data: map[string]any{"value": 1.0}},
	}
	if err := h.client.PublishReadings("dev-1", readings); err != nil {
		t.Fatalf("PublishReadings failed: %v", err)
	}

	_, cmd, err := envelope.Decode(h.publisher.last(t).payload)
	if err != nil {
		t.Fatalf("telemetry payload is not a valid envelope: %v", err)
	}
	if cmd.Raw["device_id"] != "dev-1" {
		t.Errorf("unexpected telemetry body: %v", cmd.Raw)
	}
	if cmd.Raw["count"] != float64(1) {
		t.Errorf("unexpected reading count: %v", cmd.Raw["count"])
	}
}

func TestAnnounceStatus(t *testing.T) {
	h := newHarness(t)

	h.client.AnnounceStatus("dev-1/status", "online")

	msg := h.publisher.last(t)
	if msg.topic != "dev-1/status" {
		t.Errorf("status published to %q", msg.topic)
	}
	_, cmd, err := envelope.Decode(msg.payload)
	if err != nil {
		t.Fatalf("status payload is not a valid envelope: %v", err)
	}
	if cmd.Raw["status"] != "online" || cmd.Raw["device_id"] != "dev-1" {
		t.Errorf("unexpected status body: %v", cmd.Raw)
	}
}

func TestPublish_DefaultsToDeviceTopic(t *testing.T) {
	h := newHarness(t)

	if err := h.client.Publish("", map[string]any{"hello": "world"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if h.publisher.last(t).topic != "dev-1" {
		t.Errorf("empty topic must default to the device topic, got %q", h.publisher.last(t).topic)
	}
}
