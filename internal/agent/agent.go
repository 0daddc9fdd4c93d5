package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/auth"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/envelope"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/rules"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

// Publisher sends signed payloads to outbound topics. Satisfied by the
// MQTT client; tests use a capturing fake.
type Publisher interface {
	PublishJSON(topic string, payload []byte) error
}

// Directory is the platform registry the agent refreshes its metadata and
// rules from.
type Directory interface {
	GetDevice(ctx context.Context, deviceID string) (*identity.DeviceInfo, error)
	GetRules(ctx context.Context, deviceID string) ([]rules.Rule, error)
}

// Handler is the user-registered callback for opaque commands. It receives
// the full decoded command body. An error return (or panic) becomes a
// structured error reply on the command's response topic.
type Handler func(body map[string]any) error

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is the device agent: it authenticates inbound command envelopes,
// routes them to the sensor registry or the user handler, maintains the
// local rule cache and device metadata, and signs everything it emits.
type Client struct {
	id        *identity.Identity
	publisher Publisher
	registry  *sensor.Registry
	auth      *auth.Authenticator
	cache     *rules.Cache
	matcher   rules.Matcher
	directory Directory
	logger    Logger

	// dispatchMu serializes envelope processing so command effects apply in
	// arrival order even if the transport ever delivers concurrently.
	dispatchMu sync.Mutex

	infoMu sync.RWMutex
	info   *identity.DeviceInfo

	handlerMu sync.RWMutex
	handler   Handler

	dataMu sync.RWMutex
	data   map[string]any
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the agent's logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMatcher sets the rule condition matcher.
func WithMatcher(m rules.Matcher) Option {
	return func(c *Client) { c.matcher = m }
}

// WithAuthenticator overrides the authenticator, mainly to inject a clock
// in tests.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(c *Client) {
		if a != nil {
			c.auth = a
		}
	}
}

// New creates a device agent. The client starts with no device metadata;
// call Bootstrap before serving traffic so the authenticator has an ACL to
// check against.
func New(id *identity.Identity, publisher Publisher, registry *sensor.Registry, directory Directory, opts ...Option) *Client {
	c := &Client{
		id:        id,
		publisher: publisher,
		registry:  registry,
		auth:      auth.New(),
		cache:     rules.NewCache(),
		directory: directory,
		logger:    noopLogger{},
		data:      make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Topic returns the device's inbound command topic.
func (c *Client) Topic() string {
	return c.id.DeviceID
}

// DeviceID returns the device identifier.
func (c *Client) DeviceID() string {
	return c.id.DeviceID
}

// Rules returns the agent's rule cache.
func (c *Client) Rules() *rules.Cache {
	return c.cache
}

// Bootstrap fetches the device's registry record and rules. Metadata is
// mandatory: without it no inbound command can be authorized. A rules
// fetch failure is logged and tolerated; the cache refreshes on the next
// update_rules directive.
func (c *Client) Bootstrap(ctx context.Context) error {
	if err := c.RefreshDevice(ctx); err != nil {
		return fmt.Errorf("fetching device record: %w", err)
	}
	if err := c.RefreshRules(ctx); err != nil {
		c.logger.Warn("initial rule fetch failed", "error", err)
	}
	return nil
}

// OnMessage registers the handler for opaque user commands, replacing any
// previous one. Commands arriving with no handler registered are
// acknowledged without effect.
func (c *Client) OnMessage(handler Handler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// DeviceInfo returns the current platform metadata, or nil before the
// first successful refresh.
func (c *Client) DeviceInfo() *identity.DeviceInfo {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.info
}

// RefreshDevice replaces the cached device metadata wholesale from the
// registry.
func (c *Client) RefreshDevice(ctx context.Context) error {
	info, err := c.directory.GetDevice(ctx, c.id.DeviceID)
	if err != nil {
		return err
	}
	c.infoMu.Lock()
	c.info = info
	c.infoMu.Unlock()
	c.logger.Info("device metadata refreshed", "owner", info.Owner, "guests", len(info.Guests))
	return nil
}

// RefreshRules replaces the cached rule set wholesale from the registry.
func (c *Client) RefreshRules(ctx context.Context) error {
	fetched, err := c.directory.GetRules(ctx, c.id.DeviceID)
	if err != nil {
		return err
	}
	c.cache.Replace(fetched)
	c.logger.Info("rules refreshed", "count", len(fetched))
	return nil
}

// UpdateData merges a key into the device's local data map, used as rule
// evaluation input.
func (c *Client) UpdateData(key string, value any) {
	c.dataMu.Lock()
	c.data[key] = value
	c.dataMu.Unlock()
}

// Data returns a snapshot of the device's local data map.
func (c *Client) Data() map[string]any {
	c.dataMu.RLock()
	defer c.dataMu.RUnlock()
	out := make(map[string]any, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// ProcessRules evaluates every cached rule against the data point and
// publishes the action of each rule that fires. An empty cache triggers a
// refresh first, so freshly provisioned devices pick up their rules on the
// first data point.
func (c *Client) ProcessRules(ctx context.Context, data map[string]any) {
	if c.matcher == nil {
		return
	}
	if c.cache.Len() == 0 {
		if err := c.RefreshRules(ctx); err != nil {
			c.logger.Warn("rule refresh before evaluation failed", "error", err)
		}
	}

	fired := c.cache.Match(c.matcher, data, func(rule rules.Rule, err error) {
		c.logger.Warn("rule evaluation failed", "rule_id", rule.ID, "error", err)
	})

	for _, rule := range fired {
		target, _ := rule.Action["device_id"].(string)
		if target == "" {
			c.logger.Warn("rule action has no target device", "rule_id", rule.ID)
			continue
		}
		if err := c.Publish(target, rule.Action); err != nil {
			c.logger.Error("rule action publish failed", "rule_id", rule.ID, "error", err)
		}
	}
}

// Publish signs an arbitrary body with the device key and sends it to the
// topic. An empty topic means the device's own channel.
func (c *Client) Publish(topic string, body any) error {
	if topic == "" {
		topic = c.Topic()
	}
	payload, err := envelope.MakeCommand(body, c.id.Keys)
	if err != nil {
		return err
	}
	return c.publisher.PublishJSON(topic, payload)
}

// AnnounceStatus publishes a signed presence message to the device's
// status topic.
func (c *Client) AnnounceStatus(topic, status string) {
	body := map[string]any{
		"device_id": c.id.DeviceID,
		"status":    status,
		"timestamp": time.Now().UTC().Unix(),
	}
	if err := c.Publish(topic, body); err != nil {
		c.logger.Warn("status announcement failed", "status", status, "error", err)
	}
}

// PublishSensorReading reads one sensor and publishes the result. An empty
// topic means the device's own channel.
func (c *Client) PublishSensorReading(ctx context.Context, sensorID, topic string) error {
	reading := c.registry.Read(ctx, sensorID)
	return c.Publish(topic, reading)
}

// PublishAllSensorReadings reads every enabled sensor and publishes one
// aggregated payload. Used by the telemetry publisher as its emit path.
func (c *Client) PublishAllSensorReadings(ctx context.Context, topic string) error {
	return c.PublishReadings(topic, c.registry.ReadAll(ctx))
}

// PublishReadings publishes an aggregated telemetry payload.
func (c *Client) PublishReadings(topic string, readings []sensor.Reading) error {
	body := map[string]any{
		"device_id": c.id.DeviceID,
		"sensors":   readings,
		"count":     len(readings),
	}
	return c.Publish(topic, body)
}
