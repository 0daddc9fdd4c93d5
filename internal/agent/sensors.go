package agent

import (
	"context"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

// Sensor convenience wrappers for device integrators embedding the agent.
// The platform's sensor_command path and these methods share the same
// registry, so a sensor added here is immediately commandable remotely.

// AddSensor registers a sensor with the device.
func (c *Client) AddSensor(cfg sensor.Config) error {
	return c.registry.Add(cfg)
}

// RemoveSensor removes a sensor and destroys its instance.
func (c *Client) RemoveSensor(sensorID string) {
	c.registry.Remove(sensorID)
}

// EnableSensor enables a registered sensor.
func (c *Client) EnableSensor(sensorID string) error {
	return c.registry.Enable(sensorID)
}

// DisableSensor disables a sensor, keeping its configuration.
func (c *Client) DisableSensor(sensorID string) error {
	return c.registry.Disable(sensorID)
}

// ReadSensor reads one sensor.
func (c *Client) ReadSensor(ctx context.Context, sensorID string) sensor.Reading {
	return c.registry.Read(ctx, sensorID)
}

// ReadAllSensors reads every enabled sensor.
func (c *Client) ReadAllSensors(ctx context.Context) []sensor.Reading {
	return c.registry.ReadAll(ctx)
}

// ExecuteSensorAction runs a capability action on an output sensor.
func (c *Client) ExecuteSensorAction(ctx context.Context, sensorID, action string, params map[string]any) map[string]any {
	return c.registry.Execute(ctx, sensorID, action, params)
}

// SensorStatus reports one sensor's status, or the full table when
// sensorID is empty.
func (c *Client) SensorStatus(sensorID string) map[string]any {
	return c.registry.Status(sensorID)
}

// LoadSensorConfigs registers a batch of configurations, returning the IDs
// that loaded successfully.
func (c *Client) LoadSensorConfigs(configs []sensor.Config) []string {
	return c.registry.Load(configs)
}
