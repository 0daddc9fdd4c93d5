package sensor

import (
	"context"
	"time"
)

// Config describes a configured sensor.
//
// SensorID is unique within a device and stable across restarts. Inputs is an
// opaque parameter map interpreted by the driver (pin numbers, I2C addresses).
type Config struct {
	SensorID   string         `json:"sensor_id"`
	SensorType string         `json:"sensor_type"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Enabled    bool           `json:"enabled"`
	Alias      string         `json:"alias,omitempty"`
}

// DeepCopy creates an independent copy of the Config.
// The Inputs map is cloned so callers cannot mutate registry state.
func (c Config) DeepCopy() Config {
	cpy := c
	cpy.Inputs = deepCopyMap(c.Inputs)
	return cpy
}

// Reading statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Reading is a point-in-time result from one sensor.
//
// Readings are immutable values produced fresh on every read; disabled or
// unknown sensors yield an error-status reading rather than an error return.
type Reading struct {
	SensorID   string         `json:"sensor_id"`
	SensorType string         `json:"sensor_type"`
	Data       map[string]any `json:"data"`
	Timestamp  int64          `json:"timestamp"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
}

// Driver is the minimal capability every sensor instance exposes.
//
// Read may block on hardware I/O; the registry bounds each call with a
// context deadline.
type Driver interface {
	Read(ctx context.Context) (map[string]any, error)
}

// Optional capabilities. A driver declares a capability by implementing the
// interface; Execute discovers support by type assertion instead of probing
// method presence.

// Displayable is implemented by character displays.
type Displayable interface {
	DisplayText(text string, clear bool) error
	AppendText(text string) error
	Clear() error
}

// Toggleable is implemented by output drivers that can invert their state.
type Toggleable interface {
	Toggle() error
}

// Settable is implemented by output drivers with a writable boolean state.
type Settable interface {
	SetOutput(on bool) error
}

// Closer is implemented by drivers holding hardware resources.
// The registry closes an instance whenever it is destroyed.
type Closer interface {
	Close() error
}

// Factory creates driver instances from a type tag and input parameters.
//
// Injected into the registry at construction so the registry is testable
// against a fake factory.
type Factory interface {
	Create(sensorType string, inputs map[string]any) (Driver, error)
}

// SaveFunc persists the full sensor configuration set.
//
// Invoked asynchronously after every successful mutation; failures are logged
// by the registry and never roll back the in-memory change.
type SaveFunc func(configs []Config) error

// CommandRequest is the generic sensor request shape delivered by the
// platform: {action, sensor_id?, params?, config?}.
type CommandRequest struct {
	Action   string         `json:"action"`
	SensorID string         `json:"sensor_id,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// now returns the current unix timestamp used in result payloads.
func now() int64 {
	return time.Now().UTC().Unix()
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v // Primitives are immutable
	}
}
