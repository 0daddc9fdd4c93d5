package sensor

import "errors"

// Domain errors for the sensor package, checkable with errors.Is().
var (
	// ErrNotFound is returned when a sensor identifier is not registered.
	ErrNotFound = errors.New("sensor: not found")

	// ErrMissingID is returned when an operation requires a sensor identifier.
	ErrMissingID = errors.New("sensor: sensor_id required")

	// ErrMissingType is returned when creating a sensor without a type tag.
	ErrMissingType = errors.New("sensor: sensor_type required")

	// ErrDriverFailed is returned when the driver factory cannot instantiate
	// or re-instantiate a sensor.
	ErrDriverFailed = errors.New("sensor: driver instantiation failed")

	// ErrUnknownType is returned by the built-in factory for unrecognised
	// sensor types.
	ErrUnknownType = errors.New("sensor: unknown sensor type")
)
