package mqtt

import "errors"

// Sentinel errors for the mqtt package, checkable with errors.Is().
var (
	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned when an operation requires an active connection.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrInvalidTopic is returned when a topic is empty or malformed.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidQoS is returned when the QoS level is out of range.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrPublishFailed is returned when a publish does not complete.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscription cannot be established.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe does not complete.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
)
