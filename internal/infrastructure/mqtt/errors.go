package mqtt

import "errors"

var (
	// ErrConnectionFailed is returned by Connect when the broker cannot be
	// reached within the connect timeout or refuses the session.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while the broker connection is down.
	// Accessory publishes fail with it between reconnect attempts.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrPublishFailed is returned when the broker does not acknowledge a
	// publish in time or rejects it.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrPayloadTooLarge is returned for payloads above the 1MB limit.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrSubscribeFailed is returned when a subscription is not acknowledged.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrForeignTopic is returned when subscribing outside the topic prefix.
	ErrForeignTopic = errors.New("mqtt: topic outside prefix")

	// ErrInvalidQoS is returned for QoS levels other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
