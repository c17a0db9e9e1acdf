package accessory

import "errors"

// Sentinel errors.
var (
	// ErrNoBus is returned by Start when no MQTT client is attached.
	ErrNoBus = errors.New("accessory: no MQTT bus")

	// ErrUnknownAccessory means a command named an accessory with no live device.
	ErrUnknownAccessory = errors.New("accessory: unknown accessory")

	// ErrInvalidCommand means a command payload could not be used.
	ErrInvalidCommand = errors.New("accessory: invalid command")
)
