package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidSnapshot) {
//	    // handle malformed hub payload
//	}
var (
	// ErrDeviceNotFound is returned when a device ID is not in the cache.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidSnapshot is returned when a hub device list cannot be decoded.
	ErrInvalidSnapshot = errors.New("device: invalid snapshot")

	// ErrInvalidEvent is returned when an attribute change event is malformed.
	ErrInvalidEvent = errors.New("device: invalid event")
)
