package hub

import "errors"

// Domain errors for the hub client.
var (
	// ErrInvalidConfig is returned when the client is built without an app URL or app ID.
	ErrInvalidConfig = errors.New("hub: invalid configuration")

	// ErrEmptyResponse is returned when the API answers with no usable body.
	ErrEmptyResponse = errors.New("hub: empty response")
)
