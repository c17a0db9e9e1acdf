package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is switched off.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed is returned by Connect when the server cannot be
	// reached or reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close, or on a
	// client that never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed is returned by HealthCheck while dispatch, cycle or
	// attribute points are being dropped by the server.
	ErrWriteFailed = errors.New("influxdb: telemetry writes failing")

	// ErrUnhealthy is returned by HealthCheck when the ping fails.
	ErrUnhealthy = errors.New("influxdb: server unhealthy")
)
