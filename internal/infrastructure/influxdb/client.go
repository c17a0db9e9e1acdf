package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-hublink/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	// failureWindowFlushes is how many flush intervals a write failure
	// keeps the health check failing.
	failureWindowFlushes = 2
)

// Client records HubLink telemetry in InfluxDB: numeric attribute values
// from pushes, one point per dispatch and one per refresh cycle.
//
// Writes never block the caller. Points are batched by the underlying
// write API, and batch failures arrive asynchronously; the most recent
// one is kept so HealthCheck can report that telemetry is being lost.
//
// A zero Client is a disconnected client whose writes are dropped.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	failureWindow time.Duration

	mu          sync.RWMutex
	connected   bool
	onError     func(err error)
	lastFailure time.Time
	lastErr     error
	failures    uint64
}

// Connect pings the server and opens a batched write API for the
// configured org and bucket. It returns ErrDisabled when telemetry is
// switched off and ErrConnectionFailed when the server cannot be reached.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushSeconds := cfg.FlushInterval
	if flushSeconds <= 0 {
		flushSeconds = defaultFlushInterval
	}
	flush := time.Duration(flushSeconds) * time.Second

	// #nosec G115 -- both values are positive
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flush.Milliseconds()))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s is not healthy", ErrConnectionFailed, cfg.URL)
	}

	c := &Client{
		client:        client,
		writeAPI:      client.WriteAPI(cfg.Org, cfg.Bucket),
		failureWindow: failureWindowFlushes * flush,
		connected:     true,
	}
	go c.watchFailures(c.writeAPI.Errors())

	return c, nil
}

// watchFailures records each failed batch and hands it to the callback.
func (c *Client) watchFailures(errs <-chan error) {
	for err := range errs {
		c.recordFailure(err, time.Now())
	}
}

func (c *Client) recordFailure(err error, at time.Time) {
	c.mu.Lock()
	c.lastFailure = at
	c.lastErr = err
	c.failures++
	callback := c.onError
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// SetOnError sets a callback for failed batches. It runs on the write
// API's error goroutine.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Failures returns how many batches have failed since Connect.
func (c *Client) Failures() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

// IsConnected reports whether writes are being accepted.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck fails with ErrWriteFailed while a batch failure is more
// recent than two flush intervals, otherwise it pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	connected := c.connected
	lastFailure, lastErr, window := c.lastFailure, c.lastErr, c.failureWindow
	c.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}
	if !lastFailure.IsZero() && time.Since(lastFailure) < window {
		return fmt.Errorf("%w: %w", ErrWriteFailed, lastErr)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// Flush sends buffered points and blocks until they are written. It is a
// no-op once the client is closed.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes pending points and releases the connection. Later
// writes are dropped.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
