package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// DefaultLocalPort is the hub's LAN event listener port.
const DefaultLocalPort = 39500

// Event types carried in the evtType header.
const (
	EventTypeCommand  = "hkCommand"
	EventTypeAnnounce = "enableDirect"
)

// maxErrorBody bounds how much of a rejection body is kept for logging.
const maxErrorBody = 512

// LocalClient posts events to the hub's LAN listener.
type LocalClient struct {
	httpClient *http.Client
	port       int
	source     string
}

// NewLocalClient creates a LocalClient.
//
// Parameters:
//   - port: Hub listener port (0 selects DefaultLocalPort)
//   - timeout: Per-request timeout; exceeding it is a FailureTimeout
//   - source: Value of the evtSource header
func NewLocalClient(port int, timeout time.Duration, source string) *LocalClient {
	if port == 0 {
		port = DefaultLocalPort
	}
	return &LocalClient{
		httpClient: &http.Client{Timeout: timeout},
		port:       port,
		source:     source,
	}
}

// SendEvent posts body as JSON to http://<address>:<port>/event.
// No access token is sent on the local route.
func (c *LocalClient) SendEvent(ctx context.Context, address, eventType string, body any) error {
	if address == "" {
		return NewSendError(RouteLocal, ErrNoLocalAddress)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling local event: %w", err)
	}

	url := "http://" + net.JoinHostPort(address, strconv.Itoa(c.port)) + "/event"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building local request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("evtSource", c.source)
	req.Header.Set("evtType", eventType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewSendError(RouteLocal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return NewSendError(RouteLocal, &StatusError{StatusCode: resp.StatusCode, Body: string(data)})
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
