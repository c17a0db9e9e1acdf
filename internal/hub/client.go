package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

// maxResponseBody bounds decoded responses.
const maxResponseBody = 16 << 20

// defaultTimeout applies when Config.Timeout is zero.
const defaultTimeout = 30 * time.Second

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the remote API connection settings.
type Config struct {
	// AppURL is the installation base URL, e.g.
	// "https://graph.api.smartthings.com/api/smartapps/installations/".
	AppURL string

	// AppID is appended to AppURL to form every request path.
	AppID string

	// AccessToken is sent as the access_token query parameter.
	AccessToken string

	// Timeout bounds each request.
	Timeout time.Duration
}

// PluginStatus is reported to the hub once at startup.
type PluginStatus struct {
	HasUpdate  bool    `json:"hasUpdate"`
	NewVersion *string `json:"newVersion"`
	Version    string  `json:"version"`
}

// Client talks to the remote SmartApp API.
//
// All methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
	base       string
	appID      string
	token      string
	logger     Logger
}

// NewClient creates a remote API client.
//
// Returns ErrInvalidConfig if AppURL or AppID is empty or AppURL is not absolute.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AppURL == "" || cfg.AppID == "" {
		return nil, fmt.Errorf("%w: app_url and app_id are required", ErrInvalidConfig)
	}
	u, err := url.Parse(cfg.AppURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("%w: app_url %q is not an absolute URL", ErrInvalidConfig, cfg.AppURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		base:       cfg.AppURL + cfg.AppID + "/",
		appID:      cfg.AppID,
		token:      cfg.AccessToken,
		logger:     noopLogger{},
	}, nil
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Source returns the evtSource header value identifying this installation.
func (c *Client) Source() string {
	return EventSource(c.appID)
}

// EventSource builds the evtSource header value for appID.
func EventSource(appID string) string {
	return "HubLink_" + appID
}

// FetchSnapshot retrieves the full device list and location metadata.
func (c *Client) FetchSnapshot(ctx context.Context) (device.Snapshot, error) {
	var snap device.Snapshot
	if err := c.getJSON(ctx, "devices", &snap); err != nil {
		return device.Snapshot{}, fmt.Errorf("fetching devices: %w", err)
	}
	return snap, nil
}

// GetDevice queries a single device.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (device.SnapshotEntry, error) {
	var entry device.SnapshotEntry
	if err := c.getJSON(ctx, url.PathEscape(deviceID)+"/query", &entry); err != nil {
		return device.SnapshotEntry{}, fmt.Errorf("querying device %s: %w", deviceID, err)
	}
	if entry.DeviceID == "" {
		entry.DeviceID = deviceID
	}
	return entry, nil
}

// SendCommand posts a device command. Values, when non-nil, is the JSON body.
func (c *Client) SendCommand(ctx context.Context, cmd transport.Command) error {
	path := url.PathEscape(cmd.DeviceID) + "/command/" + url.PathEscape(cmd.Name)
	return c.post(ctx, path, transport.EventTypeCommand, cmd.Values)
}

// Announce posts the start-direct announcement.
func (c *Client) Announce(ctx context.Context, info transport.AnnounceInfo) error {
	path := "startDirect/" + url.PathEscape(info.IP) + "/" + strconv.Itoa(info.Port) + "/" + url.PathEscape(info.Version)
	return c.post(ctx, path, transport.EventTypeAnnounce, info)
}

// SendPluginStatus reports this build's version to the hub.
func (c *Client) SendPluginStatus(ctx context.Context, status PluginStatus) error {
	c.logger.Info("sending plugin status", "version", status.Version, "has_update", status.HasUpdate)
	return c.post(ctx, "pluginStatus", "", status)
}

// endpoint builds the full URL for path with the access token attached.
func (c *Client) endpoint(path string) string {
	q := url.Values{}
	q.Set("access_token", c.token)
	return c.base + path + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return transport.NewSendError(transport.RouteRemote, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", device.ErrInvalidSnapshot, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, eventType string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if eventType != "" {
		req.Header.Set("evtSource", c.Source())
		req.Header.Set("evtType", eventType)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Debug("remote response", "path", path, "status", resp.StatusCode, "body", string(data))
	return nil
}

// do executes req and converts transport failures and non-2xx statuses
// into *transport.SendError values.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transport.NewSendError(transport.RouteRemote, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, transport.NewSendError(transport.RouteRemote, &transport.StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		})
	}
	return resp, nil
}
