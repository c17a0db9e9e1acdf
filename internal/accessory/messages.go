package accessory

import (
	"time"

	"github.com/google/uuid"
)

// handleNamespace prefixes device IDs before hashing them into accessory IDs.
const handleNamespace = "hublink_"

// HandleID returns the accessory ID for a device. The same device ID
// always yields the same UUID, so retained topics survive restarts.
func HandleID(deviceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(handleNamespace+deviceID)).String()
}

// ConfigMessage describes an accessory.
// Topic: {prefix}/accessory/{id}/config (retained)
type ConfigMessage struct {
	AccessoryID     string   `json:"accessory_id"`
	DeviceID        string   `json:"device_id"`
	Name            string   `json:"name"`
	Capabilities    []string `json:"capabilities"`
	TemperatureUnit string   `json:"temperature_unit"`
	StateTopic      string   `json:"state_topic"`
	CommandTopic    string   `json:"command_topic"`
}

// StateMessage carries the full visible attribute map.
// Topic: {prefix}/accessory/{id}/state (retained)
type StateMessage struct {
	AccessoryID string         `json:"accessory_id"`
	DeviceID    string         `json:"device_id"`
	Timestamp   time.Time      `json:"timestamp"`
	State       map[string]any `json:"state"`
}

// AttributeMessage carries one pushed attribute change.
// Topic: {prefix}/accessory/{id}/attribute/{name}
type AttributeMessage struct {
	AccessoryID string    `json:"accessory_id"`
	DeviceID    string    `json:"device_id"`
	Attribute   string    `json:"attribute"`
	Value       any       `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

// CommandMessage is published by automation clients.
// Topic: {prefix}/accessory/{id}/command
type CommandMessage struct {
	// ID correlates the command with its ack. Generated when empty.
	ID string `json:"id"`

	// Command is the hub command name (e.g. "on", "setLevel").
	Command string `json:"command"`

	// Values is passed through to the hub unchanged.
	Values any `json:"values,omitempty"`

	// Source names the originating client, for logging.
	Source string `json:"source,omitempty"`
}

// AckStatus is the outcome reported for a command.
type AckStatus string

const (
	// AckSent means the hub accepted the command.
	AckSent AckStatus = "sent"

	// AckFailed means the command was rejected locally or by the hub.
	AckFailed AckStatus = "failed"

	// AckTimeout means the selected route timed out.
	AckTimeout AckStatus = "timeout"
)

// Error codes carried in AckError.Code.
const (
	ErrCodeUnknownAccessory = "UNKNOWN_ACCESSORY"
	ErrCodeInvalidCommand   = "INVALID_COMMAND"
	ErrCodeRejected         = "REJECTED"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeSendFailed       = "SEND_FAILED"
)

// AckMessage reports a command outcome.
// Topic: {prefix}/accessory/{id}/ack
type AckMessage struct {
	CommandID   string    `json:"command_id"`
	AccessoryID string    `json:"accessory_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	Command     string    `json:"command"`
	Status      AckStatus `json:"status"`
	Route       string    `json:"route,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Error       *AckError `json:"error,omitempty"`
}

// AckError details a failed command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransportMessage reports local hub reachability.
// Topic: {prefix}/system/transport (retained)
type TransportMessage struct {
	State     string    `json:"state"`
	Route     string    `json:"route"`
	Timestamp time.Time `json:"timestamp"`
}
