package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "hublink"

// Topics builds HubLink MQTT topics under a configurable prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("hublink")
//	stateTopic := topics.AccessoryState("0b6e8c1f-...")
//	// Returns: "hublink/accessory/0b6e8c1f-.../state"
type Topics struct {
	Prefix string
}

// NewTopics returns a Topics builder for prefix, falling back to
// DefaultTopicPrefix when prefix is empty. Trailing slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// =============================================================================
// Accessory Topics
// =============================================================================

// AccessoryConfig returns the retained topic describing an accessory.
//
// Example: hublink/accessory/{id}/config
func (t Topics) AccessoryConfig(accessoryID string) string {
	return fmt.Sprintf("%s/accessory/%s/config", t.Prefix, accessoryID)
}

// AccessoryState returns the retained topic carrying an accessory's full state.
//
// Example: hublink/accessory/{id}/state
func (t Topics) AccessoryState(accessoryID string) string {
	return fmt.Sprintf("%s/accessory/%s/state", t.Prefix, accessoryID)
}

// AccessoryAttribute returns the topic for a single attribute change.
//
// Example: hublink/accessory/{id}/attribute/switch
func (t Topics) AccessoryAttribute(accessoryID, attribute string) string {
	return fmt.Sprintf("%s/accessory/%s/attribute/%s", t.Prefix, accessoryID, attribute)
}

// AccessoryCommand returns the topic automation clients publish commands on.
//
// Example: hublink/accessory/{id}/command
func (t Topics) AccessoryCommand(accessoryID string) string {
	return fmt.Sprintf("%s/accessory/%s/command", t.Prefix, accessoryID)
}

// AccessoryAck returns the topic command acknowledgements are published on.
//
// Example: hublink/accessory/{id}/ack
func (t Topics) AccessoryAck(accessoryID string) string {
	return fmt.Sprintf("%s/accessory/%s/ack", t.Prefix, accessoryID)
}

// AllAccessoryCommands returns a pattern matching every accessory command topic.
//
// Pattern: hublink/accessory/+/command
func (t Topics) AllAccessoryCommands() string {
	return fmt.Sprintf("%s/accessory/+/command", t.Prefix)
}

// ParseAccessoryCommand extracts the accessory ID from a command topic.
func (t Topics) ParseAccessoryCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/accessory/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/command")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the bridge's online/offline status topic.
//
// Example: hublink/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.Prefix)
}

// SystemTransport returns the retained topic carrying local hub
// reachability and the route commands currently take.
//
// Example: hublink/system/transport
func (t Topics) SystemTransport() string {
	return fmt.Sprintf("%s/system/transport", t.Prefix)
}
