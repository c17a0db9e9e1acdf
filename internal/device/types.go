package device

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Attributes holds a device's attribute values keyed by attribute name.
//
// Examples:
//   - Switch: {"switch": "on"}
//   - Dimmer: {"switch": "on", "level": 75}
//   - Sensor: {"temperature": 21.5, "battery": 88}
type Attributes map[string]any

// SnapshotEntry is the hub's description of one device in a full device list.
// Entries are values: a newer snapshot replaces an entry, it never mutates one.
type SnapshotEntry struct {
	DeviceID     string       `json:"deviceid"`
	Name         string       `json:"name"`
	Capabilities Capabilities `json:"capabilities"`
	Attributes   Attributes   `json:"attributes"`
}

// Capabilities is an ordered list of capability names.
//
// The hub encodes capabilities either as a JSON array of names or as an
// object keyed by capability name ({"Switch": 1, "Switch Level": 1}).
// Both forms decode to the same list; object keys are sorted.
type Capabilities []string

// UnmarshalJSON accepts both the array and the object encoding.
func (c *Capabilities) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = list
		return nil
	}

	var set map[string]json.RawMessage
	if err := json.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("%w: capabilities must be an array or object", ErrInvalidSnapshot)
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	*c = names
	return nil
}

// Has reports whether name is in the list.
func (c Capabilities) Has(name string) bool {
	for _, n := range c {
		if n == name {
			return true
		}
	}
	return false
}

// Handle is a non-owning reference to a device's presentation object.
// The presentation layer resolves it through DeviceID; it never holds a
// pointer into the cache.
type Handle struct {
	// ID is the stable presentation identifier (e.g. accessory UUID).
	ID string `json:"id"`

	// DeviceID is the cache key the presentation object belongs to.
	DeviceID string `json:"device_id"`
}

// IsZero reports whether the handle has not been assigned.
func (h Handle) IsZero() bool {
	return h.ID == ""
}

// Record is the cached, locally addressable state of one device.
type Record struct {
	DeviceID             string       `json:"deviceid"`
	Name                 string       `json:"name"`
	Attributes           Attributes   `json:"attributes"`
	Capabilities         Capabilities `json:"capabilities"`
	ExcludedCapabilities []string     `json:"excluded_capabilities,omitempty"`
	Handle               Handle       `json:"handle"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// NewRecord builds a cache record from a snapshot entry.
// The record gets its own copies of the entry's maps and slices.
func NewRecord(entry SnapshotEntry, excluded []string) Record {
	rec := Record{
		DeviceID:     entry.DeviceID,
		Name:         entry.Name,
		Attributes:   deepCopyMap(entry.Attributes),
		Capabilities: copyStrings(entry.Capabilities),
		UpdatedAt:    time.Now().UTC(),
	}
	if len(excluded) > 0 {
		rec.ExcludedCapabilities = copyStrings(excluded)
	}
	return rec
}

// ExposedCapabilities returns the capabilities not excluded by configuration.
func (r *Record) ExposedCapabilities() []string {
	if len(r.ExcludedCapabilities) == 0 {
		return copyStrings(r.Capabilities)
	}
	excluded := make(map[string]bool, len(r.ExcludedCapabilities))
	for _, c := range r.ExcludedCapabilities {
		excluded[c] = true
	}
	out := make([]string, 0, len(r.Capabilities))
	for _, c := range r.Capabilities {
		if !excluded[c] {
			out = append(out, c)
		}
	}
	return out
}

// DeepCopy creates a complete independent copy of the Record.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}

	cpy := *r
	cpy.Attributes = deepCopyMap(r.Attributes)
	cpy.Capabilities = copyStrings(r.Capabilities)
	cpy.ExcludedCapabilities = copyStrings(r.ExcludedCapabilities)

	return &cpy
}

// Snapshot is one full, point-in-time device list fetched from the hub.
type Snapshot struct {
	Devices  []SnapshotEntry `json:"deviceList"`
	Location Location        `json:"location"`
}

// Location carries hub-wide settings delivered alongside the device list.
type Location struct {
	// TemperatureUnit is "F" or "C".
	TemperatureUnit string `json:"temperature_scale"`

	// LocalAddress is the hub's LAN address. Empty when the hub did not report one.
	LocalAddress string `json:"hubIP,omitempty"`

	// LocalCommands is the hub's preference for local command delivery.
	// Only meaningful when LocalAddress is set.
	LocalCommands bool `json:"local_commands,omitempty"`
}

// copyStrings returns an independent copy of s, preserving nil.
func copyStrings[S ~[]string](s S) S {
	if s == nil {
		return nil
	}
	cpy := make(S, len(s))
	copy(cpy, s)
	return cpy
}

// deepCopyMap creates a deep copy of an attribute map.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case Attributes:
		return Attributes(deepCopyMap(val))
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, float64, etc.) are safe to copy by value
		return v
	}
}
