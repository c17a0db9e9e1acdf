package device

import (
	"context"
	"time"
)

// Attribute history source values.
const (
	HistorySourcePush     = "push"
	HistorySourceSnapshot = "snapshot"
)

// HistoryEntry represents a single recorded attribute change.
//
// History is append-only. It is an audit trail and is never read back
// to rebuild the cache.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the hub's identifier for the device.
	DeviceID string `json:"device_id"`

	// Attribute is the attribute name (e.g. "switch", "level").
	Attribute string `json:"attribute"`

	// Value is the JSON-decoded attribute value.
	Value any `json:"value"`

	// Source identifies how the change arrived (push, snapshot).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves attribute change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordAttributeChange appends one attribute change.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Hub device identifier
	//   - attribute: Attribute name
	//   - value: New value (must be JSON-encodable)
	//   - source: Origin of the change (push, snapshot)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordAttributeChange(ctx context.Context, deviceID, attribute string, value any, source string) error

	// GetHistory returns recent attribute changes for the device, newest first.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error)
}
