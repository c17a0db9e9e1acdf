// Package ingest applies single-attribute push updates to the device cache.
//
// A push update changes exactly one attribute of one known device. Updates
// for devices the cache does not hold are dropped and reported as not
// applied; the next reconciliation cycle is what introduces new devices.
package ingest

import (
	"context"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
)

// Logger defines the logging interface used by the Ingestor.
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

// Event is one attribute change pushed by the hub.
type Event struct {
	DeviceID  string
	Attribute string
	Value     any
	Timestamp time.Time

	// DeviceName is the hub's display name, used for change logging only.
	DeviceName string
}

// AttributeNotifier is told about each applied change.
type AttributeNotifier interface {
	RefreshAttribute(h device.Handle, attribute string, value any)
}

// HistoryRecorder appends applied changes to the attribute history.
type HistoryRecorder interface {
	RecordAttributeChange(ctx context.Context, deviceID, attribute string, value any, source string) error
}

// MetricsWriter receives numeric attribute values.
type MetricsWriter interface {
	WriteAttributeMetric(deviceID, attribute string, value float64)
}

// Ingestor applies push updates. Safe for concurrent use.
type Ingestor struct {
	cache       *device.Cache
	notifier    AttributeNotifier
	history     HistoryRecorder
	metrics     MetricsWriter
	logger      Logger
	showChanges bool
}

// New creates an Ingestor over cache. notifier may be nil.
func New(cache *device.Cache, notifier AttributeNotifier) *Ingestor {
	return &Ingestor{
		cache:    cache,
		notifier: notifier,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger. When showChanges is true every applied
// change is logged at info level, otherwise at debug.
func (i *Ingestor) SetLogger(logger Logger, showChanges bool) {
	i.logger = logger
	i.showChanges = showChanges
}

// SetHistory sets the attribute history sink.
func (i *Ingestor) SetHistory(h HistoryRecorder) {
	i.history = h
}

// SetMetrics sets the numeric metrics sink.
func (i *Ingestor) SetMetrics(m MetricsWriter) {
	i.metrics = m
}

// Apply updates one attribute on a cached device and reports whether it
// was applied. Sink failures are logged and do not change the result.
func (i *Ingestor) Apply(ctx context.Context, ev Event) bool {
	if ev.DeviceID == "" || ev.Attribute == "" {
		i.logger.Debug("ignoring malformed attribute update", "device_id", ev.DeviceID, "attribute", ev.Attribute)
		return false
	}

	rec, ok := i.cache.UpdateAttribute(ev.DeviceID, ev.Attribute, ev.Value, ev.Timestamp)
	if !ok {
		i.logger.Debug("attribute update for unknown device", "device_id", ev.DeviceID, "attribute", ev.Attribute)
		return false
	}

	if i.showChanges {
		i.logger.Info("device change event",
			"device", nameOr(ev.DeviceName, rec.Name),
			"attribute", ev.Attribute,
			"value", ev.Value,
		)
	} else {
		i.logger.Debug("attribute updated", "device_id", ev.DeviceID, "attribute", ev.Attribute)
	}

	if i.notifier != nil && !rec.Handle.IsZero() {
		i.notifier.RefreshAttribute(rec.Handle, ev.Attribute, ev.Value)
	}

	if i.history != nil {
		if err := i.history.RecordAttributeChange(ctx, ev.DeviceID, ev.Attribute, ev.Value, device.HistorySourcePush); err != nil {
			i.logger.Warn("failed to record attribute history", "device_id", ev.DeviceID, "error", err)
		}
	}

	if i.metrics != nil {
		if v, ok := NumericValue(ev.Value); ok {
			i.metrics.WriteAttributeMetric(ev.DeviceID, ev.Attribute, v)
		}
	}

	return true
}

// NumericValue converts an attribute value to float64 when it is numeric.
// Numeric strings ("21.5") count; "on"/"off" do not.
func NumericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
