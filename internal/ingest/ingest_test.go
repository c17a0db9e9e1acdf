package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
)

type refresh struct {
	handle    device.Handle
	attribute string
	value     any
}

// mockNotifier records RefreshAttribute calls.
type mockNotifier struct {
	mu    sync.Mutex
	calls []refresh
}

func (m *mockNotifier) RefreshAttribute(h device.Handle, attribute string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, refresh{handle: h, attribute: attribute, value: value})
}

// mockHistory records history writes and can fail.
type mockHistory struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (m *mockHistory) RecordAttributeChange(_ context.Context, deviceID, attribute string, _ any, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, deviceID+"/"+attribute)
	return m.err
}

// mockMetrics records numeric values.
type mockMetrics struct {
	mu     sync.Mutex
	values map[string]float64
}

func (m *mockMetrics) WriteAttributeMetric(deviceID, attribute string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]float64)
	}
	m.values[deviceID+"/"+attribute] = value
}

func seededCache() *device.Cache {
	cache := device.NewCache()
	cache.Put(device.Record{
		DeviceID:   "d1",
		Name:       "Lamp",
		Attributes: device.Attributes{"switch": "off", "level": 10.0},
		Handle:     device.Handle{ID: "h-1", DeviceID: "d1"},
	})
	return cache
}

func TestApply_KnownDevice(t *testing.T) {
	cache := seededCache()
	notifier := &mockNotifier{}
	history := &mockHistory{}
	metrics := &mockMetrics{}

	ing := New(cache, notifier)
	ing.SetHistory(history)
	ing.SetMetrics(metrics)

	ok := ing.Apply(context.Background(), Event{DeviceID: "d1", Attribute: "level", Value: 55.0, Timestamp: time.Now()})
	if !ok {
		t.Fatal("Apply() = false, want true")
	}

	rec, _ := cache.Get("d1")
	if rec.Attributes["level"] != 55.0 {
		t.Errorf("level = %v, want 55", rec.Attributes["level"])
	}
	if rec.Attributes["switch"] != "off" {
		t.Errorf("switch = %v, other attributes must not change", rec.Attributes["switch"])
	}

	if len(notifier.calls) != 1 || notifier.calls[0].handle.ID != "h-1" || notifier.calls[0].attribute != "level" {
		t.Errorf("notifier calls = %+v", notifier.calls)
	}
	if len(history.entries) != 1 || history.entries[0] != "d1/level" {
		t.Errorf("history = %v", history.entries)
	}
	if metrics.values["d1/level"] != 55 {
		t.Errorf("metrics = %v", metrics.values)
	}
}

func TestApply_UnknownDevice(t *testing.T) {
	cache := seededCache()
	notifier := &mockNotifier{}
	history := &mockHistory{}

	ing := New(cache, notifier)
	ing.SetHistory(history)

	if ing.Apply(context.Background(), Event{DeviceID: "ghost", Attribute: "switch", Value: "on"}) {
		t.Error("Apply() = true for unknown device")
	}
	if cache.Count() != 1 {
		t.Errorf("Count() = %d, want 1", cache.Count())
	}
	if _, ok := cache.Get("ghost"); ok {
		t.Error("unknown device was inserted")
	}
	if len(notifier.calls) != 0 || len(history.entries) != 0 {
		t.Error("sinks called for unknown device")
	}
}

func TestApply_Malformed(t *testing.T) {
	ing := New(seededCache(), nil)
	if ing.Apply(context.Background(), Event{DeviceID: "d1"}) {
		t.Error("Apply() without attribute = true")
	}
}

func TestApply_SinkFailureStillApplied(t *testing.T) {
	ing := New(seededCache(), nil)
	ing.SetHistory(&mockHistory{err: errors.New("disk full")})

	if !ing.Apply(context.Background(), Event{DeviceID: "d1", Attribute: "switch", Value: "on"}) {
		t.Error("Apply() = false when only the history sink failed")
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{21.5, 21.5, true},
		{7, 7, true},
		{"42", 42, true},
		{"on", 0, false},
		{true, 1, true},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := NumericValue(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("NumericValue(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
