package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by HubLink.
const (
	MeasurementAttribute = "device_attribute"
	MeasurementDispatch  = "dispatch"
	MeasurementCycle     = "refresh_cycle"
)

// WriteAttributeMetric records a numeric attribute value from a push,
// tagged by device and attribute name.
//
//	client.WriteAttributeMetric("d1", "temperature", 21.5)
func (c *Client) WriteAttributeMetric(deviceID, attribute string, value float64) {
	c.write(MeasurementAttribute,
		map[string]string{"device_id": deviceID, "attribute": attribute},
		map[string]any{"value": value},
	)
}

// RecordDispatch records one command or announce send. route is "local"
// or "remote" and operation is "command" or "announce".
func (c *Client) RecordDispatch(route, operation string, success bool, latency time.Duration) {
	c.write(MeasurementDispatch,
		map[string]string{"route": route, "operation": operation},
		map[string]any{
			"success":    success,
			"latency_ms": float64(latency.Microseconds()) / 1000,
		},
	)
}

// WriteCycleMetric records the outcome of a reconciliation cycle, tagged
// by what started it.
func (c *Client) WriteCycleMetric(source string, created, updated, removed, cacheSize int, duration time.Duration) {
	c.write(MeasurementCycle,
		map[string]string{"source": source},
		map[string]any{
			"created":     created,
			"updated":     updated,
			"removed":     removed,
			"cache_size":  cacheSize,
			"duration_ms": duration.Milliseconds(),
		},
	)
}

// write queues one point, or drops it when the client is not connected.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
