// Package influxdb provides InfluxDB connectivity for HubLink telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health monitoring.
//
// # Measurements
//
//   - device_attribute: numeric attribute values from push updates
//     (tags device_id, attribute)
//   - dispatch: one point per command or announce send
//     (tags route, operation; fields success, latency_ms)
//   - refresh_cycle: reconciliation cycle summaries (tag source)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAttributeMetric("d1", "temperature", 21.5)
//
// The client satisfies ingest.MetricsWriter and transport.Metrics.
package influxdb
