package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

// healthCheckTimeout bounds each dependency check on /health.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Devices   int               `json:"devices"`
	Transport TransportStatus   `json:"transport"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// TransportStatus describes the local dispatch state.
type TransportStatus struct {
	LocalCommands bool   `json:"local_commands"`
	LocalHubIP    string `json:"local_hub_ip,omitempty"`
	LocalState    string `json:"local_state"`
}

// SystemMetrics is the /metrics body.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Devices       DeviceMetrics  `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// DeviceMetrics summarises the device cache.
type DeviceMetrics struct {
	Total          int            `json:"total"`
	ByCapability   map[string]int `json:"by_capability"`
	LastUpdatedUTC string         `json:"last_updated,omitempty"`
}

// handleHealth reports cache size, transport state and dependency checks.
// Any failing check marks the response degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.settings.Snapshot()
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Devices: s.cache.Count(),
		Transport: TransportStatus{
			LocalCommands: snap.LocalEnabled,
			LocalHubIP:    snap.LocalAddress,
			LocalState:    string(transport.StateReachable),
		},
	}
	if s.tracker != nil {
		resp.Transport.LocalState = string(s.tracker.State())
	}

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name].HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleMetrics returns runtime and cache statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Devices: DeviceMetrics{
			ByCapability: make(map[string]int),
		},
	}

	var latest time.Time
	for _, rec := range s.cache.GetAll() {
		metrics.Devices.Total++
		for _, c := range rec.ExposedCapabilities() {
			metrics.Devices.ByCapability[c]++
		}
		if rec.UpdatedAt.After(latest) {
			latest = rec.UpdatedAt
		}
	}
	if !latest.IsZero() {
		metrics.Devices.LastUpdatedUTC = latest.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, metrics)
}
