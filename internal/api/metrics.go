package api

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"
)

// componentCheckTimeout bounds each component health check in /metrics.
const componentCheckTimeout = 2 * time.Second

// HealthChecker is implemented by infrastructure components (database,
// MQTT, InfluxDB) that can report connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string                     `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Runtime       RuntimeMetrics             `json:"runtime"`
	WebSocket     WSMetrics                  `json:"websocket"`
	Devices       DeviceMetrics              `json:"devices"`
	Scenes        SceneMetrics               `json:"scenes"`
	Backups       int                        `json:"backups"`
	Components    map[string]ComponentStatus `json:"components"`
	Database      *DatabaseMetrics           `json:"database,omitempty"`
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
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// DeviceMetrics summarises device health.
type DeviceMetrics struct {
	Total           int            `json:"total"`
	ByHealth        map[string]int `json:"by_health"`
	ByCategory      map[string]int `json:"by_category"`
	MeanReliability float64        `json:"mean_reliability"`
	SweepRunning    bool           `json:"sweep_running"`
}

// SceneMetrics summarises scene health.
type SceneMetrics struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"by_status"`
	SweepRunning bool           `json:"sweep_running"`
}

// ComponentStatus reports one infrastructure component.
type ComponentStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, engine and component metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
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
		Backups:    len(s.monitor.Backups()),
		Components: make(map[string]ComponentStatus, len(s.checks)),
	}
	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
		metrics.WebSocket.DroppedEvents = s.hub.Dropped()
	}

	devices := s.monitor.Devices()
	metrics.Devices = DeviceMetrics{
		Total:        len(devices),
		ByHealth:     make(map[string]int),
		ByCategory:   make(map[string]int),
		SweepRunning: s.monitor.ProbeSweepRunning(),
	}
	var reliability float64
	for _, d := range devices {
		metrics.Devices.ByHealth[string(d.HealthStatus)]++
		metrics.Devices.ByCategory[string(d.Category)]++
		reliability += d.ReliabilityScore
	}
	if len(devices) > 0 {
		metrics.Devices.MeanReliability = reliability / float64(len(devices))
	}

	scenes := s.monitor.Scenes()
	metrics.Scenes = SceneMetrics{
		Total:        len(scenes),
		ByStatus:     make(map[string]int),
		SweepRunning: s.monitor.AuditSweepRunning(),
	}
	for _, sc := range scenes {
		metrics.Scenes.ByStatus[string(sc.HealthStatus)]++
	}

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()
		st := ComponentStatus{Healthy: err == nil}
		if err != nil {
			st.Error = err.Error()
		}
		metrics.Components[name] = st
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

// StatsProvider reports connection pool statistics. *sql.DB and
// database.DB satisfy it.
type StatsProvider interface {
	Stats() sql.DBStats
}
