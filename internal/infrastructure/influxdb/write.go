package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kochj23/SceneFixer/internal/health"
)

// Measurement names.
const (
	MeasurementProbe      = "device_probe"
	MeasurementSceneAudit = "scene_audit"
)

// WriteProbeResult records one probe or toggle test outcome for a device.
func (c *Client) WriteProbeResult(d *health.Device, r health.TestResult) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(probePoint(d, r))
}

// WriteSceneAudit records a scene's reachability after an audit.
func (c *Client) WriteSceneAudit(s *health.Scene) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sceneAuditPoint(s, time.Now()))
}

// probePoint tags by device identity and category; the result and the
// device's derived scores are fields.
func probePoint(d *health.Device, r health.TestResult) *write.Point {
	tags := map[string]string{
		"device_id":    d.ID,
		"manufacturer": string(d.Manufacturer),
		"category":     string(d.Category),
		"protocol":     string(d.Protocol),
	}
	if d.Room != nil {
		tags["room"] = *d.Room
	}

	fields := map[string]any{
		"success":     r.Success,
		"reliability": d.ReliabilityScore,
		"status":      string(d.HealthStatus),
	}
	if r.ResponseTime != nil {
		fields["response_time_ms"] = *r.ResponseTime
	}

	return write.NewPoint(MeasurementProbe, tags, fields, r.Timestamp)
}

func sceneAuditPoint(s *health.Scene, at time.Time) *write.Point {
	if s.LastAudit != nil {
		at = *s.LastAudit
	}
	return write.NewPoint(
		MeasurementSceneAudit,
		map[string]string{"scene_id": s.ID},
		map[string]any{
			"total":             s.TotalDevices,
			"reachable":         s.ReachableDevices,
			"unreachable":       s.UnreachableDevices,
			"health_percentage": s.HealthPercentage(),
			"status":            string(s.HealthStatus),
		},
		at,
	)
}
