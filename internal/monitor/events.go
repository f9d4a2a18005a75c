package monitor

import (
	"time"

	"github.com/kochj23/SceneFixer/internal/auditor"
	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/infrastructure/mqtt"
)

// WebSocket channels events are broadcast on.
const (
	ChannelDeviceTested   = "device.tested"
	ChannelSceneAudited   = "scene.audited"
	ChannelRepairRecorded = "repair.recorded"
	ChannelSweepProgress  = "sweep.progress"
)

// Sweep names reported in progress events.
const (
	SweepHealthCheck = "health_check"
	SweepToggleAll   = "toggle_all"
	SweepAuditAll    = "audit_all"
)

// Publisher publishes JSON events to the MQTT broker.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// StatusPublisher is a Publisher that also keeps a retained engine status.
// mqtt.Client implements it.
type StatusPublisher interface {
	PublishStatus() error
}

// TimeSeries records results as time-series points. Writes may be
// buffered; Flush is called after every sweep.
type TimeSeries interface {
	WriteProbeResult(d *health.Device, r health.TestResult)
	WriteSceneAudit(s *health.Scene)
	Flush()
}

// Broadcaster pushes events to WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// DeviceEvent is published after each device test.
type DeviceEvent struct {
	Device *health.Device    `json:"device"`
	Result health.TestResult `json:"result"`
}

// SceneEvent is published after each scene audit.
type SceneEvent struct {
	Scene           *health.Scene `json:"scene"`
	HealthPercent   float64       `json:"health_percentage"`
	Recommendations []string      `json:"recommendations"`
}

// ProgressEvent reports sweep progress.
type ProgressEvent struct {
	Sweep    string    `json:"sweep"`
	Fraction float64   `json:"fraction"`
	Current  string    `json:"current"`
	At       time.Time `json:"at"`
}

// fanout delivers engine events to every configured sink. Sinks are
// optional; delivery failures are logged and never reach the engine.
type fanout struct {
	publisher Publisher
	series    TimeSeries
	hub       Broadcaster
	logger    Logger
}

func (f *fanout) DeviceTested(d *health.Device, r health.TestResult) {
	if f.series != nil {
		f.series.WriteProbeResult(d, r)
	}
	evt := DeviceEvent{Device: withoutHistory(d), Result: r}
	f.publish(mqtt.Topics{}.DeviceHealth(d.ID), evt, true)
	f.broadcast(ChannelDeviceTested, evt)
}

func (f *fanout) SceneAudited(s *health.Scene, r auditor.AuditResult) {
	if f.series != nil {
		f.series.WriteSceneAudit(s)
	}
	evt := SceneEvent{Scene: s, HealthPercent: r.HealthPercentage, Recommendations: r.Recommendations}
	f.publish(mqtt.Topics{}.SceneHealth(s.ID), evt, true)
	f.broadcast(ChannelSceneAudited, evt)
}

func (f *fanout) RepairRecorded(a health.RepairAction) {
	f.publish(mqtt.Topics{}.Repair(a.SceneID), a, false)
	f.broadcast(ChannelRepairRecorded, a)
}

func (f *fanout) progress(sweep string) func(float64, string) {
	return func(fraction float64, current string) {
		f.broadcast(ChannelSweepProgress, ProgressEvent{
			Sweep:    sweep,
			Fraction: fraction,
			Current:  current,
			At:       time.Now().UTC(),
		})
	}
}

// sweepFinished flushes buffered time-series points and refreshes the
// retained engine status.
func (f *fanout) sweepFinished() {
	if f.series != nil {
		f.series.Flush()
	}
	if sp, ok := f.publisher.(StatusPublisher); ok {
		if err := sp.PublishStatus(); err != nil {
			f.logger.Debug("status publish failed", "error", err)
		}
	}
}

func (f *fanout) publish(topic string, v any, retained bool) {
	if f.publisher == nil {
		return
	}
	if err := f.publisher.PublishJSON(topic, v, retained); err != nil {
		f.logger.Debug("event publish failed", "topic", topic, "error", err)
	}
}

func (f *fanout) broadcast(channel string, v any) {
	if f.hub != nil {
		f.hub.Broadcast(channel, v)
	}
}

// withoutHistory drops the history from an event copy; subscribers get
// the derived scores, not every result.
func withoutHistory(d *health.Device) *health.Device {
	cpy := d.DeepCopy()
	cpy.History = nil
	return cpy
}
