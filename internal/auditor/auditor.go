package auditor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/platform"
	"github.com/kochj23/SceneFixer/internal/scene"
)

// Logger defines the logging interface used by the Auditor.
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

// Notifier receives each completed audit with the updated scene.
type Notifier interface {
	SceneAudited(s *health.Scene, r AuditResult)
}

// ProgressFunc receives the completed fraction (0..1) and the name of the
// scene just audited.
type ProgressFunc func(fraction float64, current string)

// RecommendationSceneNotFound is the only recommendation of an audit whose
// scene no longer resolves on the platform.
const RecommendationSceneNotFound = "Scene not found"

// AuditResult is the outcome of one scene audit.
type AuditResult struct {
	SceneID   string `json:"scene_id"`
	SceneName string `json:"scene_name"`

	// Found is false when the platform could not resolve the scene.
	Found bool `json:"found"`

	Status             health.SceneStatus `json:"status"`
	HealthPercentage   float64            `json:"health_percentage"`
	TotalDevices       int                `json:"total_devices"`
	ReachableDevices   int                `json:"reachable_devices"`
	UnreachableDevices int                `json:"unreachable_devices"`
	ReachableNames     []string           `json:"reachable_names"`
	UnreachableNames   []string           `json:"unreachable_names"`
	Recommendations    []string           `json:"recommendations"`
	AuditedAt          time.Time          `json:"audited_at"`
}

// SceneTestResult is the outcome of executing a scene.
type SceneTestResult struct {
	SceneID      string    `json:"scene_id"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ResponseTime float64   `json:"response_time_ms"`
	Error        *string   `json:"error,omitempty"`
}

// Auditor audits scenes.
//
// Thread Safety: AuditScene and TestScene are safe for concurrent use.
// Only one AuditAll runs at a time.
type Auditor struct {
	platform platform.Platform
	scenes   *scene.Registry
	notifier Notifier
	delay    time.Duration
	logger   Logger

	running atomic.Bool
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates an auditor.
//
// Parameters:
//   - p: platform used for action-set resolution and reachability
//   - scenes: registry that owns the scene records
//   - notifier: receives completed audits (may be nil)
//   - delay: pause between scenes in AuditAll
//   - logger: Logger instance (may be nil)
func New(p platform.Platform, scenes *scene.Registry, notifier Notifier, delay time.Duration, logger Logger) *Auditor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Auditor{
		platform: p,
		scenes:   scenes,
		notifier: notifier,
		delay:    delay,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// IsRunning reports whether an AuditAll sweep is active.
func (a *Auditor) IsRunning() bool {
	return a.running.Load()
}

// AuditScene resolves the scene's actions, reads the reachability of each
// distinct device and stores the new health snapshot on the scene.
//
// When the platform cannot resolve the scene the result carries a single
// "Scene not found" recommendation and the stored record is untouched.
//
// Returns:
//   - AuditResult: counts, unreachable device IDs and recommendations
//   - error: scene.ErrSceneNotFound for an unknown ID, nothing else
func (a *Auditor) AuditScene(ctx context.Context, sceneID string) (AuditResult, error) {
	s, err := a.scenes.Get(sceneID)
	if err != nil {
		return AuditResult{}, err
	}

	result := AuditResult{
		SceneID:   s.ID,
		SceneName: s.Name,
		Status:    s.HealthStatus,
		AuditedAt: time.Now().UTC(),
	}

	actions, err := a.platform.SceneActions(ctx, sceneID)
	if err != nil {
		a.logger.Warn("resolving scene actions failed", "scene_id", sceneID, "error", err)
		result.HealthPercentage = s.HealthPercentage()
		result.Recommendations = []string{RecommendationSceneNotFound}
		return result, nil
	}
	result.Found = true

	for _, act := range dedupe(actions) {
		name := act.DeviceName
		if name == "" {
			name = act.DeviceID
		}
		reachable, err := a.platform.IsReachable(ctx, act.DeviceID)
		if err != nil {
			a.logger.Debug("reachability read failed", "scene_id", sceneID, "device_id", act.DeviceID, "error", err)
			reachable = false
		}
		if reachable {
			result.ReachableNames = append(result.ReachableNames, name)
		} else {
			result.UnreachableNames = append(result.UnreachableNames, name)
		}
	}

	result.ReachableDevices = len(result.ReachableNames)
	result.UnreachableDevices = len(result.UnreachableNames)
	result.TotalDevices = result.ReachableDevices + result.UnreachableDevices
	result.Status = health.ClassifyScene(result.TotalDevices, result.UnreachableDevices)
	result.HealthPercentage = health.HealthPercentage(result.ReachableDevices, result.TotalDevices)
	result.Recommendations = recommend(result)

	updated, err := a.scenes.Update(sceneID, func(s *health.Scene) {
		s.TotalDevices = result.TotalDevices
		s.ReachableDevices = result.ReachableDevices
		s.UnreachableDevices = result.UnreachableDevices
		s.ReachableNames = append([]string(nil), result.ReachableNames...)
		s.UnreachableNames = append([]string(nil), result.UnreachableNames...)
		s.HealthStatus = result.Status
		at := result.AuditedAt
		s.LastAudit = &at
	})
	if err != nil {
		// Dropped by a concurrent catalog sync.
		return result, err
	}

	a.logger.Debug("scene audited",
		"scene_id", sceneID,
		"status", string(result.Status),
		"unreachable", result.UnreachableDevices,
		"total", result.TotalDevices,
	)
	if a.notifier != nil {
		a.notifier.SceneAudited(updated, result)
	}
	return result, nil
}

// AuditAll audits every scene in name order, pausing between scenes.
// Progress is reported after each scene and ends at 1.0.
func (a *Auditor) AuditAll(ctx context.Context, progress ProgressFunc) ([]AuditResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer a.running.Store(false)

	if progress == nil {
		progress = func(float64, string) {}
	}

	scenes := a.scenes.List()
	a.logger.Info("audit sweep started", "scenes", len(scenes))

	results := make([]AuditResult, 0, len(scenes))
	for i, s := range scenes {
		if i > 0 {
			if err := a.sleep(ctx, a.delay); err != nil {
				return results, err
			}
		}
		r, err := a.AuditScene(ctx, s.ID)
		if err != nil {
			a.logger.Debug("audit skipped scene", "scene_id", s.ID, "error", err)
		} else {
			results = append(results, r)
		}
		progress(float64(i+1)/float64(len(scenes)), s.Name)
	}
	if len(scenes) == 0 {
		progress(1.0, "")
	}

	a.logger.Info("audit sweep completed", "results", len(results))
	return results, nil
}

// TestScene executes the scene on the platform and reports the outcome.
// An execution failure is a result with Success false, not an error.
func (a *Auditor) TestScene(ctx context.Context, sceneID string) (SceneTestResult, error) {
	if _, err := a.scenes.Get(sceneID); err != nil {
		return SceneTestResult{}, err
	}

	start := time.Now()
	err := a.platform.ExecuteScene(ctx, sceneID)
	result := SceneTestResult{
		SceneID:      sceneID,
		Timestamp:    time.Now().UTC(),
		Success:      err == nil,
		ResponseTime: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		a.logger.Warn("scene execution failed", "scene_id", sceneID, "error", err)
	}
	return result, nil
}

// dedupe keeps the first action for each device, preserving order.
func dedupe(actions []platform.Action) []platform.Action {
	seen := make(map[string]bool, len(actions))
	out := make([]platform.Action, 0, len(actions))
	for _, act := range actions {
		if seen[act.DeviceID] {
			continue
		}
		seen[act.DeviceID] = true
		out = append(out, act)
	}
	return out
}

// recommend builds the human-readable advice for an audit.
func recommend(r AuditResult) []string {
	if r.UnreachableDevices == 0 {
		return nil
	}

	recs := []string{fmt.Sprintf("%d of %d devices unreachable", r.UnreachableDevices, r.TotalDevices)}
	for _, name := range r.UnreachableNames {
		recs = append(recs, fmt.Sprintf("Check that %q is powered and connected", name))
	}
	if r.HealthPercentage < 50 {
		recs = append(recs, "Most of this scene's devices are unreachable; consider rebuilding the scene")
	}
	return recs
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
