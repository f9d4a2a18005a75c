package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kochj23/SceneFixer/internal/audit"
	"github.com/kochj23/SceneFixer/internal/auditor"
	"github.com/kochj23/SceneFixer/internal/device"
	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/infrastructure/config"
	"github.com/kochj23/SceneFixer/internal/platform"
	"github.com/kochj23/SceneFixer/internal/prober"
	"github.com/kochj23/SceneFixer/internal/repair"
	"github.com/kochj23/SceneFixer/internal/scene"
)

// Logger defines the logging interface used by the Service.
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

// BackupStore persists scene backups and lists them.
type BackupStore interface {
	repair.BackupStore
	List() []health.SceneBackup
	ForScene(sceneID string) []health.SceneBackup
	Len() int
}

// HistoryPruner deletes stored test results older than a given age.
// device.SQLiteHistoryRepository implements it.
type HistoryPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HistoryReader serves stored test results for a device.
type HistoryReader interface {
	ListForDevice(ctx context.Context, deviceID string, limit int) ([]health.TestResult, error)
}

// Deps holds the collaborators of a Service.
type Deps struct {
	// Platform is required.
	Platform platform.Platform

	// Backups is required.
	Backups BackupStore

	// RepairLog defaults to an in-memory log.
	RepairLog audit.Repository

	// History persists test results. Optional.
	History device.HistoryRepository

	// Event sinks. All optional.
	Publisher   Publisher
	TimeSeries  TimeSeries
	Broadcaster Broadcaster

	Health config.HealthConfig

	// ComponentLogger returns the logger for a named component. Optional.
	ComponentLogger func(name string) Logger
}

// Status summarises the engine for health endpoints.
type Status struct {
	Devices        int    `json:"devices"`
	Scenes         int    `json:"scenes"`
	Backups        int    `json:"backups"`
	ProbeRunning   bool   `json:"probe_sweep_running"`
	AuditRunning   bool   `json:"audit_sweep_running"`
	LastRefreshErr string `json:"last_refresh_error,omitempty"`
}

// Service wires the health engine together.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	platform  platform.Platform
	devices   *device.Registry
	scenes    *scene.Registry
	prober    *prober.Prober
	auditor   *auditor.Auditor
	repairs   *repair.Orchestrator
	backups   BackupStore
	repairLog audit.Repository
	history   device.HistoryRepository
	events    *fanout
	interval  time.Duration
	maxAge    time.Duration
	logger    Logger

	refreshMu  sync.Mutex
	errMu      sync.Mutex
	refreshErr error
}

// New constructs a Service and all of its components. Catalogs are empty
// until the first Refresh.
//
// Parameters:
//   - deps: Platform and Backups are required; every other sink is optional
//
// Returns:
//   - *Service: engine ready for Refresh and Run
//   - error: if a required dependency is missing
func New(deps Deps) (*Service, error) {
	if deps.Platform == nil {
		return nil, errors.New("monitor: platform is required")
	}
	if deps.Backups == nil {
		return nil, errors.New("monitor: backup store is required")
	}

	component := deps.ComponentLogger
	if component == nil {
		component = func(string) Logger { return noopLogger{} }
	}
	if deps.RepairLog == nil {
		deps.RepairLog = audit.NewMemoryRepository()
	}

	h := deps.Health
	s := &Service{
		platform:  deps.Platform,
		backups:   deps.Backups,
		repairLog: deps.RepairLog,
		history:   deps.History,
		interval:  time.Duration(h.SweepInterval) * time.Second,
		maxAge:    h.MaxAge(),
		logger:    component("monitor"),
	}
	s.events = &fanout{
		publisher: deps.Publisher,
		series:    deps.TimeSeries,
		hub:       deps.Broadcaster,
		logger:    s.logger,
	}

	s.devices = device.NewRegistry(device.Options{
		Retention: health.RetentionFromConfig(h.HistoryLimit),
		Window:    h.StatusWindow,
		History:   deps.History,
		Logger:    component("device"),
	})
	s.scenes = scene.NewRegistry()
	s.scenes.SetLogger(component("scene"))

	s.prober = prober.New(deps.Platform, s.devices, s.events, prober.Config{
		ProbeDelay:  config.Millis(h.ProbeDelay),
		TogglePause: config.Millis(h.TogglePause),
		ToggleDelay: config.Millis(h.ToggleDelay),
	}, component("prober"))
	s.auditor = auditor.New(deps.Platform, s.scenes, s.events, config.Millis(h.AuditDelay), component("auditor"))
	s.repairs = repair.New(deps.Platform, s.scenes, deps.Backups, deps.RepairLog, s, s.events, component("repair"))

	return s, nil
}

// Refresh reloads the device and scene catalogs from the platform. Known
// records keep their history and last audit; new devices are seeded from
// the stored test history.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	err := s.refresh(ctx)
	s.errMu.Lock()
	s.refreshErr = err
	s.errMu.Unlock()
	return err
}

func (s *Service) refresh(ctx context.Context) error {
	devices, err := s.platform.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	scenes, err := s.platform.ListScenes(ctx)
	if err != nil {
		return fmt.Errorf("listing scenes: %w", err)
	}
	nd := s.devices.Sync(devices)
	ns := s.scenes.Sync(scenes)
	s.logger.Info("catalog refreshed", "devices", nd, "scenes", ns)

	// Devices seen for the first time get their stored history. A failure
	// leaves them pending for the next refresh.
	if err := s.devices.LoadHistory(ctx); err != nil {
		s.logger.Warn("loading test history failed", "error", err)
	}
	return nil
}

// RefreshScene reloads the catalogs and re-audits one scene. The repair
// orchestrator calls it after removing actions.
func (s *Service) RefreshScene(ctx context.Context, sceneID string) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	if _, err := s.auditor.AuditScene(ctx, sceneID); err != nil {
		return fmt.Errorf("re-auditing scene: %w", err)
	}
	return nil
}

// Status reports registry sizes and sweep state.
func (s *Service) Status() Status {
	st := Status{
		Devices:      s.devices.Len(),
		Scenes:       s.scenes.Len(),
		Backups:      s.backups.Len(),
		ProbeRunning: s.prober.IsRunning(),
		AuditRunning: s.auditor.IsRunning(),
	}
	s.errMu.Lock()
	if s.refreshErr != nil {
		st.LastRefreshErr = s.refreshErr.Error()
	}
	s.errMu.Unlock()
	return st
}

// Devices returns every device record.
func (s *Service) Devices() []*health.Device { return s.devices.List() }

// Device returns one device record.
func (s *Service) Device(id string) (*health.Device, error) { return s.devices.Get(id) }

// DeviceHistory returns stored results for a device, newest first. Without
// a history repository it serves the in-memory history.
func (s *Service) DeviceHistory(ctx context.Context, id string, limit int) ([]health.TestResult, error) {
	d, err := s.devices.Get(id)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		return s.history.ListForDevice(ctx, id, limit)
	}

	out := make([]health.TestResult, 0, len(d.History))
	for i := len(d.History) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, d.History[i])
	}
	return out, nil
}

// Scenes returns every scene record.
func (s *Service) Scenes() []*health.Scene { return s.scenes.List() }

// ScenesByStatus returns scenes in one health state.
func (s *Service) ScenesByStatus(status health.SceneStatus) []*health.Scene {
	return s.scenes.ListByStatus(status)
}

// Scene returns one scene record.
func (s *Service) Scene(id string) (*health.Scene, error) { return s.scenes.Get(id) }

// Backups returns every scene backup in insertion order.
func (s *Service) Backups() []health.SceneBackup { return s.backups.List() }

// SceneBackups returns the backups of one scene, oldest first.
func (s *Service) SceneBackups(sceneID string) []health.SceneBackup {
	return s.backups.ForScene(sceneID)
}

// RepairHistory returns the repair log.
func (s *Service) RepairHistory(ctx context.Context, filter audit.Filter) (*audit.ListResult, error) {
	return s.repairLog.List(ctx, filter)
}

// Probe tests one device.
func (s *Service) Probe(ctx context.Context, deviceID string) (health.TestResult, error) {
	return s.prober.Probe(ctx, deviceID)
}

// ToggleProbe toggle-tests one device.
func (s *Service) ToggleProbe(ctx context.Context, deviceID string) (health.TestResult, error) {
	return s.prober.ToggleProbe(ctx, deviceID)
}

// RunFullHealthCheck probes every device. Progress is broadcast on the
// sweep.progress channel and passed to progress when non-nil.
func (s *Service) RunFullHealthCheck(ctx context.Context, progress prober.ProgressFunc) ([]health.TestResult, error) {
	results, err := s.prober.RunFullHealthCheck(ctx, s.track(SweepHealthCheck, progress))
	s.finishSweep(err)
	return results, err
}

// ToggleAllSafe toggle-tests every safe device.
func (s *Service) ToggleAllSafe(ctx context.Context, progress prober.ProgressFunc) ([]health.TestResult, error) {
	results, err := s.prober.ToggleAllSafe(ctx, s.track(SweepToggleAll, progress))
	s.finishSweep(err)
	return results, err
}

// ProbeSweepRunning reports whether a health check or toggle-all is active.
func (s *Service) ProbeSweepRunning() bool { return s.prober.IsRunning() }

// AuditScene audits one scene.
func (s *Service) AuditScene(ctx context.Context, sceneID string) (auditor.AuditResult, error) {
	return s.auditor.AuditScene(ctx, sceneID)
}

// AuditAll audits every scene.
func (s *Service) AuditAll(ctx context.Context, progress auditor.ProgressFunc) ([]auditor.AuditResult, error) {
	results, err := s.auditor.AuditAll(ctx, s.track(SweepAuditAll, progress))
	s.finishSweep(err)
	return results, err
}

// AuditSweepRunning reports whether an audit-all sweep is active.
func (s *Service) AuditSweepRunning() bool { return s.auditor.IsRunning() }

// TestScene executes a scene.
func (s *Service) TestScene(ctx context.Context, sceneID string) (auditor.SceneTestResult, error) {
	return s.auditor.TestScene(ctx, sceneID)
}

// Repair backs up a scene and removes its unreachable devices.
func (s *Service) Repair(ctx context.Context, sceneID string, removeUnreachable bool) (bool, error) {
	return s.repairs.Repair(ctx, sceneID, removeUnreachable)
}

// Restore attempts to restore a backup. It always reports false.
func (s *Service) Restore(ctx context.Context, backupID string) (bool, error) {
	return s.repairs.Restore(ctx, backupID)
}

// finishSweep runs after a sweep returns, including a cancelled one. A
// sweep refused because another is running changed nothing.
func (s *Service) finishSweep(err error) {
	if errors.Is(err, prober.ErrSweepInProgress) || errors.Is(err, auditor.ErrSweepInProgress) {
		return
	}
	s.events.sweepFinished()
}

// track combines the broadcast progress with an optional caller callback.
func (s *Service) track(sweep string, progress func(float64, string)) func(float64, string) {
	broadcast := s.events.progress(sweep)
	return func(fraction float64, current string) {
		broadcast(fraction, current)
		if progress != nil {
			progress(fraction, current)
		}
	}
}
