package repair

import (
	"context"
	"fmt"

	"github.com/kochj23/SceneFixer/internal/audit"
	"github.com/kochj23/SceneFixer/internal/backup"
	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/platform"
	"github.com/kochj23/SceneFixer/internal/scene"
)

// Messages recorded in the repair log.
const (
	MessageSceneNotFound = "scene not found"
	MessageManualRestore = "automatic restore is not supported; manual recreation is required"
	MessageBackupFailed  = "backup could not be saved; repair aborted"
)

// Logger defines the logging interface used by the Orchestrator.
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

// BackupStore persists scene backups.
type BackupStore interface {
	Save(b health.SceneBackup) error
	Get(id string) (health.SceneBackup, error)
}

// Refresher re-reads the platform catalog and re-audits a scene after
// its actions change.
type Refresher interface {
	RefreshScene(ctx context.Context, sceneID string) error
}

// Notifier receives every repair log entry after it is written.
type Notifier interface {
	RepairRecorded(a health.RepairAction)
}

// Orchestrator runs backup-then-repair workflows.
//
// Thread Safety: safe for concurrent use. Two repairs of the same scene
// may interleave; the platform rejects the second removal of an action.
type Orchestrator struct {
	platform  platform.Platform
	scenes    *scene.Registry
	backups   BackupStore
	log       audit.Repository
	refresher Refresher
	notifier  Notifier
	logger    Logger
}

// New creates a repair orchestrator.
//
// Parameters:
//   - p: platform used for action resolution, reachability and removal
//   - scenes: scene registry read for the latest audit snapshot
//   - backups: store that must accept a backup before any removal
//   - log: repair log
//   - refresher: re-audits the scene after removals (may be nil)
//   - notifier: receives repair log entries (may be nil)
//   - logger: Logger instance (may be nil)
func New(
	p platform.Platform,
	scenes *scene.Registry,
	backups BackupStore,
	log audit.Repository,
	refresher Refresher,
	notifier Notifier,
	logger Logger,
) *Orchestrator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Orchestrator{
		platform:  p,
		scenes:    scenes,
		backups:   backups,
		log:       log,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger,
	}
}

// Repair removes the actions of currently unreachable devices from a scene.
//
// It uses the scene's last audit: with no unreachable devices it returns
// true without taking a backup. Otherwise a backup is persisted first. With
// removeUnreachable false the workflow stops there.
//
// Parameters:
//   - ctx: bounds the platform calls
//   - sceneID: registry ID of the scene
//   - removeUnreachable: false stops after the backup
//
// Returns:
//   - bool: true when there was nothing to repair, or the backup was
//     taken and removal attempted; the repair log entry carries the count
//   - error: scene.ErrSceneNotFound for an unknown ID; platform failures
//     are recorded in the repair log and reported as false
func (o *Orchestrator) Repair(ctx context.Context, sceneID string, removeUnreachable bool) (bool, error) {
	s, err := o.scenes.Get(sceneID)
	if err != nil {
		return false, err
	}
	if s.UnreachableDevices == 0 {
		o.logger.Debug("repair skipped, scene has no unreachable devices", "scene_id", sceneID)
		return true, nil
	}

	b := backup.FromScene(s)
	if err := o.backups.Save(b); err != nil {
		o.logger.Error("backup before repair failed", "scene_id", sceneID, "error", err)
		o.record(ctx, failure(s, health.RepairRemoveDevice, MessageBackupFailed))
		return false, nil
	}
	o.logger.Info("scene backed up", "scene_id", sceneID, "backup_id", b.ID, "devices", len(b.DeviceNames))

	if !removeUnreachable {
		return true, nil
	}

	actions, err := o.platform.SceneActions(ctx, sceneID)
	if err != nil {
		o.logger.Warn("resolving scene actions for repair failed", "scene_id", sceneID, "error", err)
		o.record(ctx, failure(s, health.RepairRemoveDevice, MessageSceneNotFound))
		return false, nil
	}

	targets := o.unreachableActions(ctx, sceneID, actions)
	removed := 0
	for _, act := range targets {
		if err := o.platform.RemoveSceneAction(ctx, sceneID, act.ID); err != nil {
			o.logger.Warn("removing scene action failed",
				"scene_id", sceneID,
				"action_id", act.ID,
				"device_id", act.DeviceID,
				"error", err,
			)
			continue
		}
		removed++
	}

	msg := fmt.Sprintf("removed %d of %d unreachable device actions", removed, len(targets))
	o.record(ctx, health.RepairAction{
		SceneID:   s.ID,
		SceneName: s.Name,
		Kind:      health.RepairRemoveDevice,
		Count:     removed,
		Success:   true,
		Message:   &msg,
	})
	o.logger.Info("scene repaired", "scene_id", sceneID, "removed", removed, "attempted", len(targets))

	if o.refresher != nil {
		if err := o.refresher.RefreshScene(ctx, sceneID); err != nil {
			o.logger.Warn("refresh after repair failed", "scene_id", sceneID, "error", err)
		}
	}
	return true, nil
}

// unreachableActions selects the actions whose device the platform
// currently reports unreachable. Reachability is read once per device; a
// device whose reachability cannot be read is left in the scene.
func (o *Orchestrator) unreachableActions(ctx context.Context, sceneID string, actions []platform.Action) []platform.Action {
	reachable := make(map[string]bool)
	var out []platform.Action
	for _, act := range actions {
		ok, seen := reachable[act.DeviceID]
		if !seen {
			r, err := o.platform.IsReachable(ctx, act.DeviceID)
			if err != nil {
				o.logger.Warn("reachability read failed, keeping action",
					"scene_id", sceneID,
					"device_id", act.DeviceID,
					"error", err,
				)
				r = true
			}
			reachable[act.DeviceID] = r
			ok = r
		}
		if !ok {
			out = append(out, act)
		}
	}
	return out
}

// Restore always fails: scenes cannot be rebuilt automatically from a
// backup. A failed full_restore entry is recorded. The returned error is
// only backup.ErrBackupNotFound for an unknown ID.
func (o *Orchestrator) Restore(ctx context.Context, backupID string) (bool, error) {
	b, err := o.backups.Get(backupID)
	if err != nil {
		return false, err
	}
	o.record(ctx, failure(&health.Scene{ID: b.SceneID, Name: b.SceneName}, health.RepairFullRestore, MessageManualRestore))
	o.logger.Info("restore requested, manual recreation required", "backup_id", backupID, "scene_id", b.SceneID)
	return false, nil
}

func (o *Orchestrator) record(ctx context.Context, a health.RepairAction) {
	if err := o.log.Create(ctx, &a); err != nil {
		o.logger.Error("writing repair log failed", "scene_id", a.SceneID, "kind", string(a.Kind), "error", err)
		return
	}
	if o.notifier != nil {
		o.notifier.RepairRecorded(a)
	}
}

func failure(s *health.Scene, kind health.RepairKind, msg string) health.RepairAction {
	return health.RepairAction{
		SceneID:   s.ID,
		SceneName: s.Name,
		Kind:      kind,
		Success:   false,
		Message:   &msg,
	}
}
