package repair

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kochj23/SceneFixer/internal/audit"
	"github.com/kochj23/SceneFixer/internal/auditor"
	"github.com/kochj23/SceneFixer/internal/backup"
	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/platform"
	"github.com/kochj23/SceneFixer/internal/scene"
)

// auditRefresher re-audits the repaired scene.
type auditRefresher struct {
	auditor *auditor.Auditor
	calls   int
}

func (r *auditRefresher) RefreshScene(ctx context.Context, sceneID string) error {
	r.calls++
	_, err := r.auditor.AuditScene(ctx, sceneID)
	return err
}

type failingBackups struct{}

func (failingBackups) Save(health.SceneBackup) error { return errors.New("disk full") }
func (failingBackups) Get(string) (health.SceneBackup, error) {
	return health.SceneBackup{}, backup.ErrBackupNotFound
}

type fixture struct {
	plat      *platform.Memory
	scenes    *scene.Registry
	backups   *backup.FileStore
	log       *audit.MemoryRepository
	refresher *auditRefresher
	orch      *Orchestrator
}

// newFixture builds the four-device "evening" scene with the first
// `unreachable` devices offline and audits it once.
func newFixture(t *testing.T, unreachable int) *fixture {
	t.Helper()
	ctx := context.Background()

	plat := platform.NewMemory()
	var actions []platform.Action
	for i, name := range []string{"Lamp", "Strip", "Plug", "Fan"} {
		id := strings.ToLower(name)
		plat.AddDevice(platform.DeviceInfo{ID: id, Name: name, HasPower: true, Reachable: i >= unreachable}, false)
		actions = append(actions, platform.Action{ID: "act-" + id, DeviceID: id, DeviceName: name})
	}
	plat.AddScene(platform.SceneInfo{ID: "evening", Name: "Evening"}, actions)

	scenes := scene.NewRegistry()
	infos, _ := plat.ListScenes(ctx)
	scenes.Sync(infos)

	aud := auditor.New(plat, scenes, nil, 0, nil)
	if _, err := aud.AuditScene(ctx, "evening"); err != nil {
		t.Fatalf("AuditScene() error = %v", err)
	}

	f := &fixture{
		plat:      plat,
		scenes:    scenes,
		backups:   backup.Open(filepath.Join(t.TempDir(), "backups.json"), nil),
		log:       audit.NewMemoryRepository(),
		refresher: &auditRefresher{auditor: aud},
	}
	f.orch = New(plat, scenes, f.backups, f.log, f.refresher, nil, nil)
	return f
}

func (f *fixture) repairLog(t *testing.T) []health.RepairAction {
	t.Helper()
	res, err := f.log.List(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	return res.Actions
}

func TestRepair_RemovesUnreachable(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	ok, err := f.orch.Repair(ctx, "evening", true)
	if err != nil || !ok {
		t.Fatalf("Repair() = %v, %v", ok, err)
	}

	remaining, _ := f.plat.SceneActions(ctx, "evening")
	if len(remaining) != 1 || remaining[0].DeviceID != "fan" {
		t.Errorf("remaining actions = %+v, want only fan", remaining)
	}

	backups := f.backups.List()
	if len(backups) != 1 {
		t.Fatalf("backups = %d, want 1", len(backups))
	}
	if len(backups[0].DeviceNames) != 4 {
		t.Errorf("backup device names = %v, want all 4", backups[0].DeviceNames)
	}

	entries := f.repairLog(t)
	if len(entries) != 1 {
		t.Fatalf("repair log = %+v, want 1 entry", entries)
	}
	e := entries[0]
	if e.Kind != health.RepairRemoveDevice || e.Count != 3 || !e.Success {
		t.Errorf("entry = %+v", e)
	}

	if f.refresher.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", f.refresher.calls)
	}
	s, _ := f.scenes.Get("evening")
	if s.HealthStatus != health.SceneHealthy || s.TotalDevices != 1 {
		t.Errorf("scene after refresh = %v/%d, want healthy/1", s.HealthStatus, s.TotalDevices)
	}
}

func TestRepair_NoUnreachableIsNoOp(t *testing.T) {
	f := newFixture(t, 0)

	for i := 0; i < 2; i++ {
		ok, err := f.orch.Repair(context.Background(), "evening", true)
		if err != nil || !ok {
			t.Fatalf("Repair() = %v, %v", ok, err)
		}
	}
	if f.backups.Len() != 0 {
		t.Errorf("backups = %d, want 0", f.backups.Len())
	}
	if got := f.repairLog(t); len(got) != 0 {
		t.Errorf("repair log = %+v, want empty", got)
	}
	if f.refresher.calls != 0 {
		t.Error("refresh triggered for no-op repair")
	}
}

func TestRepair_PartialFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, 3)
	f.plat.FailRemove("act-strip", errors.New("bridge busy"))

	ok, _ := f.orch.Repair(context.Background(), "evening", true)
	if !ok {
		t.Fatal("Repair() = false, want true despite one failed removal")
	}

	remaining, _ := f.plat.SceneActions(context.Background(), "evening")
	if len(remaining) != 2 {
		t.Errorf("remaining = %+v, want strip and fan", remaining)
	}
	entries := f.repairLog(t)
	if len(entries) != 1 || entries[0].Count != 2 || !entries[0].Success {
		t.Errorf("repair log = %+v", entries)
	}
}

func TestRepair_SceneGoneRecordsFailure(t *testing.T) {
	f := newFixture(t, 3)
	f.plat.DeleteScene("evening")

	ok, err := f.orch.Repair(context.Background(), "evening", true)
	if err != nil || ok {
		t.Fatalf("Repair() = %v, %v; want false, nil", ok, err)
	}
	if f.backups.Len() != 1 {
		t.Errorf("backups = %d, want 1 (taken before resolution)", f.backups.Len())
	}
	entries := f.repairLog(t)
	if len(entries) != 1 || entries[0].Success || *entries[0].Message != MessageSceneNotFound {
		t.Errorf("repair log = %+v", entries)
	}
}

func TestRepair_BackupOnly(t *testing.T) {
	f := newFixture(t, 3)

	ok, _ := f.orch.Repair(context.Background(), "evening", false)
	if !ok {
		t.Fatal("Repair(removeUnreachable=false) = false")
	}
	if f.backups.Len() != 1 {
		t.Errorf("backups = %d, want 1", f.backups.Len())
	}
	remaining, _ := f.plat.SceneActions(context.Background(), "evening")
	if len(remaining) != 4 {
		t.Errorf("actions = %d, want 4 untouched", len(remaining))
	}
	if got := f.repairLog(t); len(got) != 0 {
		t.Errorf("repair log = %+v, want empty", got)
	}
}

func TestRepair_NoBackupNoRemoval(t *testing.T) {
	f := newFixture(t, 3)
	f.orch = New(f.plat, f.scenes, failingBackups{}, f.log, nil, nil, nil)

	ok, _ := f.orch.Repair(context.Background(), "evening", true)
	if ok {
		t.Fatal("Repair() succeeded without a backup")
	}
	remaining, _ := f.plat.SceneActions(context.Background(), "evening")
	if len(remaining) != 4 {
		t.Errorf("actions removed without a backup: %d left", len(remaining))
	}
}

func TestRepair_UnknownScene(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.orch.Repair(context.Background(), "ghost", true); !errors.Is(err, scene.ErrSceneNotFound) {
		t.Errorf("error = %v, want ErrSceneNotFound", err)
	}
}

func TestRestore_AlwaysFails(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	if _, err := f.orch.Repair(ctx, "evening", false); err != nil {
		t.Fatal(err)
	}
	b := f.backups.List()[0]

	ok, err := f.orch.Restore(ctx, b.ID)
	if err != nil || ok {
		t.Fatalf("Restore() = %v, %v; want false, nil", ok, err)
	}
	entries := f.repairLog(t)
	if len(entries) != 1 {
		t.Fatalf("repair log = %+v", entries)
	}
	e := entries[0]
	if e.Kind != health.RepairFullRestore || e.Success || e.SceneID != "evening" {
		t.Errorf("entry = %+v", e)
	}
	if !strings.Contains(*e.Message, "manual recreation is required") {
		t.Errorf("message = %q", *e.Message)
	}

	if _, err := f.orch.Restore(ctx, "missing"); !errors.Is(err, backup.ErrBackupNotFound) {
		t.Errorf("Restore(missing) error = %v, want ErrBackupNotFound", err)
	}
}
