package auditor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/platform"
	"github.com/kochj23/SceneFixer/internal/scene"
)

type recordingNotifier struct {
	mu     sync.Mutex
	audits []AuditResult
}

func (n *recordingNotifier) SceneAudited(_ *health.Scene, r AuditResult) {
	n.mu.Lock()
	n.audits = append(n.audits, r)
	n.mu.Unlock()
}

// newAuditor seeds a platform with one four-device scene whose first
// `unreachable` devices are offline.
func newAuditor(t *testing.T, unreachable int) (*Auditor, *platform.Memory, *scene.Registry, *recordingNotifier) {
	t.Helper()
	plat := platform.NewMemory()
	var actions []platform.Action
	for i, name := range []string{"Lamp", "Strip", "Plug", "Fan"} {
		id := strings.ToLower(name)
		plat.AddDevice(platform.DeviceInfo{ID: id, Name: name, HasPower: true, Reachable: i >= unreachable}, false)
		actions = append(actions, platform.Action{ID: "act-" + id, DeviceID: id, DeviceName: name})
	}
	plat.AddScene(platform.SceneInfo{ID: "evening", Name: "Evening", ActionSetID: "as-evening"}, actions)

	scenes := scene.NewRegistry()
	infos, _ := plat.ListScenes(context.Background())
	scenes.Sync(infos)

	n := &recordingNotifier{}
	return New(plat, scenes, n, 0, nil), plat, scenes, n
}

func TestAuditScene_Degraded(t *testing.T) {
	a, _, scenes, n := newAuditor(t, 1)

	r, err := a.AuditScene(context.Background(), "evening")
	if err != nil {
		t.Fatalf("AuditScene() error = %v", err)
	}
	if r.Status != health.SceneDegraded || r.HealthPercentage != 75 {
		t.Errorf("status=%v pct=%v, want degraded/75", r.Status, r.HealthPercentage)
	}

	perDevice := 0
	for _, rec := range r.Recommendations {
		if strings.Contains(rec, `"Lamp"`) {
			perDevice++
		}
		if strings.Contains(rec, "rebuild") {
			t.Errorf("unexpected rebuild recommendation at 75%%: %q", rec)
		}
	}
	if perDevice != 1 {
		t.Errorf("recommendations = %q, want one line naming Lamp", r.Recommendations)
	}
	if !strings.HasPrefix(r.Recommendations[0], "1 of 4") {
		t.Errorf("count line = %q", r.Recommendations[0])
	}

	s, _ := scenes.Get("evening")
	if s.HealthStatus != health.SceneDegraded || s.LastAudit == nil {
		t.Errorf("stored scene = %+v", s)
	}
	if s.UnreachableDevices != 1 || s.UnreachableNames[0] != "Lamp" {
		t.Errorf("stored unreachable = %d %v", s.UnreachableDevices, s.UnreachableNames)
	}
	if len(n.audits) != 1 {
		t.Errorf("notifier got %d audits, want 1", len(n.audits))
	}
}

func TestAuditScene_Broken(t *testing.T) {
	a, _, _, _ := newAuditor(t, 3)

	r, _ := a.AuditScene(context.Background(), "evening")
	if r.Status != health.SceneBroken || r.HealthPercentage != 25 {
		t.Errorf("status=%v pct=%v, want broken/25", r.Status, r.HealthPercentage)
	}
	// count line + 3 device lines + rebuild line
	if len(r.Recommendations) != 5 {
		t.Fatalf("recommendations = %q", r.Recommendations)
	}
	if !strings.Contains(r.Recommendations[4], "rebuilding") {
		t.Errorf("last recommendation = %q, want rebuild advice", r.Recommendations[4])
	}
}

func TestAuditScene_HalfUnreachableIsBroken(t *testing.T) {
	a, _, _, _ := newAuditor(t, 2)
	r, _ := a.AuditScene(context.Background(), "evening")
	if r.Status != health.SceneBroken {
		t.Errorf("status = %v, want broken", r.Status)
	}
	for _, rec := range r.Recommendations {
		if strings.Contains(rec, "rebuild") {
			t.Error("rebuild advice at exactly 50%")
		}
	}
}

func TestAuditScene_Healthy(t *testing.T) {
	a, _, _, _ := newAuditor(t, 0)
	r, _ := a.AuditScene(context.Background(), "evening")
	if r.Status != health.SceneHealthy || len(r.Recommendations) != 0 {
		t.Errorf("result = %+v", r)
	}
}

func TestAuditScene_EmptyScene(t *testing.T) {
	plat := platform.NewMemory()
	plat.AddScene(platform.SceneInfo{ID: "empty", Name: "Empty"}, nil)
	scenes := scene.NewRegistry()
	scenes.Sync([]platform.SceneInfo{{ID: "empty", Name: "Empty"}})
	a := New(plat, scenes, nil, 0, nil)

	r, err := a.AuditScene(context.Background(), "empty")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != health.SceneHealthy || r.HealthPercentage != 100 {
		t.Errorf("status=%v pct=%v, want healthy/100", r.Status, r.HealthPercentage)
	}
}

func TestAuditScene_DeduplicatesDevices(t *testing.T) {
	plat := platform.NewMemory()
	plat.AddDevice(platform.DeviceInfo{ID: "lamp", Name: "Lamp"}, false)
	plat.AddScene(platform.SceneInfo{ID: "s", Name: "S"}, []platform.Action{
		{ID: "a1", DeviceID: "lamp", DeviceName: "Lamp"},
		{ID: "a2", DeviceID: "lamp", DeviceName: "Lamp"},
	})
	scenes := scene.NewRegistry()
	scenes.Sync([]platform.SceneInfo{{ID: "s", Name: "S"}})

	r, _ := New(plat, scenes, nil, 0, nil).AuditScene(context.Background(), "s")
	if r.TotalDevices != 1 || r.UnreachableDevices != 1 {
		t.Errorf("total=%d unreachable=%d, want 1/1", r.TotalDevices, r.UnreachableDevices)
	}
}

func TestAuditScene_SceneGoneOnPlatform(t *testing.T) {
	a, plat, scenes, n := newAuditor(t, 0)
	if _, err := a.AuditScene(context.Background(), "evening"); err != nil {
		t.Fatal(err)
	}
	before, _ := scenes.Get("evening")

	plat.DeleteScene("evening")
	r, err := a.AuditScene(context.Background(), "evening")
	if err != nil {
		t.Fatalf("AuditScene() error = %v", err)
	}
	if r.Found || len(r.Recommendations) != 1 || r.Recommendations[0] != RecommendationSceneNotFound {
		t.Errorf("result = %+v", r)
	}

	after, _ := scenes.Get("evening")
	if !after.LastAudit.Equal(*before.LastAudit) || after.HealthStatus != before.HealthStatus {
		t.Error("scene record mutated after failed resolution")
	}
	if len(n.audits) != 1 {
		t.Errorf("notifier got %d audits, want 1", len(n.audits))
	}
}

func TestAuditScene_UnknownID(t *testing.T) {
	a, _, _, _ := newAuditor(t, 0)
	if _, err := a.AuditScene(context.Background(), "ghost"); !errors.Is(err, scene.ErrSceneNotFound) {
		t.Errorf("error = %v, want ErrSceneNotFound", err)
	}
}

func TestAuditScene_FreeTransitions(t *testing.T) {
	a, plat, _, _ := newAuditor(t, 3)
	ctx := context.Background()

	r, _ := a.AuditScene(ctx, "evening")
	if r.Status != health.SceneBroken {
		t.Fatalf("first status = %v", r.Status)
	}
	for _, id := range []string{"lamp", "strip", "plug"} {
		plat.SetReachable(id, true)
	}
	r, _ = a.AuditScene(ctx, "evening")
	if r.Status != health.SceneHealthy {
		t.Errorf("second status = %v, want healthy", r.Status)
	}
}

func TestAuditAll(t *testing.T) {
	a, plat, scenes, _ := newAuditor(t, 1)
	plat.AddScene(platform.SceneInfo{ID: "away", Name: "Away"}, nil)
	infos, _ := plat.ListScenes(context.Background())
	scenes.Sync(infos)

	var fractions []float64
	var names []string
	results, err := a.AuditAll(context.Background(), func(f float64, cur string) {
		fractions = append(fractions, f)
		names = append(names, cur)
	})
	if err != nil {
		t.Fatalf("AuditAll() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if fractions[0] != 0.5 || fractions[1] != 1.0 {
		t.Errorf("fractions = %v", fractions)
	}
	if names[0] != "Away" || names[1] != "Evening" {
		t.Errorf("names = %v", names)
	}
}

func TestAuditAll_RejectsConcurrent(t *testing.T) {
	a, plat, scenes, _ := newAuditor(t, 0)
	plat.AddScene(platform.SceneInfo{ID: "away", Name: "Away"}, nil)
	infos, _ := plat.ListScenes(context.Background())
	scenes.Sync(infos)

	entered := make(chan struct{})
	release := make(chan struct{})
	a.sleep = func(context.Context, time.Duration) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := a.AuditAll(context.Background(), nil)
		done <- err
	}()

	<-entered
	if _, err := a.AuditAll(context.Background(), nil); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("second AuditAll() error = %v, want ErrSweepInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first AuditAll() error = %v", err)
	}
}

func TestTestScene(t *testing.T) {
	a, plat, _, _ := newAuditor(t, 0)
	ctx := context.Background()

	r, err := a.TestScene(ctx, "evening")
	if err != nil || !r.Success {
		t.Fatalf("TestScene() = %+v, %v", r, err)
	}

	plat.FailExecute("evening", errors.New("bridge timeout"))
	r, err = a.TestScene(ctx, "evening")
	if err != nil {
		t.Fatalf("TestScene() error = %v", err)
	}
	if r.Success || r.Error == nil || *r.Error != "bridge timeout" {
		t.Errorf("result = %+v", r)
	}
}
