package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/platform"
)

// mockHistory is an in-memory HistoryRepository.
type mockHistory struct {
	mu        sync.Mutex
	results   []health.TestResult
	recordErr error
	loadErr   error
}

func (m *mockHistory) Record(_ context.Context, r health.TestResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.results = append(m.results, r)
	return nil
}

func (m *mockHistory) ListForDevice(_ context.Context, deviceID string, limit int) ([]health.TestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []health.TestResult
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		if m.results[i].DeviceID == deviceID {
			out = append(out, m.results[i])
		}
	}
	return out, nil
}

func (m *mockHistory) LoadAll(_ context.Context) (map[string][]health.TestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string][]health.TestResult)
	for _, r := range m.results {
		out[r.DeviceID] = append(out[r.DeviceID], r)
	}
	return out, nil
}

func room(s string) *string { return &s }

func testInfos() []platform.DeviceInfo {
	return []platform.DeviceInfo{
		{ID: "light-1", Name: "Kitchen Light", Room: room("Kitchen"), Vendor: "Philips", Kind: "Lightbulb", HasPower: true, Reachable: true},
		{ID: "lock-1", Name: "Front Door", Vendor: "August", Kind: "Lock Mechanism", Reachable: true},
	}
}

func TestFromInfo(t *testing.T) {
	d := FromInfo(testInfos()[0])

	if d.Manufacturer != health.ManufacturerPhilips {
		t.Errorf("Manufacturer = %v, want philips", d.Manufacturer)
	}
	if d.Category != health.CategoryLight {
		t.Errorf("Category = %v, want light", d.Category)
	}
	if d.Protocol != health.ProtocolZigbee {
		t.Errorf("Protocol = %v, want zigbee", d.Protocol)
	}
	if d.HealthStatus != health.DeviceUnknown {
		t.Errorf("HealthStatus = %v, want unknown", d.HealthStatus)
	}
	if d.ReliabilityScore != 100 {
		t.Errorf("ReliabilityScore = %v, want 100", d.ReliabilityScore)
	}
	if d.Room == nil || *d.Room != "Kitchen" {
		t.Errorf("Room = %v, want Kitchen", d.Room)
	}
}

func TestRegistry_SyncPreservesHistory(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Options{})
	r.Sync(testInfos())

	if _, err := r.Record(ctx, health.NewTestResult("r1", "light-1", true, time.Millisecond, "")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Renamed and now unreachable on the platform; lock removed.
	infos := testInfos()[:1]
	infos[0].Name = "Kitchen Ceiling"
	infos[0].Reachable = false
	if n := r.Sync(infos); n != 1 {
		t.Fatalf("Sync() = %d, want 1", n)
	}

	d, err := r.Get("light-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Name != "Kitchen Ceiling" {
		t.Errorf("Name = %q, want renamed", d.Name)
	}
	if len(d.History) != 1 || d.LastSeen == nil {
		t.Errorf("history/LastSeen lost on sync: len=%d lastSeen=%v", len(d.History), d.LastSeen)
	}
	if d.HealthStatus != health.DeviceUnreachable {
		t.Errorf("HealthStatus = %v, want unreachable (forced)", d.HealthStatus)
	}
	if _, err := r.Get("lock-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get(removed) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry(Options{})
	r.Sync(testInfos())

	d, _ := r.Get("light-1")
	d.Name = "mutated"
	d.History = append(d.History, health.TestResult{})

	again, _ := r.Get("light-1")
	if again.Name == "mutated" || len(again.History) != 0 {
		t.Error("mutating a snapshot changed the registry")
	}
}

func TestRegistry_ListOrdered(t *testing.T) {
	r := NewRegistry(Options{})
	r.Sync(testInfos())

	list := r.List()
	if len(list) != 2 || r.Len() != 2 {
		t.Fatalf("List() len = %d, Len() = %d, want 2", len(list), r.Len())
	}
	if list[0].Name != "Front Door" || list[1].Name != "Kitchen Light" {
		t.Errorf("order = %q, %q", list[0].Name, list[1].Name)
	}
}

func TestRegistry_RecordPersists(t *testing.T) {
	ctx := context.Background()
	hist := &mockHistory{}
	r := NewRegistry(Options{History: hist, Retention: health.KeepLast(2)})
	r.Sync(testInfos())

	for i, ok := range []bool{false, true, true} {
		res := health.NewTestResult(string(rune('a'+i)), "light-1", ok, time.Millisecond, "")
		if _, err := r.Record(ctx, res); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	d, _ := r.Get("light-1")
	if len(d.History) != 2 {
		t.Errorf("retained %d results, want 2", len(d.History))
	}
	if d.ReliabilityScore != 100 {
		t.Errorf("ReliabilityScore = %v, want 100 over retained history", d.ReliabilityScore)
	}
	if len(hist.results) != 3 {
		t.Errorf("persisted %d results, want 3", len(hist.results))
	}
}

func TestRegistry_RecordPersistenceFailureIsNotFatal(t *testing.T) {
	r := NewRegistry(Options{History: &mockHistory{recordErr: errors.New("disk full")}})
	r.Sync(testInfos())

	d, err := r.Record(context.Background(), health.NewTestResult("r1", "light-1", true, 0, ""))
	if err != nil {
		t.Fatalf("Record() error = %v, want nil", err)
	}
	if len(d.History) != 1 {
		t.Errorf("history len = %d, want 1", len(d.History))
	}
}

func TestRegistry_RecordErrors(t *testing.T) {
	r := NewRegistry(Options{})
	ctx := context.Background()

	if _, err := r.Record(ctx, health.TestResult{}); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("empty device ID error = %v, want ErrInvalidResult", err)
	}
	if _, err := r.Record(ctx, health.TestResult{DeviceID: "ghost"}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("unknown device error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_MarkTestingSurvivesSync(t *testing.T) {
	r := NewRegistry(Options{})
	r.Sync(testInfos())

	if err := r.MarkTesting("light-1"); err != nil {
		t.Fatalf("MarkTesting() error = %v", err)
	}
	r.Sync(testInfos())

	d, _ := r.Get("light-1")
	if d.HealthStatus != health.DeviceTesting {
		t.Errorf("HealthStatus = %v, want testing", d.HealthStatus)
	}

	if _, err := r.Record(context.Background(), health.NewTestResult("r1", "light-1", true, 0, "")); err != nil {
		t.Fatal(err)
	}
	d, _ = r.Get("light-1")
	if d.HealthStatus != health.DeviceHealthy {
		t.Errorf("HealthStatus after result = %v, want healthy", d.HealthStatus)
	}
}

func TestRegistry_RecordReachable(t *testing.T) {
	r := NewRegistry(Options{})
	r.Sync(testInfos())

	d, err := r.RecordReachable(context.Background(), health.NewTestResult("r1", "light-1", true, 0, ""), false)
	if err != nil {
		t.Fatalf("RecordReachable() error = %v", err)
	}
	if d.Reachable {
		t.Error("Reachable = true, want false")
	}
	if d.HealthStatus != health.DeviceUnreachable {
		t.Errorf("HealthStatus = %v, want unreachable", d.HealthStatus)
	}
	if d.ReliabilityScore != 100 || len(d.History) != 1 {
		t.Errorf("reliability = %v, history = %d; want 100 and 1", d.ReliabilityScore, len(d.History))
	}
}

func TestRegistry_LoadHistory(t *testing.T) {
	hist := &mockHistory{}
	old := health.NewTestResult("old", "light-1", true, 0, "")
	old.Timestamp = old.Timestamp.Add(-time.Hour)
	hist.results = []health.TestResult{
		old,
		health.NewTestResult("new", "light-1", false, 0, "timeout"),
		health.NewTestResult("x", "ghost", true, 0, ""),
	}

	r := NewRegistry(Options{History: hist})
	r.Sync(testInfos())
	if err := r.LoadHistory(context.Background()); err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}

	d, _ := r.Get("light-1")
	if len(d.History) != 2 {
		t.Fatalf("history len = %d, want 2", len(d.History))
	}
	if d.ReliabilityScore != 50 {
		t.Errorf("ReliabilityScore = %v, want 50", d.ReliabilityScore)
	}
	if d.LastSeen == nil || !d.LastSeen.Equal(old.Timestamp) {
		t.Errorf("LastSeen = %v, want last success %v", d.LastSeen, old.Timestamp)
	}

	// Every known device is loaded; the store is not read again.
	hist.loadErr = errors.New("locked")
	if err := r.LoadHistory(context.Background()); err != nil {
		t.Errorf("LoadHistory() after load = %v, want nil", err)
	}
}

func TestRegistry_LoadHistoryAfterLateSync(t *testing.T) {
	ctx := context.Background()
	hist := &mockHistory{results: []health.TestResult{
		health.NewTestResult("f1", "light-1", false, 0, "timeout"),
		health.NewTestResult("f2", "light-1", false, 0, "timeout"),
	}}
	r := NewRegistry(Options{History: hist})

	// Catalog not available yet.
	if err := r.LoadHistory(ctx); err != nil {
		t.Fatalf("LoadHistory() on empty registry = %v", err)
	}

	r.Sync(testInfos())
	hist.loadErr = errors.New("locked")
	if err := r.LoadHistory(ctx); err == nil {
		t.Fatal("LoadHistory() expected error")
	}

	// A result recorded before the store is readable is merged, not lost.
	hist.loadErr = nil
	if _, err := r.Record(ctx, health.NewTestResult("s1", "light-1", true, 0, "")); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadHistory(ctx); err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}

	d, _ := r.Get("light-1")
	if len(d.History) != 3 {
		t.Fatalf("history len = %d, want 3", len(d.History))
	}
	if d.History[2].ID != "s1" {
		t.Errorf("newest result = %q, want s1", d.History[2].ID)
	}
	want := 100.0 / 3
	if d.ReliabilityScore < want-0.01 || d.ReliabilityScore > want+0.01 {
		t.Errorf("ReliabilityScore = %v, want %.2f", d.ReliabilityScore, want)
	}
	if d.HealthStatus != health.DeviceUnreachable {
		t.Errorf("HealthStatus = %v, want unreachable", d.HealthStatus)
	}
}
