package health

import (
	"math"
	"testing"
	"time"
)

func result(success bool, ms float64) TestResult {
	return TestResult{Success: success, ResponseTime: &ms, Timestamp: time.Now().UTC()}
}

func results(pattern ...bool) []TestResult {
	out := make([]TestResult, len(pattern))
	for i, ok := range pattern {
		out[i] = result(ok, 10)
	}
	return out
}

func TestReliability(t *testing.T) {
	tests := []struct {
		name    string
		history []TestResult
		want    float64
	}{
		{"empty history scores 100", nil, 100},
		{"all success", results(true, true, true), 100},
		{"all failure", results(false, false), 0},
		{"three of four", results(true, false, true, true), 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reliability(tt.history); got != tt.want {
				t.Errorf("Reliability() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowStatus(t *testing.T) {
	tests := []struct {
		name    string
		history []TestResult
		want    DeviceStatus
	}{
		{"empty is unknown", nil, DeviceUnknown},
		{"all success is healthy", results(true, true), DeviceHealthy},
		{"exactly half is degraded", results(true, false), DeviceDegraded},
		{"majority success is degraded", results(true, true, false), DeviceDegraded},
		{"minority success is unreachable", results(true, false, false), DeviceUnreachable},
		{"single failure is unreachable", results(false), DeviceUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WindowStatus(tt.history, StatusWindow); got != tt.want {
				t.Errorf("WindowStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowStatus_IgnoresResultsOutsideWindow(t *testing.T) {
	// Ten successes preceded by one failure: the failure is outside the window.
	history := results(false)
	history = append(history, results(true, true, true, true, true, true, true, true, true, true)...)

	if got := WindowStatus(history, StatusWindow); got != DeviceHealthy {
		t.Errorf("WindowStatus() = %v, want healthy", got)
	}

	// Reliability still counts the whole history.
	want := 100.0 * 10 / 11
	if got := Reliability(history); math.Abs(got-want) > 1e-9 {
		t.Errorf("Reliability() = %v, want %v", got, want)
	}
}

func TestAverageResponseTime(t *testing.T) {
	if got := AverageResponseTime(nil); got != nil {
		t.Errorf("AverageResponseTime(nil) = %v, want nil", *got)
	}

	history := []TestResult{result(true, 10), result(false, 30), {Success: false}}
	got := AverageResponseTime(history)
	if got == nil || *got != 20 {
		t.Errorf("AverageResponseTime() = %v, want 20", got)
	}
}

func TestDeriveStatus_ForcesUnreachable(t *testing.T) {
	history := results(true, true, true)
	if got := DeriveStatus(history, false, StatusWindow); got != DeviceUnreachable {
		t.Errorf("DeriveStatus(unreachable) = %v, want unreachable", got)
	}
	if got := DeriveStatus(nil, false, StatusWindow); got != DeviceUnknown {
		t.Errorf("DeriveStatus(empty) = %v, want unknown", got)
	}
}

func TestRecord(t *testing.T) {
	d := &Device{ID: "dev-1", Reachable: true, HealthStatus: DeviceUnknown}

	ok := NewTestResult("r1", "dev-1", true, 12*time.Millisecond, "")
	Record(d, ok, Unbounded{}, StatusWindow)

	if d.LastSeen == nil || !d.LastSeen.Equal(ok.Timestamp) {
		t.Fatalf("LastSeen = %v, want %v", d.LastSeen, ok.Timestamp)
	}
	if d.HealthStatus != DeviceHealthy {
		t.Errorf("HealthStatus = %v, want healthy", d.HealthStatus)
	}

	seen := *d.LastSeen
	d.Reachable = false
	fail := NewTestResult("r2", "dev-1", false, 5*time.Millisecond, "timeout")
	Record(d, fail, Unbounded{}, StatusWindow)

	if !d.LastSeen.Equal(seen) {
		t.Error("LastSeen advanced on a failed result")
	}
	if d.ReliabilityScore != 50 {
		t.Errorf("ReliabilityScore = %v, want 50", d.ReliabilityScore)
	}
	if d.HealthStatus != DeviceUnreachable {
		t.Errorf("HealthStatus = %v, want unreachable", d.HealthStatus)
	}
	if len(d.History) != 2 {
		t.Errorf("len(History) = %d, want 2", len(d.History))
	}
	if d.History[1].ErrorText() != "timeout" {
		t.Errorf("ErrorText() = %q, want timeout", d.History[1].ErrorText())
	}
}

func TestRecord_ReliabilityMatchesHistory(t *testing.T) {
	d := &Device{ID: "dev-1", Reachable: true}
	pattern := []bool{true, false, true, true, false, true, true, true, false, true, true, false}

	successes := 0
	for i, ok := range pattern {
		if ok {
			successes++
		}
		Record(d, result(ok, 1), Unbounded{}, StatusWindow)

		want := 100 * float64(successes) / float64(i+1)
		if math.Abs(d.ReliabilityScore-want) > 1e-9 {
			t.Fatalf("after %d results ReliabilityScore = %v, want %v", i+1, d.ReliabilityScore, want)
		}
	}
}

func TestKeepLast(t *testing.T) {
	history := results(false, true, true)

	kept := KeepLast(2).Retain(history)
	if len(kept) != 2 || !kept[0].Success {
		t.Errorf("KeepLast(2) kept %d results, first success=%v", len(kept), kept[0].Success)
	}
	if got := (Unbounded{}).Retain(history); len(got) != 3 {
		t.Errorf("Unbounded kept %d results, want 3", len(got))
	}
	if _, ok := RetentionFromConfig(0).(Unbounded); !ok {
		t.Error("RetentionFromConfig(0) should be Unbounded")
	}
}

func TestClassifyScene(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		unreachable int
		want        SceneStatus
		percentage  float64
	}{
		{"empty scene", 0, 0, SceneHealthy, 100},
		{"all reachable", 4, 0, SceneHealthy, 100},
		{"one of four unreachable", 4, 1, SceneDegraded, 75},
		{"half unreachable is broken", 4, 2, SceneBroken, 50},
		{"three of four unreachable", 4, 3, SceneBroken, 25},
		{"one of three unreachable", 3, 1, SceneDegraded, 100.0 * 2 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyScene(tt.total, tt.unreachable); got != tt.want {
				t.Errorf("ClassifyScene() = %v, want %v", got, tt.want)
			}
			got := HealthPercentage(tt.total-tt.unreachable, tt.total)
			if math.Abs(got-tt.percentage) > 1e-9 {
				t.Errorf("HealthPercentage() = %v, want %v", got, tt.percentage)
			}
		})
	}
}

func TestDeviceDeepCopy(t *testing.T) {
	room := "Kitchen"
	d := &Device{ID: "dev-1", Room: &room, History: results(true)}

	cpy := d.DeepCopy()
	cpy.History = append(cpy.History, result(false, 1))
	*cpy.Room = "Hall"

	if len(d.History) != 1 {
		t.Errorf("original history mutated: len=%d", len(d.History))
	}
	if *d.Room != "Kitchen" {
		t.Errorf("original room mutated: %q", *d.Room)
	}
}
