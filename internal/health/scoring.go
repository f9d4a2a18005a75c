package health

import "time"

// StatusWindow is the number of most recent results the status rule looks at.
const StatusWindow = 10

// percent converts a ratio to a percentage.
const percent = 100.0

// Reliability returns the percentage of successful results over the whole
// history. An empty history scores 100.
func Reliability(history []TestResult) float64 {
	if len(history) == 0 {
		return percent
	}
	successes := 0
	for _, r := range history {
		if r.Success {
			successes++
		}
	}
	return percent * float64(successes) / float64(len(history))
}

// WindowStatus applies the status rule to the last window results (or fewer
// if the history is shorter). It returns DeviceUnknown for an empty history.
func WindowStatus(history []TestResult, window int) DeviceStatus {
	if len(history) == 0 {
		return DeviceUnknown
	}
	if window <= 0 {
		window = StatusWindow
	}

	recent := history
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	successes := 0
	for _, r := range recent {
		if r.Success {
			successes++
		}
	}

	switch {
	case successes == len(recent):
		return DeviceHealthy
	case successes*2 >= len(recent):
		return DeviceDegraded
	default:
		return DeviceUnreachable
	}
}

// AverageResponseTime returns the mean of every recorded response time, or
// nil when none was recorded. Unlike status it is not windowed.
func AverageResponseTime(history []TestResult) *float64 {
	var sum float64
	n := 0
	for _, r := range history {
		if r.ResponseTime != nil {
			sum += *r.ResponseTime
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// DeriveStatus combines the window rule with live reachability.
func DeriveStatus(history []TestResult, reachable bool, window int) DeviceStatus {
	if len(history) == 0 {
		return DeviceUnknown
	}
	if !reachable {
		return DeviceUnreachable
	}
	return WindowStatus(history, window)
}

// Recompute refreshes every derived field of d from its history.
func Recompute(d *Device, window int) {
	d.ReliabilityScore = Reliability(d.History)
	d.AverageResponseTime = AverageResponseTime(d.History)
	d.HealthStatus = DeriveStatus(d.History, d.Reachable, window)
}

// Record appends r to the device history, applies the retention policy and
// recomputes the derived fields exactly once. LastSeen only advances on success.
func Record(d *Device, r TestResult, policy RetentionPolicy, window int) {
	d.History = append(d.History, r)
	if policy != nil {
		d.History = policy.Retain(d.History)
	}
	if r.Success {
		ts := r.Timestamp
		d.LastSeen = &ts
	}
	Recompute(d, window)
}

// HealthPercentage returns 100 for an empty scene, otherwise the share of
// reachable devices.
func HealthPercentage(reachable, total int) float64 {
	if total == 0 {
		return percent
	}
	return percent * float64(reachable) / float64(total)
}

// ClassifyScene maps device counts to a scene status. A scene is broken once
// at least half its devices are unreachable.
func ClassifyScene(total, unreachable int) SceneStatus {
	switch {
	case unreachable == 0:
		return SceneHealthy
	case unreachable*2 >= total:
		return SceneBroken
	default:
		return SceneDegraded
	}
}

// NewTestResult builds a result stamped with the current UTC time.
func NewTestResult(id, deviceID string, success bool, elapsed time.Duration, errMsg string) TestResult {
	ms := float64(elapsed.Microseconds()) / 1000
	r := TestResult{
		ID:           id,
		DeviceID:     deviceID,
		Timestamp:    time.Now().UTC(),
		Success:      success,
		ResponseTime: &ms,
	}
	if errMsg != "" {
		r.Error = &errMsg
	}
	return r
}
