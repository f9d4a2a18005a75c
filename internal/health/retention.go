package health

// RetentionPolicy decides which test results a device keeps.
//
// Scoring always runs over whatever the policy retains, so swapping the
// policy changes memory use without touching the scoring rules.
type RetentionPolicy interface {
	Retain(history []TestResult) []TestResult
}

// Unbounded keeps every result. It is the default.
type Unbounded struct{}

// Retain returns history unchanged.
func (Unbounded) Retain(history []TestResult) []TestResult {
	return history
}

// KeepLast keeps only the most recent N results.
type KeepLast int

// Retain drops the oldest entries beyond the limit.
// A non-positive limit behaves like Unbounded.
func (k KeepLast) Retain(history []TestResult) []TestResult {
	n := int(k)
	if n <= 0 || len(history) <= n {
		return history
	}
	kept := make([]TestResult, n)
	copy(kept, history[len(history)-n:])
	return kept
}

// RetentionFromConfig returns KeepLast(limit) for a positive limit and
// Unbounded otherwise.
func RetentionFromConfig(limit int) RetentionPolicy {
	if limit > 0 {
		return KeepLast(limit)
	}
	return Unbounded{}
}
