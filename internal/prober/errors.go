package prober

import "errors"

// ErrSweepInProgress is returned when a sweep starts while another sweep is
// still running.
var ErrSweepInProgress = errors.New("prober: sweep already in progress")

// SkippedDangerous is the error text of a toggle refused for a lock or
// garage door.
const SkippedDangerous = "skipped: dangerous"
