package auditor

import "errors"

// ErrSweepInProgress is returned when AuditAll starts while another audit
// sweep is running.
var ErrSweepInProgress = errors.New("auditor: audit sweep already in progress")
