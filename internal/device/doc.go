// Package device holds the registry of device health records and the
// SQLite store of their test history.
//
// # Ownership
//
// The Registry is the only place device records live. It is written by the
// prober (test results) and by the refresh path (platform catalog sync).
// Everyone else reads deep-copied snapshots or asks for a change through
// Update, keyed by device ID.
//
//	┌──────────────┐  Record/Update  ┌──────────────┐  Record  ┌────────────────────┐
//	│    Prober    │ ───────────────▶│   Registry   │─────────▶│ HistoryRepository  │
//	└──────────────┘                 │ (RWMutex map)│          │ device_test_results│
//	┌──────────────┐      Sync       │              │◀─────────│     (SQLite)       │
//	│   Refresh    │ ───────────────▶│              │  Load    └────────────────────┘
//	└──────────────┘                 └──────────────┘
//
// Scoring follows health.Record: the history is append-only, reliability
// covers the whole retained history and status looks at the last window.
package device
