// Package health holds the data model for device and scene health and the
// pure functions that score it.
//
// Nothing in this package talks to the home-automation platform or owns
// external resources. The prober, auditor and repair packages build on these
// types and call the scoring functions after every state change.
//
// # Scoring
//
// Reliability is computed over the entire test history:
//
//	reliability = 100 * successes / total   (100 when history is empty)
//
// Health status is computed over a sliding window of the most recent
// StatusWindow results:
//
//	all successes          -> healthy
//	at least half success  -> degraded
//	otherwise              -> unreachable
//
// A device the platform currently reports as unreachable is always
// unreachable, whatever its window says.
//
// # Inference
//
// Manufacturer, category and protocol hints are inferred from free-text
// vendor strings using ordered rule tables (see inference.go). Rules are
// evaluated case-insensitively, first match wins.
package health
