// Package auditor recomputes scene health from live device reachability.
//
// A scene's status moves from unknown to healthy, degraded or broken on its
// first audit and then follows the latest snapshot with no hysteresis:
//
//	0 unreachable                  -> healthy
//	unreachable >= half of devices -> broken
//	otherwise                      -> degraded
//
// Audits always read reachability from the platform, never from cached
// device health.
package auditor
