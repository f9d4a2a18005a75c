// Package api implements the HTTP REST API and WebSocket server for SceneFixer.
//
// This package provides:
//   - REST endpoints for device probes, scene audits, repairs and backups
//   - WebSocket hub streaming engine events (device.tested, scene.audited,
//     repair.recorded, sweep.progress)
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - A /metrics endpoint summarising engine and component health
//
// # Sweeps
//
// POST /devices/health-check, /devices/toggle-all and /scenes/audit run the
// sweep inside the request and answer with its results. Progress is pushed
// to WebSocket clients meanwhile. Starting a sweep while one of the same
// family runs answers 409 Conflict. Closing the request cancels the sweep.
// These requests are exempt from api.timeouts.write, since a toggle-all over
// a large home takes minutes; clients should set their own timeout.
//
// # Event stream
//
// GET /ws subscribes to every engine channel unless ?channels= narrows the
// set. Clients may send ping, status, subscribe and unsubscribe frames;
// unknown channel names are returned under "rejected". Events for a client
// whose buffer is full are dropped and counted on /metrics.
//
// # Security
//
// The API has no authentication. It is a local control surface and binds
// to 127.0.0.1 by default; restrict browser access with api.cors.allowed_origins.
package api
