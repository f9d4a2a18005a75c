// Package monitor is the composition root of the health engine.
//
// Service owns the device and scene registries and constructs the prober,
// auditor and repair orchestrator around them. It keeps the registries in
// step with the platform catalog, exposes read accessors for consumers
// (the HTTP API), and fans every test result, audit and repair log entry
// out to MQTT, InfluxDB and WebSocket clients.
//
//	svc, err := monitor.New(deps)
//	svc.Refresh(ctx)
//	go svc.Run(ctx) // optional periodic sweeps
package monitor
