// Package prober tests device connectivity against the platform.
//
// Probe performs a single read of a device's primary characteristic.
// ToggleProbe exercises the characteristic (on, off, restore) and refuses
// dangerous categories before any platform call. RunFullHealthCheck and
// ToggleAllSafe sweep every device sequentially with a fixed delay between
// devices so the platform bridge is never flooded.
//
// Every result is appended to the device's history through the device
// registry and handed to an optional Notifier for fan-out (MQTT, InfluxDB,
// WebSocket).
package prober
