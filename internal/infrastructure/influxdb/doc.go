// Package influxdb writes SceneFixer health time series to InfluxDB v2.
//
// Each probe result becomes a device_probe point and each scene audit a
// scene_audit point, so reliability trends can be graphed over weeks
// without growing the SQLite history.
//
// InfluxDB is optional. Connect returns ErrDisabled when it is turned off,
// and every write method is a no-op on a nil or closed client.
package influxdb
