// Package logging provides structured logging for SceneFixer.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the level and format chosen in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components receive a child logger tagged with their name:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("repair").Info("scene repaired", "scene_id", id)
package logging
