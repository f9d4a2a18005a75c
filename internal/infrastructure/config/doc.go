// Package config handles loading and validating SceneFixer configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SCENEFIXER_* environment variables
//   - Validation of required fields and sweep timings
//
// Secrets (MQTT password, InfluxDB token) should be supplied through the
// environment rather than the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
