// SceneFixer Core - smart-home health monitoring and scene repair
//
// This is the main entry point for the SceneFixer service. It probes the
// devices of a home-automation platform, audits the scenes that depend on
// them, and removes unreachable devices from broken scenes after taking a
// backup.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/kochj23/SceneFixer/migrations"

	"github.com/kochj23/SceneFixer/internal/api"
	"github.com/kochj23/SceneFixer/internal/audit"
	"github.com/kochj23/SceneFixer/internal/backup"
	"github.com/kochj23/SceneFixer/internal/device"
	"github.com/kochj23/SceneFixer/internal/infrastructure/config"
	"github.com/kochj23/SceneFixer/internal/infrastructure/database"
	"github.com/kochj23/SceneFixer/internal/infrastructure/influxdb"
	"github.com/kochj23/SceneFixer/internal/infrastructure/logging"
	"github.com/kochj23/SceneFixer/internal/infrastructure/mqtt"
	"github.com/kochj23/SceneFixer/internal/monitor"
	"github.com/kochj23/SceneFixer/internal/platform"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence: linear wiring of optional components
	log := logging.Default()
	log.Info("starting SceneFixer",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	checks := map[string]api.HealthChecker{"database": db}

	// MQTT (optional unless the platform binding needs it)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	plat, stopPlatform, err := startPlatform(cfg, mqttClient, log)
	if err != nil {
		return err
	}
	defer stopPlatform()

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	backups := backup.Open(cfg.Backup.Path, log.Component("backup"))
	log.Info("backup store opened", "path", backups.Path())

	deps := monitor.Deps{
		Platform:    plat,
		Backups:     backups,
		RepairLog:   audit.NewSQLiteRepository(db.DB),
		History:     device.NewSQLiteHistoryRepository(db.DB),
		Broadcaster: hub,
		Health:      cfg.Health,
		ComponentLogger: func(name string) monitor.Logger {
			return log.Component(name)
		},
	}
	// Typed nils must not reach the interface fields.
	if mqttClient != nil {
		deps.Publisher = mqttClient
	}
	if influxClient != nil {
		deps.TimeSeries = influxClient
	}

	svc, err := monitor.New(deps)
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}

	// A platform that is still starting up is not fatal; the scheduler
	// and the API retry the refresh.
	if refreshErr := svc.Refresh(ctx); refreshErr != nil {
		log.Warn("initial catalog refresh failed", "error", refreshErr)
	}
	st := svc.Status()
	log.Info("health engine initialised", "devices", st.Devices, "scenes", st.Scenes, "backups", st.Backups)

	if mqttClient != nil {
		mqttClient.SetStatusProvider(func() any { return svc.Status() })
		if pubErr := mqttClient.PublishStatus(); pubErr != nil {
			log.Warn("publishing engine status failed", "error", pubErr)
		}
	}

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Monitor:     svc,
		ExternalHub: hub,
		Version:     version,
		Database:    db,
		Checks:      checks,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	go svc.Run(ctx)

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("SceneFixer stopped")
	return nil
}

// loadConfig reads the configuration file. When the default path does not
// exist the built-in defaults are used; an explicit SCENEFIXER_CONFIG path
// must exist.
func loadConfig() (*config.Config, string, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if os.Getenv("SCENEFIXER_CONFIG") == "" && errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default()
		if err != nil {
			return nil, "", fmt.Errorf("loading default config: %w", err)
		}
		return cfg, "(defaults)", nil
	}
	return nil, "", fmt.Errorf("loading config: %w", err)
}

// getConfigPath returns the configuration file path.
// Uses SCENEFIXER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SCENEFIXER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startPlatform builds the configured platform binding. The returned stop
// function releases it.
func startPlatform(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (platform.Platform, func(), error) {
	switch cfg.Platform.Kind {
	case "mqtt":
		if mqttClient == nil {
			return nil, nil, fmt.Errorf("platform %q requires MQTT", cfg.Platform.Kind)
		}
		p := platform.NewMQTTPlatform(mqttClient, platform.MQTTConfig{
			Name:           cfg.Platform.Name,
			RequestTimeout: cfg.Platform.Timeout(),
			QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2
		})
		if err := p.Start(); err != nil {
			return nil, nil, fmt.Errorf("starting MQTT platform: %w", err)
		}
		log.Info("MQTT platform binding started", "platform", cfg.Platform.Name)
		return p, func() {
			if err := p.Stop(); err != nil {
				log.Error("error stopping MQTT platform", "error", err)
			}
		}, nil
	default:
		log.Warn("using in-memory demo platform; no real devices are monitored")
		return demoPlatform(), func() {}, nil
	}
}

// demoPlatform returns an in-memory home with one unreachable device so
// every workflow can be exercised without a bridge.
func demoPlatform() *platform.Memory {
	m := platform.NewMemory()
	room := func(s string) *string { return &s }

	m.AddDevice(platform.DeviceInfo{ID: "living-lamp", Name: "Living Room Lamp", Room: room("Living Room"), Vendor: "Philips", Kind: "Lightbulb", HasPower: true, Reachable: true}, false)
	m.AddDevice(platform.DeviceInfo{ID: "tv-strip", Name: "TV Light Strip", Room: room("Living Room"), Vendor: "Nanoleaf", Kind: "Lightbulb", HasPower: true, Reachable: false}, false)
	m.AddDevice(platform.DeviceInfo{ID: "kettle-plug", Name: "Kettle Plug", Room: room("Kitchen"), Vendor: "Meross", Kind: "Outlet", HasPower: true, Reachable: true}, false)
	m.AddDevice(platform.DeviceInfo{ID: "front-door", Name: "Front Door", Room: room("Hall"), Vendor: "August", Kind: "Lock Mechanism", HasPower: true, Reachable: true}, false)
	m.AddDevice(platform.DeviceInfo{ID: "hall-motion", Name: "Hall Motion", Room: room("Hall"), Vendor: "Aqara", Kind: "Motion Sensor", Reachable: true}, false)

	m.AddScene(platform.SceneInfo{ID: "movie-night", Name: "Movie Night", ActionSetID: "as-1"}, []platform.Action{
		{ID: "mn-1", DeviceID: "living-lamp", DeviceName: "Living Room Lamp"},
		{ID: "mn-2", DeviceID: "tv-strip", DeviceName: "TV Light Strip"},
	})
	m.AddScene(platform.SceneInfo{ID: "good-morning", Name: "Good Morning", ActionSetID: "as-2"}, []platform.Action{
		{ID: "gm-1", DeviceID: "living-lamp", DeviceName: "Living Room Lamp"},
		{ID: "gm-2", DeviceID: "kettle-plug", DeviceName: "Kettle Plug"},
	})
	return m
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
