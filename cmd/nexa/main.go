// NEXA Core - Smart Home Automation Engine
//
// This is the main entry point for the NEXA Core application. NEXA Core
// runs the home's automation brain on local hardware:
//   - Rule-based automation (triggers, conditions, actions)
//   - Device registry with MQTT protocol bridges
//   - Realtime WebSocket fan-out to apps and dashboards
//   - Offline-first operation with local SQLite persistence
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Sskr2000us/nexa-core/migrations"

	"github.com/Sskr2000us/nexa-core/internal/alert"
	"github.com/Sskr2000us/nexa-core/internal/api"
	"github.com/Sskr2000us/nexa-core/internal/automation"
	"github.com/Sskr2000us/nexa-core/internal/device"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/config"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/database"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/influxdb"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/logging"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/mqtt"
	"github.com/Sskr2000us/nexa-core/internal/realtime"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting NEXA Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(deviceRepo)
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.DeviceCount())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Realtime hub for WebSocket fan-out
	hub := realtime.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Alert service (persists alerts, pushes alert:new to apps)
	alertService := alert.NewService(alert.NewSQLiteRepository(db.DB), hub, log)

	// Automation engine
	ruleRepo := automation.NewSQLiteRepository(db.DB)
	commander := device.NewCommander(registry, mqttClient, log)
	executor := automation.NewExecutor(commander, alertService,
		time.Duration(cfg.Automation.ActionTimeout)*time.Second, log)
	engine := automation.NewEngine(ruleRepo, executor, registry, hub,
		time.Duration(cfg.Automation.MaxExecutionTime)*time.Second, log)
	if influxClient != nil {
		engine.SetMetrics(influxClient)
	}
	log.Info("automation engine initialised",
		"action_timeout_s", cfg.Automation.ActionTimeout,
		"max_execution_time_s", cfg.Automation.MaxExecutionTime,
	)

	// HTTP API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		Registry:  registry,
		Commander: commander,
		MQTT:      mqttClient,
		Engine:    engine,
		Rules:     ruleRepo,
		Alerts:    alertService,
		Hub:       hub,
		Telemetry: influxClient,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("NEXA Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NEXA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NEXA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
