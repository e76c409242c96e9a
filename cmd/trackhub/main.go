// Tracker hub entry point.
//
// The hub connects a fleet of GPS/audio trackers to their guardians: it
// consumes tracker reports from the MQTT bus, maintains the device
// registry and location history, relays live audio over websockets, and
// exposes the HTTP API the mobile app talks to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/ngocdanh181/ChildTrackingIOT/migrations"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/api"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/auth"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/bus"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/command"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/device"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/config"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/database"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/influxdb"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/logging"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/mqtt"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/location"
	"github.com/ngocdanh181/ChildTrackingIOT/internal/relay"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context, cancel context.CancelFunc) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting tracker hub",
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

	// Open database and apply migrations
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)
	deviceRegistry.SetDefaults(device.Defaults{
		TrackingInterval: cfg.Tracker.DefaultInterval,
		AudioSampleRate:  cfg.Tracker.AudioSampleRate,
		AudioFormat:      cfg.Tracker.AudioFormat,
	})

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT session established")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	// The hub is useless without the bus. When the retry budget runs out,
	// shut down so the supervisor restarts the process.
	mqttClient.SetOnReconnectExhausted(func() {
		log.Error("MQTT reconnect attempts exhausted, shutting down")
		cancel()
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Location ingest pipeline
	locationRepo := location.NewSQLiteRepository(db.DB)
	ingestor := location.NewIngestor(locationRepo, deviceRegistry)
	ingestor.SetLogger(log)
	if influxClient != nil {
		ingestor.SetMetricsSink(influxClient)
	}

	// Bind the topic router to the bus
	router := bus.NewRouter(deviceRegistry, ingestor, mqttClient)
	router.SetLogger(log)
	if influxClient != nil {
		router.SetTelemetrySink(influxClient)
	}
	if bindErr := router.Bind(mqttClient, byte(cfg.MQTT.QoS)); bindErr != nil {
		return fmt.Errorf("subscribing to device topics: %w", bindErr)
	}
	log.Info("topic router bound", "subscriptions", mqttClient.SubscriptionCount())

	// Command dispatcher
	dispatcher := command.NewDispatcher(mqttClient)
	dispatcher.SetLogger(log)

	// Audio relay hub
	relayHub := relay.NewHub(cfg.Relay)
	relayHub.SetLogger(log)

	// HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		Auth:      cfg.Auth,
		Logger:    log,
		Registry:  deviceRegistry,
		Locations: ingestor,
		Commands:  dispatcher,
		Users:     auth.NewUserRepository(db.DB),
		Relay:     relayHub,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal (or reconnect exhaustion)
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting requests, closes relay connections)
	// 2. MQTT (publishes retained offline status)
	// 3. InfluxDB (flushes pending writes, if enabled)
	// 4. Database

	log.Info("tracker hub stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TRACKHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TRACKHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
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
