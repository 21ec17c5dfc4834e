// DayBetter Bridge - MQTT gateway for DayBetter cloud devices
//
// This is the main entry point for the bridge daemon. The bridge:
//   - Fetches per-account TLS certificate bundles from the DayBetter cloud
//   - Maintains a supervised mutual-TLS MQTT connection to the vendor broker
//   - Decodes device update messages and routes them to registered callbacks
//   - Optionally records sensor telemetry in InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/daybetter-bridge/internal/cloud"
	"github.com/nerrad567/daybetter-bridge/internal/dispatch"
	"github.com/nerrad567/daybetter-bridge/internal/infrastructure/config"
	"github.com/nerrad567/daybetter-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/daybetter-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/daybetter-bridge/internal/infrastructure/store"
	"github.com/nerrad567/daybetter-bridge/internal/mqtt"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DayBetter Bridge",
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

	// Open bundle store
	bundleStore, err := store.Open(store.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening bundle store: %w", err)
	}
	defer func() {
		log.Info("closing bundle store")
		if closeErr := bundleStore.Close(); closeErr != nil {
			log.Error("error closing bundle store", "error", closeErr)
		}
	}()
	log.Info("bundle store opened", "path", cfg.Database.Path)

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

	// Cloud client is optional: without a token the bridge relies on
	// certificates already on disk or cached in the store.
	var cloudClient *cloud.Client
	if cfg.Cloud.Token != "" {
		cloudClient, err = cloud.New(cfg.Cloud.BaseURL, cfg.Cloud.Token)
		if err != nil {
			return fmt.Errorf("creating cloud client: %w", err)
		}
		log.Info("cloud client ready", "base_url", cfg.Cloud.BaseURL)
	} else {
		log.Info("no cloud token configured, using local certificates only")
	}

	// Set up the message dispatcher
	registry := dispatch.NewRegistry()
	dispatcher := dispatch.NewDispatcher(registry, log)
	if influxClient != nil {
		dispatcher.SetRecorder(influxClient)
	}

	// Connect to the DayBetter MQTT broker
	manager := mqtt.New(cfg.MQTT, cfg.Cloud.AccountID, buildMQTTDeps(bundleStore, cloudClient, influxClient, dispatcher, log))
	if err := manager.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := manager.Disconnect(); closeErr != nil {
			log.Error("error disconnecting MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected", "client_id", manager.ClientID())

	// Verify all connections are healthy
	if err := healthCheck(ctx, bundleStore, manager, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. MQTT
	// 2. InfluxDB (if enabled)
	// 3. Bundle store

	log.Info("DayBetter Bridge stopped")
	return nil
}

// buildMQTTDeps assembles the manager's dependencies, leaving interface
// fields unset when the corresponding component is disabled. Assigning a
// nil concrete pointer would produce a non-nil interface value.
func buildMQTTDeps(bundleStore *store.Store, cloudClient *cloud.Client, influxClient *influxdb.Client, dispatcher *dispatch.Dispatcher, log *logging.Logger) mqtt.Deps {
	deps := mqtt.Deps{
		Store:   bundleStore,
		Handler: dispatcher.HandleMessage,
		Logger:  log,
	}
	if cloudClient != nil {
		deps.Cloud = cloudClient
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}
	return deps
}

// getConfigPath returns the configuration file path.
// Uses DAYBETTER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DAYBETTER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - bundleStore: Bundle store to check
//   - manager: MQTT connection manager to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, bundleStore *store.Store, manager *mqtt.Manager, influxClient *influxdb.Client) error {
	if err := bundleStore.HealthCheck(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := manager.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
