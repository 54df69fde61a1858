// myhomed - MyHOME bus discovery engine
//
// This is the main entry point for the discovery daemon. It connects to
// OpenWebNet gateways over TCP, sweeps the bus subsystem by subsystem,
// classifies the devices that answer, and writes them into the device
// configuration document with diff-minimal YAML edits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/ferralux/myhome-core/migrations"

	"github.com/ferralux/myhome-core/internal/api"
	"github.com/ferralux/myhome-core/internal/bus/own"
	"github.com/ferralux/myhome-core/internal/configstore"
	"github.com/ferralux/myhome-core/internal/discovery"
	"github.com/ferralux/myhome-core/internal/infrastructure/config"
	"github.com/ferralux/myhome-core/internal/infrastructure/database"
	"github.com/ferralux/myhome-core/internal/infrastructure/influxdb"
	"github.com/ferralux/myhome-core/internal/infrastructure/logging"
	"github.com/ferralux/myhome-core/internal/infrastructure/mqtt"
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

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting myhomed",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Bus traffic recorder
	recorder := own.NewBusRecorder(db.DB)
	recorder.SetLogger(log)
	if startErr := recorder.Start(); startErr != nil {
		return fmt.Errorf("starting bus recorder: %w", startErr)
	}
	defer func() {
		log.Info("stopping bus recorder")
		recorder.Stop()
	}()

	// Connect to MQTT broker (optional)
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
	} else {
		log.Info("MQTT disabled")
	}

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

	// Config store writer
	writer := configstore.NewWriter(cfg.ConfigStore.Path, log)
	if mqttClient != nil {
		topics := mqtt.Topics{}
		qos := byte(cfg.MQTT.QoS)
		writer.SetReloadFunc(func(gateway string) {
			payload := []byte(`{"gateway":"` + gateway + `"}`)
			if pubErr := mqttClient.Publish(topics.ConfigWritten(gateway), payload, qos, false); pubErr != nil {
				log.Warn("config reload signal failed", "gateway", gateway, "error", pubErr)
			}
		})
	}
	log.Info("config store ready", "path", cfg.ConfigStore.Path)

	// Discovery orchestrator
	orch := discovery.NewOrchestrator(discovery.Config{
		ProbeTimeout:   time.Duration(cfg.Discovery.ProbeTimeout) * time.Second,
		SessionTimeout: time.Duration(cfg.Discovery.SessionTimeout) * time.Second,
		MaxInFlight:    cfg.Discovery.MaxInFlight,
		SendSpacing:    time.Duration(cfg.Discovery.SendSpacing) * time.Millisecond,
	}, log)
	orch.SetWriter(configWriterAdapter{writer: writer})
	orch.SetRecorder(recorder)
	if influxClient != nil {
		orch.SetMetrics(influxClient)
	}
	defer func() {
		log.Info("stopping discovery sessions")
		orch.StopAll()
	}()

	// Connect gateways
	connected := 0
	for _, gw := range cfg.Gateways {
		client, dialErr := own.Dial(ctx, own.GatewayConfig{
			MAC:  gw.MAC,
			Host: gw.Host,
			Port: gw.Port,
		})
		if dialErr != nil {
			log.Error("gateway connection failed", "gateway", gw.MAC, "host", gw.Host, "error", dialErr)
			continue
		}
		client.SetLogger(log)
		defer func(c *own.GatewayClient, mac string) {
			log.Info("closing gateway connection", "gateway", mac)
			if closeErr := c.Close(); closeErr != nil {
				log.Error("error closing gateway", "gateway", mac, "error", closeErr)
			}
		}(client, gw.MAC)

		orch.RegisterGateway(gw.MAC, client)
		connected++
		log.Info("gateway connected",
			"gateway", gw.MAC,
			"name", gw.Name,
			"address", fmt.Sprintf("%s:%d", gw.Host, gw.Port),
		)
	}
	if len(cfg.Gateways) > 0 && connected == 0 {
		log.Warn("no gateways connected", "configured", len(cfg.Gateways))
	}

	// API server
	srv, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Logger:       log,
		Orchestrator: orch,
		Recorder:     recorder,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Discovery events fan out to WebSocket clients and, when MQTT is
	// connected, to the broker.
	sinks := []discovery.EventSink{srv.Hub().EventSink()}
	if mqttClient != nil {
		sinks = append(sinks, discovery.NewMQTTSink(mqttClient, byte(cfg.MQTT.QoS), log))
	}
	orch.SetEventSink(multiSink(sinks))

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Kick off discovery on every connected gateway when configured
	if cfg.Discovery.Autostart {
		started, errs := orch.StartAll(ctx)
		for _, startErr := range errs {
			log.Warn("autostart discovery failed", "error", startErr)
		}
		log.Info("discovery autostarted", "sessions", len(started))
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Gateway connections
	// 3. Discovery sessions
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Bus recorder
	// 7. Database

	log.Info("myhomed stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MYHOME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MYHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// configWriterAdapter adapts the config store writer to the orchestrator's
// DeviceWriter interface, collapsing the Result enum to the added flag.
type configWriterAdapter struct {
	writer *configstore.Writer
}

func (a configWriterAdapter) Apply(ctx context.Context, d discovery.DiscoveredDevice) (bool, error) {
	res, err := a.writer.Apply(ctx, d)
	if err != nil {
		return false, err
	}
	return res == configstore.ResultAdded, nil
}

// multiSink fans discovery events out to several sinks.
type multiSink []discovery.EventSink

func (m multiSink) DeviceDiscovered(d discovery.DiscoveredDevice) {
	for _, s := range m {
		s.DeviceDiscovered(d)
	}
}

func (m multiSink) SessionFinished(snap discovery.SessionSnapshot) {
	for _, s := range m {
		s.SessionFinished(snap)
	}
}
