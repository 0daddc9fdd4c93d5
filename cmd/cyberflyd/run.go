package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/agent"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/config"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/database"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/influxdb"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/logging"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/mqtt"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/platform"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor/drivers"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/telemetry"
)

// runAgent is the main agent loop, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func runAgent(ctx context.Context) error {
	// Use default logger until config is loaded.
	log := logging.Default()
	log.Info("starting CyberFly device agent",
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

	// Reinitialise logger with config settings.
	log = logging.New(cfg.Logging, version)

	// Device identity.
	keys, err := identity.ParseKeyPair(cfg.Device.Keys.PublicKey, cfg.Device.Keys.SecretKey)
	if err != nil {
		return fmt.Errorf("loading device keys: %w", err)
	}
	id, err := identity.New(cfg.Device.ID, keys, identity.NetworkID(cfg.Device.NetworkID), cfg.Device.NodeURL)
	if err != nil {
		return fmt.Errorf("building device identity: %w", err)
	}
	log.Info("device identity loaded",
		"device_id", id.DeviceID,
		"account", id.Account,
		"network", id.Network,
	)

	// Open database for telemetry history.
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
	log.Info("database connected", "path", cfg.Database.Path)

	history, err := telemetry.NewSQLiteRepository(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("initialising telemetry history: %w", err)
	}

	// Sensor registry backed by the host driver factory and the persisted
	// sensor configuration file.
	registry := sensor.NewRegistry(drivers.NewHostFactory())
	registry.SetLogger(log)
	registry.SetReadTimeout(cfg.SensorReadTimeout())

	sensorRepo := sensor.NewFileRepository(cfg.Sensors.ConfigFile)
	registry.SetSaveFunc(sensorRepo.Save)

	persisted, err := sensorRepo.Load()
	if err != nil {
		return fmt.Errorf("loading sensor configs: %w", err)
	}
	loaded := registry.Load(persisted)
	log.Info("sensors loaded", "configured", len(persisted), "loaded", len(loaded))

	// Connect to MQTT broker. The device ID doubles as the client ID unless
	// one is configured explicitly.
	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = cfg.Device.ID
	}
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
	)

	// Connect to InfluxDB (optional).
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Platform registry client. The registry API lives on the node unless a
	// separate base URL is configured.
	registryURL := cfg.Platform.BaseURL
	if registryURL == "" {
		registryURL = id.NodeURL
	}
	directory := platform.New(registryURL, id.Network, id.Keys)

	// The agent itself.
	client := agent.New(id, mqttClient, registry, directory, agent.WithLogger(log))
	if err := client.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping agent: %w", err)
	}

	topics := mqtt.Topics{}
	if err := mqttClient.Subscribe(topics.Device(id.DeviceID), byte(cfg.MQTT.QoS), client.OnReceive); err != nil {
		return fmt.Errorf("subscribing to command topic: %w", err)
	}
	log.Info("subscribed to command topic", "topic", topics.Device(id.DeviceID))

	statusTopic := topics.DeviceStatus(id.DeviceID)
	client.AnnounceStatus(statusTopic, "online")
	defer client.AnnounceStatus(statusTopic, "offline")

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		client.AnnounceStatus(statusTopic, "online")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Telemetry publisher.
	var wg sync.WaitGroup
	if cfg.Telemetry.Enabled {
		opts := []telemetry.Option{
			telemetry.WithInterval(cfg.TelemetryInterval()),
			telemetry.WithHistory(history),
			telemetry.WithLogger(log),
		}
		if influxClient != nil {
			opts = append(opts, telemetry.WithMetrics(func(sensorID, field string, value float64, ts time.Time) {
				influxClient.WriteSensorValue(id.DeviceID, sensorID, field, value, ts)
			}))
		}

		publisher := telemetry.NewPublisher(registry, func(readings []sensor.Reading) error {
			return client.PublishReadings(topics.Device(id.DeviceID), readings)
		}, opts...)

		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(ctx)
		}()
	} else {
		log.Info("telemetry publishing disabled")
	}

	// Verify all connections are healthy.
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	wg.Wait()

	log.Info("CyberFly device agent stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
