package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/config"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/database"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/telemetry"
)

// statusHistoryLimit is how many recent telemetry entries status shows.
const statusHistoryLimit = 5

// showStatus prints the device identity, configured sensors, and the most
// recent telemetry history without starting the agent.
func showStatus(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("Device:")
	fmt.Printf("  ID:       %s\n", cfg.Device.ID)
	fmt.Printf("  Network:  %s\n", cfg.Device.NetworkID)
	fmt.Printf("  Node URL: %s\n", cfg.Device.NodeURL)
	fmt.Printf("  Account:  %s\n", identity.AccountFor(cfg.Device.Keys.PublicKey))

	sensorRepo := sensor.NewFileRepository(cfg.Sensors.ConfigFile)
	configs, err := sensorRepo.Load()
	if err != nil {
		return fmt.Errorf("loading sensor configs: %w", err)
	}
	fmt.Printf("\nSensors (%d configured):\n", len(configs))
	for _, sc := range configs {
		state := "disabled"
		if sc.Enabled {
			state = "enabled"
		}
		alias := ""
		if sc.Alias != "" {
			alias = " (" + sc.Alias + ")"
		}
		fmt.Printf("  %s: %s [%s]%s\n", sc.SensorID, sc.SensorType, state, alias)
	}

	// Recent telemetry, if a history database exists yet.
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		fmt.Println("\nTelemetry: no history database yet")
		return nil
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	history, err := telemetry.NewSQLiteRepository(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("opening telemetry history: %w", err)
	}
	entries, err := history.Latest(ctx, statusHistoryLimit)
	if err != nil {
		return fmt.Errorf("reading telemetry history: %w", err)
	}

	fmt.Printf("\nRecent telemetry (%d entries):\n", len(entries))
	for _, entry := range entries {
		detail := entry.Status
		if entry.Error != "" {
			detail += ": " + entry.Error
		}
		fmt.Printf("  %s  %s (%s)  %s\n",
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
			entry.SensorID, entry.SensorType, detail)
	}
	return nil
}

// showConfig prints the active configuration with secrets redacted.
func showConfig() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	redacted := *cfg
	if redacted.Device.Keys.SecretKey != "" {
		redacted.Device.Keys.SecretKey = "<redacted>"
	}
	if redacted.MQTT.Auth.Password != "" {
		redacted.MQTT.Auth.Password = "<redacted>"
	}
	if redacted.InfluxDB.Token != "" {
		redacted.InfluxDB.Token = "<redacted>"
	}

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	fmt.Printf("# %s\n%s", getConfigPath(), data)
	return nil
}
