package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/identity"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/config"
)

// runSetup generates a device key pair and writes the initial configuration
// file. Existing configuration is never overwritten unless -force is given.
func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	deviceID := fs.String("device-id", "", "device identifier (default: generated)")
	network := fs.String("network", string(identity.NetworkMainnet), "platform network (mainnet01 or testnet04)")
	nodeURL := fs.String("node-url", "https://node.cyberfly.io", "platform node endpoint")
	force := fs.Bool("force", false, "overwrite an existing configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !identity.NetworkID(*network).Valid() {
		return fmt.Errorf("unknown network %q", *network)
	}

	path := getConfigPath()
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("configuration already exists at %s (use -force to overwrite)", path)
	}

	id := *deviceID
	if id == "" {
		id = "cyberfly-" + uuid.NewString()[:8]
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	publicHex := hex.EncodeToString(pub)
	secretHex := hex.EncodeToString(priv.Seed())

	dir := config.DefaultDir()
	cfg := config.Config{
		Device: config.DeviceConfig{
			ID:        id,
			NetworkID: *network,
			NodeURL:   *nodeURL,
			Keys: config.KeyPairConfig{
				PublicKey: publicHex,
				SecretKey: secretHex,
			},
		},
		MQTT: config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host: "node.cyberfly.io",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: config.MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Telemetry: config.TelemetryConfig{
			Enabled:  true,
			Interval: 60,
		},
		Database: config.DatabaseConfig{
			Path:        filepath.Join(dir, "telemetry.db"),
			WALMode:     true,
			BusyTimeout: 5,
		},
		Sensors: config.SensorsConfig{
			ConfigFile:  filepath.Join(dir, "sensor_config.json"),
			ReadTimeout: 5,
		},
		Logging: config.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds the secret key; keep it owner-only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}

	fmt.Printf("Device configuration written to %s\n\n", path)
	fmt.Printf("  Device ID: %s\n", id)
	fmt.Printf("  Network:   %s\n", *network)
	fmt.Printf("  Node URL:  %s\n", *nodeURL)
	fmt.Printf("  Account:   %s\n\n", identity.AccountFor(publicHex))
	fmt.Println("Register the device with this account on the CyberFly platform,")
	fmt.Println("then start the agent with: cyberflyd run")
	return nil
}
