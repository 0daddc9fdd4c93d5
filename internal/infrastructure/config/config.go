package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the CyberFly device agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Platform  PlatformConfig  `yaml:"platform"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains the device identity settings.
type DeviceConfig struct {
	ID        string        `yaml:"id"`
	NetworkID string        `yaml:"network_id"`
	NodeURL   string        `yaml:"node_url"`
	Keys      KeyPairConfig `yaml:"keys"`
}

// KeyPairConfig contains the device key pair in hex encoding.
// The secret key should normally come from the environment, not the file.
type KeyPairConfig struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// PlatformConfig contains the platform registry API settings.
type PlatformConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// TelemetryConfig contains the periodic sensor publishing settings.
type TelemetryConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"` // seconds between aggregate publishes
}

// DatabaseConfig contains SQLite settings for local telemetry history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains optional InfluxDB telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// SensorsConfig contains the sensor subsystem settings.
type SensorsConfig struct {
	// ConfigFile is the JSON file holding persisted sensor configurations.
	ConfigFile string `yaml:"config_file"`

	// ReadTimeout bounds a single hardware read/execute call (seconds).
	ReadTimeout int `yaml:"read_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CYBERFLY_SECTION_KEY
// For example: CYBERFLY_DEVICE_ID, CYBERFLY_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultDir returns the default configuration directory (~/.cyberfly).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cyberfly"
	}
	return filepath.Join(home, ".cyberfly")
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	dir := DefaultDir()
	return &Config{
		Device: DeviceConfig{
			NetworkID: "mainnet01",
			NodeURL:   "https://node.cyberfly.io",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "node.cyberfly.io",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Platform: PlatformConfig{
			Timeout: 10,
		},
		Telemetry: TelemetryConfig{
			Enabled:  true,
			Interval: 60,
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(dir, "telemetry.db"),
			WALMode:     true,
			BusyTimeout: 5,
		},
		Sensors: SensorsConfig{
			ConfigFile:  filepath.Join(dir, "sensor_config.json"),
			ReadTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Device identity
	if v := os.Getenv("CYBERFLY_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("CYBERFLY_NETWORK_ID"); v != "" {
		cfg.Device.NetworkID = v
	}
	if v := os.Getenv("CYBERFLY_NODE_URL"); v != "" {
		cfg.Device.NodeURL = v
	}
	if v := os.Getenv("CYBERFLY_PUBLIC_KEY"); v != "" {
		cfg.Device.Keys.PublicKey = v
	}
	if v := os.Getenv("CYBERFLY_SECRET_KEY"); v != "" {
		cfg.Device.Keys.SecretKey = v
	}

	// MQTT
	if v := os.Getenv("CYBERFLY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CYBERFLY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("CYBERFLY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CYBERFLY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CYBERFLY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// knownNetworks lists the network environments the platform operates.
var knownNetworks = []string{"mainnet01", "testnet04"}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.Keys.PublicKey == "" {
		errs = append(errs, "device.keys.public_key is required")
	}
	if c.Device.Keys.SecretKey == "" {
		errs = append(errs, "device.keys.secret_key is required (set CYBERFLY_SECRET_KEY environment variable)")
	}

	validNetwork := false
	for _, n := range knownNetworks {
		if c.Device.NetworkID == n {
			validNetwork = true
			break
		}
	}
	if !validNetwork {
		errs = append(errs, fmt.Sprintf("device.network_id must be one of %s", strings.Join(knownNetworks, ", ")))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}

	if c.Telemetry.Interval < 1 {
		errs = append(errs, "telemetry.interval must be at least 1 second")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Sensors.ConfigFile == "" {
		errs = append(errs, "sensors.config_file is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TelemetryInterval returns the telemetry publish interval as a Duration.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Second
}

// SensorReadTimeout returns the per-hardware-call timeout as a Duration.
func (c *Config) SensorReadTimeout() time.Duration {
	return time.Duration(c.Sensors.ReadTimeout) * time.Second
}

// PlatformTimeout returns the platform API request timeout as a Duration.
func (c *Config) PlatformTimeout() time.Duration {
	return time.Duration(c.Platform.Timeout) * time.Second
}
