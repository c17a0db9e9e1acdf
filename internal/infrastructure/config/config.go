package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HubLink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Polling   PollingConfig   `yaml:"polling"`
	Local     LocalConfig     `yaml:"local"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Devices   DevicesConfig   `yaml:"devices"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HubConfig contains the remote SmartApp API settings.
type HubConfig struct {
	// AppURL is the SmartApp installation base URL, ending in a slash.
	// Example: "https://graph.api.smartthings.com/api/smartapps/installations/"
	AppURL string `yaml:"app_url"`

	// AppID is the SmartApp installation identifier appended to AppURL.
	AppID string `yaml:"app_id"`

	// AccessToken authenticates requests to the remote API.
	AccessToken string `yaml:"access_token"`

	// ValidateTokenID makes the push listener reject requests that do not
	// carry the configured app_id and access_token.
	ValidateTokenID bool `yaml:"validate_token_id"`

	// TimeoutSeconds bounds every remote API request.
	// Default: 30
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// PollingConfig contains reconciliation cycle settings.
type PollingConfig struct {
	// IntervalSeconds is the time between full device refreshes.
	// Default: 3600
	IntervalSeconds int `yaml:"interval_seconds"`
}

// LocalConfig contains settings for the local hub transport.
type LocalConfig struct {
	// Commands enables sending commands directly to the hub on the LAN.
	// The hub may override this through location metadata or preference pushes.
	Commands bool `yaml:"commands"`

	// HubIP is the initial local hub address. Usually learned from the
	// first device refresh instead.
	HubIP string `yaml:"hub_ip"`

	// Port is the hub's local event port.
	// Default: 39500
	Port int `yaml:"port"`

	// TimeoutSeconds bounds every local hub request. A timeout disables the
	// local transport until the next successful send.
	// Default: 10
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// APIConfig contains the push listener settings.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AdvertiseIP is the address announced to the hub for push delivery.
	// Empty means the first non-loopback IPv4 address is used.
	AdvertiseIP string `yaml:"advertise_ip"`

	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains event stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DevicesConfig contains per-device presentation settings.
type DevicesConfig struct {
	// ExcludedCapabilities maps a device ID to capability names that should
	// not be exposed for that device.
	ExcludedCapabilities map[string][]string `yaml:"excluded_capabilities"`

	// ExcludedAttributes lists attribute names never published to the bus.
	ExcludedAttributes []string `yaml:"excluded_attributes"`

	// TemperatureUnit is "F" or "C". Replaced by the hub's location setting
	// on every refresh.
	TemperatureUnit string `yaml:"temperature_unit"`
}

// DatabaseConfig contains SQLite settings for the attribute history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetentionHours prunes history rows older than this. 0 keeps everything.
	HistoryRetentionHours int `yaml:"history_retention_hours"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`

	// ShowChanges logs every pushed attribute change at info level.
	ShowChanges bool `yaml:"show_changes"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HUBLINK_SECTION_KEY
// For example: HUBLINK_HUB_ACCESS_TOKEN, HUBLINK_LOCAL_HUB_IP
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			AppURL:         "https://graph.api.smartthings.com/api/smartapps/installations/",
			TimeoutSeconds: 30,
		},
		Polling: PollingConfig{
			IntervalSeconds: 3600,
		},
		Local: LocalConfig{
			Port:           39500,
			TimeoutSeconds: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Devices: DevicesConfig{
			ExcludedCapabilities: map[string][]string{},
			TemperatureUnit:      "F",
		},
		Database: DatabaseConfig{
			Path:                  "./data/hublink.db",
			WALMode:               true,
			BusyTimeout:           5,
			HistoryRetentionHours: 168,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hublink",
			},
			QoS:         1,
			TopicPrefix: "hublink",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "stdout",
			ShowChanges: true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HUBLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("HUBLINK_HUB_APP_URL"); v != "" {
		cfg.Hub.AppURL = v
	}
	if v := os.Getenv("HUBLINK_HUB_APP_ID"); v != "" {
		cfg.Hub.AppID = v
	}
	if v := os.Getenv("HUBLINK_HUB_ACCESS_TOKEN"); v != "" {
		cfg.Hub.AccessToken = v
	}

	// Local transport
	if v := os.Getenv("HUBLINK_LOCAL_HUB_IP"); v != "" {
		cfg.Local.HubIP = v
	}
	if v := os.Getenv("HUBLINK_LOCAL_COMMANDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Local.Commands = b
		}
	}

	// API
	if v := os.Getenv("HUBLINK_API_ADVERTISE_IP"); v != "" {
		cfg.API.AdvertiseIP = v
	}

	// Database
	if v := os.Getenv("HUBLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HUBLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HUBLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HUBLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HUBLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Hub validation - without these nothing can be fetched
	if c.Hub.AppURL == "" {
		errs = append(errs, "hub.app_url is required")
	} else if u, err := url.Parse(c.Hub.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "hub.app_url must be an absolute URL")
	}
	if c.Hub.AppID == "" {
		errs = append(errs, "hub.app_id is required")
	}
	if c.Hub.TimeoutSeconds <= 0 {
		errs = append(errs, "hub.timeout_seconds must be positive")
	}

	if c.Polling.IntervalSeconds <= 0 {
		errs = append(errs, "polling.interval_seconds must be positive")
	}

	if c.Local.Port < 1 || c.Local.Port > 65535 {
		errs = append(errs, "local.port must be between 1 and 65535")
	}
	if c.Local.TimeoutSeconds <= 0 {
		errs = append(errs, "local.timeout_seconds must be positive")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch strings.ToUpper(c.Devices.TemperatureUnit) {
	case "F", "C":
	default:
		errs = append(errs, "devices.temperature_unit must be F or C")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the reconciliation interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// GetHubTimeout returns the remote API request timeout as a Duration.
func (c *Config) GetHubTimeout() time.Duration {
	return time.Duration(c.Hub.TimeoutSeconds) * time.Second
}

// GetLocalTimeout returns the local hub request timeout as a Duration.
func (c *Config) GetLocalTimeout() time.Duration {
	return time.Duration(c.Local.TimeoutSeconds) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
