// Package config loads the stratuxmap service configuration from TOML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP API settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Airports AirportsConfig `toml:"airports"` // Airport reference data and lookup settings
	Feed     FeedConfig     `toml:"feed"`     // Report sources
	Storage  StorageConfig  `toml:"storage"`  // Latest-report and history stores
	Kafka    KafkaConfig    `toml:"kafka"`    // Parsed report stream
	Parser   ParserConfig   `toml:"parser"`   // Pipeline worker settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Host               string   `toml:"host"`                  // Host address to bind to
	Port               int      `toml:"port"`                  // HTTP port
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (["*"] for all)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
	AuthEnabled        bool     `toml:"auth_enabled"`          // Require an API key on /api/v1 routes
	APIKeys            []string `toml:"api_keys"`              // Accepted API keys
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// AirportsConfig controls where airport metadata comes from. When
// LookupURL is set the HTTP lookup is used; otherwise the SQLite store.
type AirportsConfig struct {
	SQLitePath     string `toml:"sqlite_path"`     // Airport reference database (OurAirports import)
	LookupURL      string `toml:"lookup_url"`      // Base URL of an external /airport lookup service
	CacheSize      int    `toml:"cache_size"`      // LRU entries in front of the lookup
	TimeoutSeconds int    `toml:"timeout_seconds"` // HTTP lookup timeout
}

// FeedConfig contains report source settings
type FeedConfig struct {
	StratuxURL            string `toml:"stratux_url"`             // Stratux weather websocket (e.g. ws://192.168.10.1/weather)
	NATSURL               string `toml:"nats_url"`                // NATS server for envelopes and parsed reports
	NATSSubject           string `toml:"nats_subject"`            // Subject carrying raw envelopes
	NATSPublishSubject    string `toml:"nats_publish_subject"`    // Subject prefix for parsed reports
	ReconnectIntervalSecs int    `toml:"reconnect_interval_secs"` // Initial reconnect backoff
	MaxReconnectSecs      int    `toml:"max_reconnect_secs"`      // Reconnect backoff ceiling
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	State      StateConfig      `toml:"state"`
	Postgres   PostgresConfig   `toml:"postgres"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
}

// StateConfig holds the in-process latest-report tracker settings.
type StateConfig struct {
	Path           string `toml:"path"`            // SQLite file the tracker persists to ("" keeps it in memory)
	RetentionHours int    `toml:"retention_hours"` // Reports older than this are dropped
}

// PostgresConfig holds the latest-report store settings.
type PostgresConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// ClickHouseConfig holds the report history settings.
type ClickHouseConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`

	BatchSize int `toml:"batch_size"` // Records buffered per insert
}

// KafkaConfig contains the parsed report stream settings
type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// ParserConfig contains pipeline settings
type ParserConfig struct {
	Workers           int `toml:"workers"`             // Concurrent dispatch workers
	QueueSize         int `toml:"queue_size"`          // Buffered envelopes between source and workers
	FlushIntervalSecs int `toml:"flush_interval_secs"` // How often buffering sinks are flushed
}

// Default returns a configuration with local development settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8500,
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   30,
			IdleTimeoutSecs:    60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Airports: AirportsConfig{
			SQLitePath:     "data/airports.db",
			CacheSize:      4096,
			TimeoutSeconds: 5,
		},
		Feed: FeedConfig{
			NATSSubject:           "stratux.weather",
			NATSPublishSubject:    "stratux.parsed",
			ReconnectIntervalSecs: 1,
			MaxReconnectSecs:      30,
		},
		Storage: StorageConfig{
			State: StateConfig{
				Path:           "data/state.db",
				RetentionHours: 24,
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "stratuxmap",
				User:     "stratuxmap",
				Password: "stratuxmap",
			},
			ClickHouse: ClickHouseConfig{
				Host:     "localhost",
				Port:     9000,
				Database:  "stratuxmap",
				User:      "default",
				BatchSize: 100,
			},
		},
		Kafka: KafkaConfig{
			Topic: "stratux-reports",
		},
		Parser: ParserConfig{
			Workers:           4,
			QueueSize:         256,
			FlushIntervalSecs: 5,
		},
	}
}

// Load loads the configuration from the specified file path. Keys missing
// from the file keep their Default values.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyEnv lets secrets and deployment addresses come from the environment.
func (c *Config) applyEnv() {
	c.Storage.Postgres.Host = envOrDefault("POSTGRES_HOST", c.Storage.Postgres.Host)
	c.Storage.Postgres.Port = envOrDefaultInt("POSTGRES_PORT", c.Storage.Postgres.Port)
	c.Storage.Postgres.User = envOrDefault("POSTGRES_USER", c.Storage.Postgres.User)
	c.Storage.Postgres.Password = envOrDefault("POSTGRES_PASSWORD", c.Storage.Postgres.Password)
	c.Storage.Postgres.Database = envOrDefault("POSTGRES_DATABASE", c.Storage.Postgres.Database)

	c.Storage.ClickHouse.Host = envOrDefault("CLICKHOUSE_HOST", c.Storage.ClickHouse.Host)
	c.Storage.ClickHouse.Port = envOrDefaultInt("CLICKHOUSE_PORT", c.Storage.ClickHouse.Port)
	c.Storage.ClickHouse.User = envOrDefault("CLICKHOUSE_USER", c.Storage.ClickHouse.User)
	c.Storage.ClickHouse.Password = envOrDefault("CLICKHOUSE_PASSWORD", c.Storage.ClickHouse.Password)

	c.Feed.NATSURL = envOrDefault("NATS_URL", c.Feed.NATSURL)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	if keys := os.Getenv("STRATUXMAP_API_KEYS"); keys != "" {
		c.Server.APIKeys = splitList(keys)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.AuthEnabled && len(c.Server.APIKeys) == 0 {
		return fmt.Errorf("auth_enabled requires at least one api key")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	if c.Airports.CacheSize <= 0 {
		return fmt.Errorf("invalid airports cache_size: %d (must be > 0)", c.Airports.CacheSize)
	}
	if c.Airports.TimeoutSeconds <= 0 {
		c.Airports.TimeoutSeconds = 5
	}

	if c.Feed.ReconnectIntervalSecs <= 0 {
		c.Feed.ReconnectIntervalSecs = 1
	}
	if c.Feed.MaxReconnectSecs < c.Feed.ReconnectIntervalSecs {
		c.Feed.MaxReconnectSecs = c.Feed.ReconnectIntervalSecs
	}
	if c.Feed.NATSURL != "" && c.Feed.NATSSubject == "" {
		return fmt.Errorf("nats_subject is required when nats_url is set")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka enabled but no brokers configured")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka enabled but no topic configured")
		}
	}

	if c.Parser.Workers <= 0 {
		return fmt.Errorf("invalid parser workers: %d (must be > 0)", c.Parser.Workers)
	}
	if c.Parser.FlushIntervalSecs <= 0 {
		c.Parser.FlushIntervalSecs = 5
	}
	if c.Storage.ClickHouse.BatchSize <= 0 {
		c.Storage.ClickHouse.BatchSize = 100
	}
	if c.Storage.State.RetentionHours <= 0 {
		return fmt.Errorf("invalid state retention_hours: %d (must be > 0)", c.Storage.State.RetentionHours)
	}
	if c.Parser.QueueSize < 0 {
		return fmt.Errorf("invalid parser queue_size: %d (must be >= 0)", c.Parser.QueueSize)
	}
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
