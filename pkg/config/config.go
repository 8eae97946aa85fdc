package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Engine configuration
	Engine EngineConfig `mapstructure:"engine"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Export configuration
	Export ExportConfig `mapstructure:"export"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// EngineConfig holds graph engine tuning
type EngineConfig struct {
	// EdgeHalfLifeDays controls the exponential decay of edge weights
	EdgeHalfLifeDays float64 `mapstructure:"edge_half_life_days"`
	// EdgePruneThreshold removes edges whose decayed weight falls below it
	EdgePruneThreshold float64 `mapstructure:"edge_prune_threshold"`
	// SnapshotRetentionDays bounds how long snapshots are kept
	SnapshotRetentionDays int `mapstructure:"snapshot_retention_days"`
	// Workers caps concurrent CPU-bound analysis jobs; 0 means NumCPU
	Workers int `mapstructure:"workers"`
}

// StorageConfig holds durable storage configuration
type StorageConfig struct {
	Backend  string `mapstructure:"backend"` // memory, badger, neo4j
	Path     string `mapstructure:"path"`    // badger directory
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// ExportConfig holds change journal export configuration
type ExportConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// TelemetryConfig holds error telemetry configuration. An empty ParquetPath
// disables Parquet error capture.
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	// Engine defaults
	viper.SetDefault("engine.edge_half_life_days", 30.0)
	viper.SetDefault("engine.edge_prune_threshold", 0.1)
	viper.SetDefault("engine.snapshot_retention_days", 90)
	viper.SetDefault("engine.workers", 0)

	// Storage defaults
	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("storage.path", "./chronograph_db")
	viper.SetDefault("storage.uri", "")
	viper.SetDefault("storage.username", "")
	viper.SetDefault("storage.password", "")
	viper.SetDefault("storage.database", "")

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Export defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.chronograph/exports", home)
		viper.SetDefault("export.parquet_path", defaultPath)
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Storage.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Storage.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Storage.Password = pass
	}

	// Generic storage settings
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if path := os.Getenv("STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Export settings
	if path := os.Getenv("EXPORT_PARQUET_PATH"); path != "" {
		config.Export.ParquetPath = path
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
