// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Datasets are the dataset tags every profile loads
var Datasets = []string{"demo", "enroll", "bio"}

// Config represents the application configuration
type Config struct {
	// Database connections, nil when not configured
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig
	Export    *ExportConfig

	// Run settings
	Profile         string
	ProfileFile     string
	OutputDir       string
	MetricsTextfile string
	ChunkSize       int // rows per insert batch on SQL export

	// Warehouse tables per dataset tag, read when no files are given
	SnowflakeTables map[string][]string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadEnvFile loads variables from .env files into the environment.
// Missing files are skipped; variables already set win.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		// Default values
		Profile:         getEnv("COVERAGE_PROFILE", "national"),
		ProfileFile:     getEnv("COVERAGE_PROFILE_FILE", ""),
		OutputDir:       getEnv("COVERAGE_OUTPUT_DIR", "analysis_results"),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		ChunkSize:       getEnvAsInt("CHUNK_SIZE", 500),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		SnowflakeTables: make(map[string][]string),
	}

	// Load database configurations
	snowConfig, err := LoadSnowflakeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
	}
	cfg.Snowflake = snowConfig

	pgConfig, err := LoadPostgresConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
	}
	cfg.Postgres = pgConfig
	cfg.Export = LoadExportConfig()

	for _, ds := range Datasets {
		key := fmt.Sprintf("SNOWFLAKE_%s_TABLES", strings.ToUpper(ds))
		if tables := getEnvAsStringSlice(key, nil); len(tables) > 0 {
			cfg.SnowflakeTables[ds] = tables
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}

	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.LogFormat)
	}

	if len(c.SnowflakeTables) > 0 && c.Snowflake == nil {
		return errors.New("SNOWFLAKE_<DATASET>_TABLES set without Snowflake credentials")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsStringSlice parses a comma-separated list, dropping blanks and quotes
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(value, ",") {
		v = strings.Trim(strings.TrimSpace(v), `"`)
		if v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
