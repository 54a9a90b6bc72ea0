package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"stock-dashboard/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file. Secrets are expected to
// come from the environment (or a .env file) rather than from the config.
const (
	EnvFinnhubKey  = "FINNHUB_API_KEY"
	EnvSupabaseURL = "SUPABASE_URL"
	EnvSupabaseKey = "SUPABASE_ANON_KEY"
	EnvDBDSN       = "DASHBOARD_DB_DSN"
	EnvPort        = "PORT"
	EnvAPIURL      = "DASHBOARD_API_URL"
	EnvLogLevel    = "LOG_LEVEL"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file, a sibling .env file and the
// process environment, in that order of increasing precedence.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return FromYAML(data)
}

// -----------------------------------------------------------------------------

// FromYAML builds a validated Config from raw YAML.
func FromYAML(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config := &Config{MConfig: &modelConfig}
	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// loadDotEnv loads key=value pairs into the environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvFinnhubKey); v != "" {
		c.DataSource.FinnhubAPIKey = v
	}
	if v := os.Getenv(EnvSupabaseURL); v != "" {
		c.Auth.SupabaseURL = v
	}
	if v := os.Getenv(EnvSupabaseKey); v != "" {
		c.Auth.SupabaseKey = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		if c.Storage.DBType == "postgres" {
			c.Storage.DBConnectionString = v
		} else {
			c.Storage.DBPath = v
		}
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Client.APIURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "stock-dashboard"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if len(c.CorsOrigins) == 0 {
		c.CorsOrigins = []string{"*"}
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.DBSchema == "" {
		c.Storage.DBSchema = "public"
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}
	if c.Network.ConcurrentRequests == 0 {
		c.Network.ConcurrentRequests = 4
	}
	if c.DataSource.FinnhubBaseURL == "" {
		c.DataSource.FinnhubBaseURL = "https://finnhub.io/api/v1"
	}
	if c.DataSource.YahooBaseURL == "" {
		c.DataSource.YahooBaseURL = "https://query1.finance.yahoo.com"
	}
	if c.DataSource.CandleRange == "" {
		c.DataSource.CandleRange = "6mo"
	}
	if c.DataSource.CandleInterval == "" {
		c.DataSource.CandleInterval = "1d"
	}
	if c.Auth.Provider == "" {
		c.Auth.Provider = "supabase"
	}
	if len(c.Market.Indices) == 0 {
		c.Market.Indices = []models.MIndexConfig{
			{Key: "nasdaq", Symbol: "^IXIC"},
			{Key: "sp500", Symbol: "^GSPC"},
			{Key: "dowjones", Symbol: "^DJI"},
		}
	}
	if c.Market.RefreshCron == "" {
		c.Market.RefreshCron = "0 * * * * *"
	}
	if c.Market.NewsCron == "" {
		c.Market.NewsCron = "0 */5 * * * *"
	}
	if c.Market.HealthCron == "" {
		c.Market.HealthCron = "*/30 * * * * *"
	}
	if c.Market.NewsCategory == "" {
		c.Market.NewsCategory = "general"
	}
	if c.Client.APIURL == "" {
		c.Client.APIURL = fmt.Sprintf("http://%s:%d", c.Host, c.Port)
	}
	if c.Client.DebounceMillis == 0 {
		c.Client.DebounceMillis = 300
	}
	if c.Client.Timezone == "" {
		c.Client.Timezone = "UTC"
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type '%s'", c.Storage.DBType)
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Auth
	switch c.Auth.Provider {
	case "supabase":
		if c.Auth.SupabaseURL == "" || c.Auth.SupabaseKey == "" {
			return fmt.Errorf("supabase auth requires %s and %s", EnvSupabaseURL, EnvSupabaseKey)
		}
	case "static":
		if len(c.Auth.StaticTokens) == 0 {
			return fmt.Errorf("static auth requires at least one token")
		}
	default:
		return fmt.Errorf("unsupported auth provider '%s'", c.Auth.Provider)
	}

	// Market widget
	for i, idx := range c.Market.Indices {
		if idx.Key == "" || idx.Symbol == "" {
			return fmt.Errorf("market index %d must have a key and a symbol", i)
		}
		if strings.ContainsAny(idx.Key, " \t") {
			return fmt.Errorf("market index key '%s' cannot contain whitespace", idx.Key)
		}
	}

	if c.Client.DebounceMillis < 0 {
		return fmt.Errorf("client debounce cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
