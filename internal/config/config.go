package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Server configuration
	Server ServerConfig

	// Security configuration
	Security SecurityConfig

	// CORS configuration
	CORS CORSConfig

	// Logging configuration
	Logging LoggingConfig

	// Discogs API configuration
	Discogs DiscogsConfig

	// Background synchronization
	Sync SyncConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string // Full PostgreSQL URL
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectTimeout bounds how long startup waits for the database to answer.
	ConnectTimeout time.Duration
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int
	Host            string
	ShutdownTimeout time.Duration
	// Requests per minute allowed per client IP on the API.
	RateLimit int
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	APIKey string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// DiscogsConfig holds the remote account and client tuning.
type DiscogsConfig struct {
	Username            string
	Token               string
	BaseURL             string
	CollectionFolderID  int64
	SuggestionsFolderID int64
	RequestsPerMinute   int
}

// SyncConfig controls the background synchronization triggers.
type SyncConfig struct {
	OnStartup    bool
	StartupDelay time.Duration
	CronEnabled  bool
	CronSpec     string
}

// Load reads configuration from config/local.env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load("config/local.env")

	cfg := &Config{}

	// Load database configuration
	if err := cfg.loadDatabase(); err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}

	// Load server configuration
	if err := cfg.loadServer(); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}

	cfg.Security.APIKey = os.Getenv("API_KEY")

	// Load CORS configuration
	cfg.loadCORS()

	// Load logging configuration
	cfg.loadLogging()

	if err := cfg.loadDiscogs(); err != nil {
		return nil, fmt.Errorf("load discogs config: %w", err)
	}

	if err := cfg.loadSync(); err != nil {
		return nil, fmt.Errorf("load sync config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadDatabase() error {
	var err error
	if c.Database.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return err
	}
	if c.Database.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return err
	}
	if c.Database.ConnMaxLifetime, err = getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return err
	}
	if c.Database.ConnectTimeout, err = getDuration("DB_CONNECT_TIMEOUT", 30*time.Second); err != nil {
		return err
	}

	// Try to load DATABASE_URL first
	c.Database.URL = os.Getenv("DATABASE_URL")

	// If not present, construct from individual parameters
	if c.Database.URL == "" {
		c.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
		c.Database.User = getEnvOrDefault("DB_USER", "postgres")
		c.Database.Password = os.Getenv("DB_PASSWORD")
		c.Database.Name = getEnvOrDefault("DB_NAME", "discogs")
		c.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

		port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}
		c.Database.Port = port

		c.Database.URL = fmt.Sprintf(
			"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
			c.Database.User,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Name,
			c.Database.SSLMode,
		)
	}

	return nil
}

func (c *Config) loadServer() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "3000"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	c.Server.Port = port
	c.Server.Host = getEnvOrDefault("HOST", "0.0.0.0")

	if c.Server.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return err
	}
	if c.Server.RateLimit, err = getInt("API_RATE_LIMIT", 100); err != nil {
		return err
	}
	return nil
}

func (c *Config) loadCORS() {
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv != "" {
		var origins []string
		for _, origin := range strings.Split(originsEnv, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		c.CORS.AllowedOrigins = origins
	} else {
		// Default for local development
		c.CORS.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
}

func (c *Config) loadLogging() {
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", "info")
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", "json")
}

func (c *Config) loadDiscogs() error {
	c.Discogs.Username = os.Getenv("DISCOGS_USERNAME")
	// The token may be absent at startup; every remote call re-checks it.
	c.Discogs.Token = os.Getenv("DISCOGS_API_TOKEN")
	c.Discogs.BaseURL = getEnvOrDefault("DISCOGS_API_BASE_URL", "https://api.discogs.com")

	var err error
	if c.Discogs.CollectionFolderID, err = getInt64("DISCOGS_COLLECTION_FOLDER_ID", 1); err != nil {
		return err
	}
	if c.Discogs.SuggestionsFolderID, err = getInt64("DISCOGS_SUGGESTIONS_FOLDER_ID", 8797697); err != nil {
		return err
	}
	if c.Discogs.RequestsPerMinute, err = getInt("DISCOGS_REQUESTS_PER_MINUTE", 60); err != nil {
		return err
	}
	return nil
}

func (c *Config) loadSync() error {
	var err error
	if c.Sync.OnStartup, err = getBool("SYNC_ON_STARTUP", true); err != nil {
		return err
	}
	if c.Sync.CronEnabled, err = getBool("CRON_SYNC_ENABLED", true); err != nil {
		return err
	}
	if c.Sync.StartupDelay, err = getDuration("SYNC_STARTUP_DELAY", 5*time.Second); err != nil {
		return err
	}
	c.Sync.CronSpec = getEnvOrDefault("SYNC_CRON_SPEC", "0 0 * * *")
	return nil
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var errors []string

	// Validate database configuration
	if c.Database.URL == "" {
		errors = append(errors, "DATABASE_URL is required (or DB_HOST, DB_USER, DB_NAME)")
	}

	if c.Security.APIKey == "" {
		errors = append(errors, "API_KEY is required")
	}
	// bcrypt only looks at the first 72 bytes.
	if len(c.Security.APIKey) > 72 {
		errors = append(errors, "API_KEY must be at most 72 bytes")
	}

	if c.Discogs.Username == "" {
		errors = append(errors, "DISCOGS_USERNAME is required")
	}
	if c.Discogs.CollectionFolderID < 0 || c.Discogs.SuggestionsFolderID <= 0 {
		errors = append(errors, "DISCOGS folder ids must be positive")
	}

	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}
	if c.Server.RateLimit < 1 {
		errors = append(errors, "API_RATE_LIMIT must be positive")
	}

	if c.Sync.StartupDelay < 0 {
		errors = append(errors, "SYNC_STARTUP_DELAY must not be negative")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errors = append(errors, "LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errors = append(errors, "LOG_FORMAT must be one of: json, text")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(os.Getenv("ENV"))
	return env == "production"
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getDuration accepts Go durations ("5s") or a bare number of milliseconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
