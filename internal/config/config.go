package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the ingestion service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Job      JobConfig

	LogLevel  string
	LogFormat string
}

// ServerConfig holds HTTP server configuration (health/ready/metrics only)
type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

// DatabaseConfig holds the administrative PostgreSQL credentials used to
// reach every tenant database. Tenant databases share the host; only the
// database name differs per tenant.
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	AdminDatabase string
	SSLMode       string
	Echo          bool // echo SQL statements through the gorm logger
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL string
}

// JobConfig holds ingestion job tuning parameters
type JobConfig struct {
	Timeout   time.Duration
	BatchSize int
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Host:        getEnv("HOST", "0.0.0.0"),
			Environment: getEnv("ENVIRONMENT", "devtest"),
		},
		Database: DatabaseConfig{
			Host:          getEnv("POSTGRES_HOST", "localhost"),
			Port:          getEnv("POSTGRES_PORT", "5432"),
			User:          getEnv("POSTGRES_USER", "postgres"),
			Password:      getEnv("POSTGRES_PASSWORD", ""),
			AdminDatabase: getEnv("POSTGRES_DATABASE", "postgres"),
			SSLMode:       getEnv("POSTGRES_SSL_MODE", "disable"),
			Echo:          getBoolEnv("DATABASE_ECHO", false),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Job: JobConfig{
			Timeout:   getDurationEnv("JOB_TIMEOUT", 30*time.Minute),
			BatchSize: getIntEnv("JOB_BATCH_SIZE", 500),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// AdminDSN returns the connection string for the administrative database
func (c *DatabaseConfig) AdminDSN() string {
	return c.DSN(c.AdminDatabase)
}

// DSN returns the connection string for the named database
func (c *DatabaseConfig) DSN(dbName string) string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + dbName +
		" sslmode=" + c.SSLMode
}

// IsProd returns true if running in production environment
func (c *ServerConfig) IsProd() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

// Helper functions

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
