package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Redis configuration
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		CreateTicketRateLimit float64
		CreateTicketBurst     int
		AllowedOrigins        []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Safety service endpoints (content classifier and department router)
	Safety struct {
		BaseURL string
		APIKey  string
		Timeout time.Duration
	}

	// Outbound hook endpoints
	Hooks struct {
		NotificationURL  string
		SummarizationURL string
		Token            string
		Timeout          time.Duration
	}

	// Cache settings
	Cache struct {
		Enabled bool
		TTL     time.Duration
	}

	// Limits applied to ticket content
	Limits struct {
		MaxTitleLen       int
		MaxDescriptionLen int
		MaxMessageLen     int
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8080")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "helpdesk")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Security config
		instance.Security.CreateTicketRateLimit = float64(getEnvInt("CREATE_TICKET_RATE_LIMIT", 2))
		instance.Security.CreateTicketBurst = getEnvInt("CREATE_TICKET_BURST", 5)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Safety service endpoints
		instance.Safety.BaseURL = getEnvString("SAFETY_SERVICE_URL", "")
		instance.Safety.APIKey = getEnvString("SAFETY_SERVICE_API_KEY", "")
		instance.Safety.Timeout = getEnvDuration("SAFETY_SERVICE_TIMEOUT", 10*time.Second)

		// Hook endpoints
		instance.Hooks.NotificationURL = getEnvString("NOTIFICATION_WEBHOOK_URL", "")
		instance.Hooks.SummarizationURL = getEnvString("SUMMARIZATION_WEBHOOK_URL", "")
		instance.Hooks.Token = getEnvString("WEBHOOK_TOKEN", "")
		instance.Hooks.Timeout = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)

		// Cache settings
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)

		// Content limits
		instance.Limits.MaxTitleLen = getEnvInt("MAX_TITLE_LEN", 200)
		instance.Limits.MaxDescriptionLen = getEnvInt("MAX_DESCRIPTION_LEN", 5000)
		instance.Limits.MaxMessageLen = getEnvInt("MAX_MESSAGE_LEN", 1000)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
