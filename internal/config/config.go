package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Environment string
	LogLevel    string

	Database   DatabaseConfig
	Redis      RedisConfig
	MarketData MarketDataConfig
	Signal     SignalConfig
	Sessions   SessionConfig
	Auth       AuthConfig
	API        APIConfig
	Feed       FeedConfig
	WSGateway  WSGatewayConfig
}

// DatabaseConfig holds Postgres configuration. When Enabled is false the
// service keeps signals and direction state in memory.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled          bool
	Host             string
	Port             int
	Password         string
	DB               int
	PoolSize         int
	MinIdleConns     int
	BroadcastChannel string
}

// MarketDataConfig holds upstream quote provider configuration.
// An empty key disables the corresponding provider.
type MarketDataConfig struct {
	AlphaVantageKey string
	TwelveDataKey   string
	FinnhubKey      string
	PolygonKey      string
	MarketstackKey  string
	FCSAPIKey       string
	YahooEnabled    bool

	RequestTimeout time.Duration
	ProviderMinGap time.Duration // minimum spacing between calls to one provider
	Symbols        []string
}

// SignalConfig holds signal generation thresholds
type SignalConfig struct {
	MinConfidence     int
	PendingConfidence int
	PendingDraw       float64
}

// SessionConfig holds trading-session window overrides in the form
// SYMBOL=startHour-endHour@utcOffset, e.g. "GER30=7-10@2"
type SessionConfig struct {
	Overrides []string
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Port         int
	RateLimitRPS int
	CORSOrigins  []string
}

// FeedConfig holds the periodic market update loop configuration
type FeedConfig struct {
	Interval time.Duration
}

// WSGatewayConfig holds WebSocket configuration
type WSGatewayConfig struct {
	// Port is used by the standalone gateway; the API serves /ws on its own port
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxConnections int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "indice_killer"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:          getEnvAsBool("REDIS_ENABLED", false),
			Host:             getEnv("REDIS_HOST", "localhost"),
			Port:             getEnvAsInt("REDIS_PORT", 6379),
			Password:         getEnv("REDIS_PASSWORD", ""),
			DB:               getEnvAsInt("REDIS_DB", 0),
			PoolSize:         getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:     getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			BroadcastChannel: getEnv("REDIS_BROADCAST_CHANNEL", "indice:broadcast"),
		},
		MarketData: MarketDataConfig{
			AlphaVantageKey: getEnv("ALPHA_VANTAGE_KEY", ""),
			TwelveDataKey:   getEnv("TWELVE_DATA_KEY", ""),
			FinnhubKey:      getEnv("FINNHUB_KEY", ""),
			PolygonKey:      getEnv("POLYGON_KEY", ""),
			MarketstackKey:  getEnv("MARKETSTACK_KEY", ""),
			FCSAPIKey:       getEnv("FCSAPI_KEY", ""),
			YahooEnabled:    getEnvAsBool("YAHOO_ENABLED", true),
			RequestTimeout:  getEnvAsDuration("MARKET_DATA_TIMEOUT", 10*time.Second),
			ProviderMinGap:  getEnvAsDuration("MARKET_DATA_PROVIDER_MIN_GAP", 1*time.Second),
			Symbols:         getEnvAsStringSlice("MARKET_DATA_SYMBOLS", []string{"US30", "US100", "GER30"}),
		},
		Signal: SignalConfig{
			MinConfidence:     getEnvAsInt("SIGNAL_MIN_CONFIDENCE", 80),
			PendingConfidence: getEnvAsInt("SIGNAL_PENDING_CONFIDENCE", 90),
			PendingDraw:       getEnvAsFloat("SIGNAL_PENDING_DRAW", 0.6),
		},
		Sessions: SessionConfig{
			Overrides: getEnvAsStringSlice("SESSION_WINDOWS", nil),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
		},
		API: APIConfig{
			Port:         getEnvAsInt("API_PORT", 8001),
			RateLimitRPS: getEnvAsInt("API_RATE_LIMIT_RPS", 20),
			CORSOrigins:  getEnvAsStringSlice("CORS_ORIGINS", []string{"*"}),
		},
		Feed: FeedConfig{
			Interval: getEnvAsDuration("FEED_INTERVAL", 5*time.Second),
		},
		WSGateway: WSGatewayConfig{
			Port:           getEnvAsInt("WS_GATEWAY_PORT", 8002),
			ReadTimeout:    getEnvAsDuration("WS_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:   getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
			MaxConnections: getEnvAsInt("WS_MAX_CONNECTIONS", 500),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required when DB_ENABLED is set")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required when REDIS_ENABLED is set")
	}
	if len(c.MarketData.Symbols) == 0 {
		return fmt.Errorf("MARKET_DATA_SYMBOLS must contain at least one symbol")
	}
	if c.MarketData.RequestTimeout <= 0 {
		return fmt.Errorf("MARKET_DATA_TIMEOUT must be positive")
	}
	if c.Signal.MinConfidence < 0 || c.Signal.MinConfidence > 100 {
		return fmt.Errorf("SIGNAL_MIN_CONFIDENCE must be within [0,100], got %d", c.Signal.MinConfidence)
	}
	if c.Signal.PendingDraw < 0 || c.Signal.PendingDraw > 1 {
		return fmt.Errorf("SIGNAL_PENDING_DRAW must be within [0,1], got %v", c.Signal.PendingDraw)
	}
	if c.Feed.Interval <= 0 {
		return fmt.Errorf("FEED_INTERVAL must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
