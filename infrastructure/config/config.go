package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthProvider selects the credential gateway implementation
type AuthProvider string

const (
	AuthProviderLocal    AuthProvider = "local"
	AuthProviderSupabase AuthProvider = "supabase"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	IndexName     string // GSI1 - diagram/user lookups by secondary key
	EventBusName  string

	// Authentication
	AuthProvider       AuthProvider
	JWTSecret          string
	JWTIssuer          string
	TokenTTL           time.Duration
	SupabaseURL        string
	SupabaseServiceKey string

	// HTTP
	AllowedOrigins []string
	EnableCORS     bool

	// Logging and features
	LogLevel      string
	EnableMetrics bool

	// Optional YAML overlay file; see loader.go
	ConfigFile string
}

// LoadConfig loads configuration from environment variables, applying
// the optional YAML overlay file first so the environment always wins.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", "flowcanvas"),
		IndexName:     getEnv("INDEX_NAME", "GSI1"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "flowcanvas-events"),

		AuthProvider:       AuthProvider(getEnv("AUTH_PROVIDER", string(AuthProviderLocal))),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "flowcanvas-backend"),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 24*time.Hour),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		EnableCORS:     getEnvBool("ENABLE_CORS", true),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),

		ConfigFile: getEnv("CONFIG_FILE", ""),
	}

	if cfg.ConfigFile != "" {
		if err := applyFileOverlay(cfg, cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", cfg.ConfigFile, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required configuration
func (c *Config) Validate() error {
	switch c.AuthProvider {
	case AuthProviderLocal:
		if c.JWTSecret == "" {
			if c.Environment == "production" {
				return fmt.Errorf("JWT_SECRET is required with the local auth provider")
			}
			c.JWTSecret = "development-secret-change-in-production"
		}
	case AuthProviderSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required with the supabase auth provider")
		}
	default:
		return fmt.Errorf("unknown auth provider %q", c.AuthProvider)
	}
	if c.DynamoDBTable == "" {
		return fmt.Errorf("TABLE_NAME cannot be empty")
	}
	return nil
}

// IsProduction reports whether this is a production deployment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
