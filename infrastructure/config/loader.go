package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML overlay schema. Every field is optional;
// unset fields leave the environment-derived value untouched.
type fileConfig struct {
	ServerAddress *string `yaml:"server_address"`
	Environment   *string `yaml:"environment"`

	AWSRegion     *string `yaml:"aws_region"`
	DynamoDBTable *string `yaml:"dynamodb_table"`
	IndexName     *string `yaml:"index_name"`
	EventBusName  *string `yaml:"event_bus_name"`

	AuthProvider *string `yaml:"auth_provider"`
	JWTIssuer    *string `yaml:"jwt_issuer"`
	TokenTTL     *string `yaml:"token_ttl"`

	AllowedOrigins []string `yaml:"allowed_origins"`
	EnableCORS     *bool    `yaml:"enable_cors"`

	LogLevel      *string `yaml:"log_level"`
	EnableMetrics *bool   `yaml:"enable_metrics"`
}

// applyFileOverlay reads a YAML file and overlays the set fields onto
// cfg. Secrets are deliberately absent from the schema; they only come
// from the environment.
func applyFileOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	if fc.ServerAddress != nil {
		cfg.ServerAddress = *fc.ServerAddress
	}
	if fc.Environment != nil {
		cfg.Environment = *fc.Environment
	}
	if fc.AWSRegion != nil {
		cfg.AWSRegion = *fc.AWSRegion
	}
	if fc.DynamoDBTable != nil {
		cfg.DynamoDBTable = *fc.DynamoDBTable
	}
	if fc.IndexName != nil {
		cfg.IndexName = *fc.IndexName
	}
	if fc.EventBusName != nil {
		cfg.EventBusName = *fc.EventBusName
	}
	if fc.AuthProvider != nil {
		cfg.AuthProvider = AuthProvider(*fc.AuthProvider)
	}
	if fc.JWTIssuer != nil {
		cfg.JWTIssuer = *fc.JWTIssuer
	}
	if fc.TokenTTL != nil {
		d, err := time.ParseDuration(*fc.TokenTTL)
		if err != nil {
			return fmt.Errorf("invalid token_ttl: %w", err)
		}
		cfg.TokenTTL = d
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.EnableCORS != nil {
		cfg.EnableCORS = *fc.EnableCORS
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.EnableMetrics != nil {
		cfg.EnableMetrics = *fc.EnableMetrics
	}

	return nil
}
