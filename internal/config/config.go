package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema             string        `mapstructure:"DB_SCHEMA"`
	MigrationsDir        string        `mapstructure:"MIGRATIONS_DIR"`
	AuthIssuer           string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience         string        `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL          string        `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey       string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	EntitlementMode      string        `mapstructure:"ENTITLEMENT_MODE"`
	EntitlementURL       string        `mapstructure:"ENTITLEMENT_URL"`
	EntitlementAPIKey    string        `mapstructure:"ENTITLEMENT_API_KEY"`
	EntitlementCacheTTL  time.Duration `mapstructure:"ENTITLEMENT_CACHE_TTL"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	MQTTBroker           string        `mapstructure:"MQTT_BROKER"`
	MQTTClientID         string        `mapstructure:"MQTT_CLIENT_ID"`
	MQTTUsername         string        `mapstructure:"MQTT_USERNAME"`
	MQTTPassword         string        `mapstructure:"MQTT_PASSWORD"`
	GenAIAPIKey          string        `mapstructure:"GENAI_API_KEY"`
	GenAIModel           string        `mapstructure:"GENAI_MODEL"`
	GeneratorConcurrency int           `mapstructure:"GENERATOR_CONCURRENCY"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	GenerateTimeout      time.Duration `mapstructure:"GENERATE_TIMEOUT"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA", "MIGRATIONS_DIR",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
	"ENTITLEMENT_MODE", "ENTITLEMENT_URL", "ENTITLEMENT_API_KEY", "ENTITLEMENT_CACHE_TTL",
	"REDIS_URL", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD",
	"GENAI_API_KEY", "GENAI_MODEL", "GENERATOR_CONCURRENCY", "REQUEST_TIMEOUT", "GENERATE_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "carecircle")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ENTITLEMENT_MODE", "static")
	v.SetDefault("ENTITLEMENT_CACHE_TTL", "5m")
	v.SetDefault("MQTT_CLIENT_ID", "carecircle-server")
	v.SetDefault("GENAI_MODEL", "gemini-2.0-flash")
	v.SetDefault("GENERATOR_CONCURRENCY", 4)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("GENERATE_TIMEOUT", "2m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running with ENV=development; every request acts as the dev user.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set outside development (current ENV=%q)", c.Env)
	}

	switch c.EntitlementMode {
	case "static":
		if c.IsProduction() {
			return fmt.Errorf("ENTITLEMENT_MODE=static is not allowed in production")
		}
	case "remote":
		if c.EntitlementURL == "" {
			return fmt.Errorf("ENTITLEMENT_URL is required when ENTITLEMENT_MODE is \"remote\"")
		}
	default:
		return fmt.Errorf("ENTITLEMENT_MODE must be \"static\" or \"remote\", got %q", c.EntitlementMode)
	}

	if c.GeneratorConcurrency < 1 {
		return fmt.Errorf("GENERATOR_CONCURRENCY must be at least 1, got %d", c.GeneratorConcurrency)
	}
	if c.RequestTimeout < 0 || c.GenerateTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and GENERATE_TIMEOUT must not be negative")
	}
	if c.EntitlementCacheTTL < 0 {
		return fmt.Errorf("ENTITLEMENT_CACHE_TTL must not be negative")
	}

	return nil
}
