// Package config provides configuration loading and validation for the painting server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Image providers.
const (
	ProviderGemini   = "gemini"
	ProviderSeedream = "seedream"
)

// Database backends resolved from the database URL.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
)

// Config is the server configuration. Values come from defaults, then an optional
// YAML or JSON file, then environment variables.
type Config struct {
	Port        int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	DatabaseURL string `yaml:"database_url" json:"database_url" validate:"required"`
	RedisURL    string `yaml:"redis_url,omitempty" json:"redis_url,omitempty"`
	UploadDir   string `yaml:"upload_dir" json:"upload_dir" validate:"required"`

	LogLevel  string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=json console"`

	// CacheTTLSeconds is how long reference payloads stay in Redis.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds" validate:"min=1"`

	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Auth       AuthConfig       `yaml:"auth" json:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
}

// GenerationConfig controls the idea and image providers and the orchestrator limits.
type GenerationConfig struct {
	GeminiAPIKey    string `yaml:"gemini_api_key" json:"gemini_api_key" validate:"required"`
	ArkAPIKey       string `yaml:"ark_api_key,omitempty" json:"ark_api_key,omitempty" validate:"required_if=ImageProvider seedream"`
	ImageProvider   string `yaml:"image_provider" json:"image_provider" validate:"oneof=gemini seedream"`
	IdeaModel       string `yaml:"idea_model" json:"idea_model" validate:"required"`
	ImageModel      string `yaml:"image_model" json:"image_model" validate:"required"`
	Concurrency     int    `yaml:"image_concurrency" json:"image_concurrency" validate:"min=1"`
	DefaultQuantity int    `yaml:"default_quantity" json:"default_quantity" validate:"min=1,ltefield=MaxQuantity"`
	MaxQuantity     int    `yaml:"max_quantity" json:"max_quantity" validate:"min=1"`
	MaxReferences   int    `yaml:"max_references" json:"max_references" validate:"min=0"`
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret" json:"jwt_secret" validate:"required,min=32"`
	JWTExpirationHours int    `yaml:"jwt_expiration_hours" json:"jwt_expiration_hours" validate:"min=1"`
	PasswordPepper     string `yaml:"password_pepper,omitempty" json:"password_pepper,omitempty"`
	BcryptCost         int    `yaml:"bcrypt_cost" json:"bcrypt_cost" validate:"min=10,max=14"`
}

// RateLimitConfig holds the request rate limits. Generation has its own stricter tier.
type RateLimitConfig struct {
	Enabled       bool    `yaml:"enabled" json:"enabled"`
	DefaultRPS    float64 `yaml:"default_rps" json:"default_rps" validate:"gt=0"`
	DefaultBurst  int     `yaml:"default_burst" json:"default_burst" validate:"min=1"`
	GenerateRPS   float64 `yaml:"generate_rps" json:"generate_rps" validate:"gt=0"`
	GenerateBurst int     `yaml:"generate_burst" json:"generate_burst" validate:"min=1"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:            8080,
		UploadDir:       "uploads",
		LogLevel:        "info",
		LogFormat:       "json",
		CacheTTLSeconds: 3600,
		Generation: GenerationConfig{
			ImageProvider:   ProviderGemini,
			IdeaModel:       "gemini-2.5-flash",
			ImageModel:      "gemini-2.5-flash-image",
			Concurrency:     5,
			DefaultQuantity: 5,
			MaxQuantity:     20,
			MaxReferences:   4,
		},
		Auth: AuthConfig{
			JWTExpirationHours: 24,
			BcryptCost:         12,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			DefaultRPS:    10,
			DefaultBurst:  20,
			GenerateRPS:   10.0 / 3600,
			GenerateBurst: 3,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (use .yaml, .yml or .json)", filepath.Ext(path))
	}
	return nil
}

// applyEnv overrides fields from environment variables that are set.
func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("UPLOAD_DIR", &c.UploadDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	num("CACHE_TTL_SECONDS", &c.CacheTTLSeconds)

	g := &c.Generation
	str("GEMINI_API_KEY", &g.GeminiAPIKey)
	str("ARK_API_KEY", &g.ArkAPIKey)
	str("IMAGE_PROVIDER", &g.ImageProvider)
	str("IDEA_MODEL", &g.IdeaModel)
	str("IMAGE_MODEL", &g.ImageModel)
	num("IMAGE_CONCURRENCY", &g.Concurrency)
	num("DEFAULT_QUANTITY", &g.DefaultQuantity)
	num("MAX_QUANTITY", &g.MaxQuantity)
	num("MAX_REFERENCES", &g.MaxReferences)

	a := &c.Auth
	str("JWT_SECRET", &a.JWTSecret)
	num("JWT_EXPIRATION_HOURS", &a.JWTExpirationHours)
	str("PASSWORD_PEPPER", &a.PasswordPepper)
	num("BCRYPT_COST", &a.BcryptCost)

	r := &c.RateLimit
	boolean("RATE_LIMIT_ENABLED", &r.Enabled)
	float("RATE_LIMIT_DEFAULT_RPS", &r.DefaultRPS)
	num("RATE_LIMIT_DEFAULT_BURST", &r.DefaultBurst)
	float("RATE_LIMIT_GENERATE_RPS", &r.GenerateRPS)
	num("RATE_LIMIT_GENERATE_BURST", &r.GenerateBurst)

	return errors.Join(errs...)
}

var validate = validator.New()

// Validate checks field constraints and the database URL scheme.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}
	if _, _, err := c.Database(); err != nil {
		return err
	}
	return nil
}

// Database resolves the backend and driver DSN from DatabaseURL.
// postgres:// and postgresql:// URLs are passed through; sqlite://path and
// mysql://dsn have their scheme stripped.
func (c *Config) Database() (backend, dsn string, err error) {
	u := c.DatabaseURL
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return BackendPostgres, u, nil
	case strings.HasPrefix(u, "sqlite://"):
		path := strings.TrimPrefix(u, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("config error: sqlite URL has no path")
		}
		return BackendSQLite, path, nil
	case strings.HasPrefix(u, "mysql://"):
		dsn := strings.TrimPrefix(u, "mysql://")
		if dsn == "" {
			return "", "", fmt.Errorf("config error: mysql URL has no DSN")
		}
		return BackendMySQL, dsn, nil
	default:
		return "", "", fmt.Errorf("config error: unsupported database URL scheme in %q", u)
	}
}

// CacheTTL returns the reference cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// JWT returns the token settings.
func (c *Config) JWT() *JWTConfig {
	return &JWTConfig{Secret: c.Auth.JWTSecret, ExpirationHours: c.Auth.JWTExpirationHours}
}

// Password returns the password hashing settings.
func (c *Config) Password() *PasswordConfig {
	return &PasswordConfig{BcryptCost: c.Auth.BcryptCost, Pepper: c.Auth.PasswordPepper}
}
