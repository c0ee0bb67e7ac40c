package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	LogLevel      string `yaml:"logLevel"`

	AuthBaseURL string `yaml:"authBaseURL"`
	JWKSURL     string `yaml:"jwksURL"`

	InternalJWTPrivateKeyPath string `yaml:"internalJwtPrivateKeyPath"`
	InternalJWTKeyID          string `yaml:"internalJwtKeyId"`

	TrustedProxies []string `yaml:"trustedProxies"`

	SignupRateLimitPerMinute  int `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute   int `yaml:"loginRateLimitPerMinute"`
	RefreshRateLimitPerMinute int `yaml:"refreshRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("AUTH_BASE_URL"); v != "" {
		cfg.AuthBaseURL = v
	}
	if v := os.Getenv("JWKS_URL"); v != "" {
		cfg.JWKSURL = v
	}
	if v := os.Getenv("INTERNAL_JWT_PRIVATE_KEY_PATH"); v != "" {
		cfg.InternalJWTPrivateKeyPath = v
	}
	if v := os.Getenv("INTERNAL_JWT_KEY_ID"); v != "" {
		cfg.InternalJWTKeyID = v
	}
	if v := os.Getenv("READER_SIGNUP_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignupRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("READER_LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("READER_REFRESH_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RefreshRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for rate limiting")
	}
	if strings.TrimSpace(cfg.AuthBaseURL) == "" {
		return errors.New("config: authBaseURL is required")
	}
	if strings.TrimSpace(cfg.InternalJWTPrivateKeyPath) == "" {
		return errors.New("config: internalJwtPrivateKeyPath is required for profile lookups")
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.RefreshRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

// ResolveJWKSURL returns the explicit JWKS URL or derives it from the
// auth base URL.
func ResolveJWKSURL(cfg FileConfig) string {
	if strings.TrimSpace(cfg.JWKSURL) != "" {
		return cfg.JWKSURL
	}
	return strings.TrimRight(cfg.AuthBaseURL, "/") + "/.well-known/jwks.json"
}
