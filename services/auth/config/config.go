package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                   string `yaml:"port"`
	DatabaseURL            string `yaml:"databaseURL"`
	RedisAddr              string `yaml:"redisAddr"`
	RedisPassword          string `yaml:"redisPassword"`
	SessionTTL             string `yaml:"sessionTTL"`
	RefreshTTL             string `yaml:"refreshTTL"`
	LogLevel               string `yaml:"logLevel"`
	JWTPrivateKeyPath      string `yaml:"jwtPrivateKeyPath"`
	JWTPublicKeyPath       string `yaml:"jwtPublicKeyPath"`
	JWTKeyID               string `yaml:"jwtKeyId"`
	JWTVerifyPublicKeys    string `yaml:"jwtVerifyPublicKeys"`
	JWTIssuer              string `yaml:"jwtIssuer"`
	JWTAudience            string `yaml:"jwtAudience"`
	JWTLeeway              string `yaml:"jwtLeeway"`
	InternalJWTPublicKey   string `yaml:"internalJwtPublicKeyPath"`
	InternalJWTVerifyKeys  string `yaml:"internalJwtVerifyPublicKeys"`
	InternalAllowedIssuers string `yaml:"internalAllowedIssuers"`
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
	if v := os.Getenv("JWT_PRIVATE_KEY_PATH"); v != "" {
		cfg.JWTPrivateKeyPath = v
	}
	if v := os.Getenv("JWT_PUBLIC_KEY_PATH"); v != "" {
		cfg.JWTPublicKeyPath = v
	}
	if v := os.Getenv("JWT_KEY_ID"); v != "" {
		cfg.JWTKeyID = v
	}
	if v := os.Getenv("JWT_VERIFY_PUBLIC_KEYS"); v != "" {
		cfg.JWTVerifyPublicKeys = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("AUTH_REFRESH_TTL"); v != "" {
		cfg.RefreshTTL = v
	}
	if v := os.Getenv("INTERNAL_JWT_PUBLIC_KEY_PATH"); v != "" {
		cfg.InternalJWTPublicKey = v
	}
	if v := os.Getenv("INTERNAL_JWT_VERIFY_PUBLIC_KEYS"); v != "" {
		cfg.InternalJWTVerifyKeys = v
	}
	if v := os.Getenv("INTERNAL_ALLOWED_ISSUERS"); v != "" {
		cfg.InternalAllowedIssuers = v
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
		return errors.New("config: redisAddr is required for jwt+redis session strategy")
	}
	if cfg.JWTPrivateKeyPath == "" {
		return errors.New("config: jwtPrivateKeyPath is required (set JWT_PRIVATE_KEY_PATH)")
	}
	if strings.TrimSpace(cfg.InternalJWTPublicKey) == "" && strings.TrimSpace(cfg.InternalJWTVerifyKeys) == "" {
		return errors.New("config: internalJwtPublicKeyPath is required for internal endpoints")
	}
	return nil
}

// ParseSessionTTL parses optional session TTL duration string.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	return dur, nil
}

// ParseRefreshTTL parses optional refresh TTL duration string.
func ParseRefreshTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid refreshTTL duration: %w", err)
	}
	return dur, nil
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}

// ParseAllowedIssuers splits a comma-separated issuer allowlist.
func ParseAllowedIssuers(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
