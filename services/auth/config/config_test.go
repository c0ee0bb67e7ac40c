package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfigFile(t, `
port: "8081"
databaseURL: "postgres://localhost/readlater"
redisAddr: "localhost:6379"
sessionTTL: "15m"
refreshTTL: "168h"
jwtPrivateKeyPath: "/keys/jwt-private.pem"
internalJwtPublicKeyPath: "/keys/internal-public.pem"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8081" {
		t.Fatalf("unexpected port: %q", cfg.Port)
	}
	ttl, err := ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		t.Fatalf("parse session ttl: %v", err)
	}
	if ttl != 15*time.Minute {
		t.Fatalf("unexpected session ttl: %v", ttl)
	}
}

func TestLoadRejectsMissingDatabaseURL(t *testing.T) {
	path := writeConfigFile(t, `
port: "8081"
redisAddr: "localhost:6379"
jwtPrivateKeyPath: "/keys/jwt-private.pem"
internalJwtPublicKeyPath: "/keys/internal-public.pem"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected missing databaseURL to fail")
	}
}

func TestLoadRejectsMissingRedisAddr(t *testing.T) {
	path := writeConfigFile(t, `
port: "8081"
databaseURL: "postgres://localhost/readlater"
jwtPrivateKeyPath: "/keys/jwt-private.pem"
internalJwtPublicKeyPath: "/keys/internal-public.pem"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected missing redisAddr to fail")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
port: "8081"
databaseURL: "postgres://localhost/readlater"
redisAddr: "localhost:6379"
jwtPrivateKeyPath: "/keys/jwt-private.pem"
internalJwtPublicKeyPath: "/keys/internal-public.pem"
`)
	t.Setenv("DATABASE_URL", "postgres://db.internal/readlater")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://db.internal/readlater" {
		t.Fatalf("env override not applied: %q", cfg.DatabaseURL)
	}
}

func TestParseAllowedIssuers(t *testing.T) {
	issuers := ParseAllowedIssuers(" readlater-reader , ,other ")
	if len(issuers) != 2 || issuers[0] != "readlater-reader" || issuers[1] != "other" {
		t.Fatalf("unexpected issuers: %v", issuers)
	}
}

func TestParseRefreshTTLRejectsGarbage(t *testing.T) {
	if _, err := ParseRefreshTTL("not-a-duration"); err == nil {
		t.Fatal("expected parse error")
	}
}
