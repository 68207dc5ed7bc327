package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khanghh/appsso/params"
)

func TestParseLifetime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", params.DefaultAccessTokenLifetime},
		{"7d", 7 * 24 * time.Hour},
		{"30d", 30 * 24 * time.Hour},
		{"3600", time.Hour},
		{"90m", 90 * time.Minute},
		{" 2h ", 2 * time.Hour},
	}
	for _, c := range cases {
		got, err := ParseLifetime(c.in, params.DefaultAccessTokenLifetime)
		if err != nil {
			t.Fatalf("ParseLifetime(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseLifetime(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseLifetime("xd", 0); err == nil {
		t.Fatalf("expected error for malformed day lifetime")
	}
	if _, err := ParseLifetime("soon", 0); err == nil {
		t.Fatalf("expected error for malformed lifetime")
	}
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
siteName: Apps SSO
database:
  driver: postgres
  dsn: postgres://sso@localhost/sso
cache:
  backend: memory
jwt:
  secret: file-secret
  expiresIn: 1d
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JWT_REFRESH_SECRET", "env-refresh-secret")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "5d")

	cfg, err := LoadConfig(file)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.JWT.Secret != "file-secret" {
		t.Fatalf("unexpected secret %q", cfg.JWT.Secret)
	}
	if cfg.JWT.RefreshSecret != "env-refresh-secret" {
		t.Fatalf("refresh secret not read from environment: %q", cfg.JWT.RefreshSecret)
	}
	if cfg.JWT.AccessLifetime != 24*time.Hour {
		t.Fatalf("unexpected access lifetime %v", cfg.JWT.AccessLifetime)
	}
	if cfg.JWT.RefreshLifetime != 5*24*time.Hour {
		t.Fatalf("unexpected refresh lifetime %v", cfg.JWT.RefreshLifetime)
	}
	if cfg.Database.Driver != "postgres" || cfg.Cache.Backend != "memory" {
		t.Fatalf("unexpected backends: %s %s", cfg.Database.Driver, cfg.Cache.Backend)
	}
	if cfg.ListenAddr != DefaultListenAddr || cfg.RateLimit.AuthMax != params.AuthRateLimitMax {
		t.Fatalf("defaults were not applied: %+v", cfg)
	}
}

func TestSanitizeRejectsUnknownBackends(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{Driver: "oracle", Dsn: "x"}}
	if err := cfg.Sanitize(); err == nil {
		t.Fatalf("expected unsupported driver error")
	}

	cfg = Config{Database: DatabaseConfig{Dsn: "x"}, Cache: CacheConfig{Backend: "etcd"}}
	if err := cfg.Sanitize(); err == nil {
		t.Fatalf("expected unsupported cache error")
	}

	cfg = Config{}
	if err := cfg.Sanitize(); err != ErrMissingDatabaseDsn {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
}
