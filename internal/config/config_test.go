package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:3000" || cfg.DatabaseDriver != "sqlite" || cfg.DatabaseDSN != "choreo.db" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.PasswordCost != 10 {
		t.Fatalf("unexpected auth defaults %+v", cfg)
	}
	if cfg.RateLimitRequests != 100 || cfg.RateLimitWindow != 15*time.Minute {
		t.Fatalf("unexpected rate limit defaults %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CHOREO_AUTH_SIGNING_SECRET", "env-secret")
	t.Setenv("CHOREO_DATABASE_DRIVER", "postgres")
	t.Setenv("CHOREO_DATABASE_DSN", "postgres://choreo@localhost/choreo")
	t.Setenv("CHOREO_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CHOREO_AUTH_TOKEN_TTL", "2h")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.SigningSecret != "env-secret" || cfg.DatabaseDriver != "postgres" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Fatalf("expected 2h ttl, got %s", cfg.TokenTTL)
	}
	if strings.Join(cfg.CORSOrigins, "|") != "https://a.example|https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testCases := []struct {
		name      string
		overrides map[string]interface{}
		wantErr   string
	}{
		{name: "missing secret", overrides: map[string]interface{}{}, wantErr: "auth.signing_secret"},
		{name: "unknown driver", overrides: map[string]interface{}{"auth.signing_secret": "s", "database.driver": "oracle"}, wantErr: "database.driver"},
		{name: "empty dsn", overrides: map[string]interface{}{"auth.signing_secret": "s", "database.dsn": " "}, wantErr: "database.dsn"},
		{name: "zero window", overrides: map[string]interface{}{"auth.signing_secret": "s", "ratelimit.window": "0s"}, wantErr: "ratelimit"},
		{name: "negative requests", overrides: map[string]interface{}{"auth.signing_secret": "s", "ratelimit.requests": -1}, wantErr: "ratelimit"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.overrides {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestLoadAllowsDisabledRateLimit(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "s")
	configViper.Set("ratelimit.requests", 0)
	configViper.Set("ratelimit.window", "0s")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("expected disabled rate limit to load, got %v", err)
	}
	if cfg.RateLimitRequests != 0 {
		t.Fatalf("expected rate limiting disabled, got %d", cfg.RateLimitRequests)
	}
}
