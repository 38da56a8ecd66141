package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "CHOREO"
	defaultHTTPAddress       = "0.0.0.0:3000"
	defaultDatabaseDriver    = "sqlite"
	defaultDatabaseDSN       = "choreo.db"
	defaultLogLevel          = "info"
	defaultTokenTTL          = 24 * time.Hour
	defaultPasswordCost      = 10
	defaultCORSOrigin        = "http://localhost:5173"
	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = 15 * time.Minute
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDriver    string
	DatabaseDSN       string
	SigningSecret     string
	TokenTTL          time.Duration
	PasswordCost      int
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	LogLevel          string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("auth.password_cost", defaultPasswordCost)
	configViper.SetDefault("cors.origins", []string{defaultCORSOrigin})
	configViper.SetDefault("ratelimit.requests", defaultRateLimitRequests)
	configViper.SetDefault("ratelimit.window", defaultRateLimitWindow)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTL:          configViper.GetDuration("auth.token_ttl"),
		PasswordCost:      configViper.GetInt("auth.password_cost"),
		CORSOrigins:       splitOrigins(configViper.GetStringSlice("cors.origins")),
		RateLimitRequests: configViper.GetInt("ratelimit.requests"),
		RateLimitWindow:   configViper.GetDuration("ratelimit.window"),
		LogLevel:          configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.RateLimitRequests < 0 {
		return fmt.Errorf("ratelimit.requests must not be negative")
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("ratelimit.window must be positive when ratelimit.requests is set")
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("cors.origins requires at least one origin")
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
