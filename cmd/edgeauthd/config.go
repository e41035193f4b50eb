package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/middleware"
	"gopkg.in/yaml.v3"
)

const secretEnv = "EDGEAUTH_SECRET"

// fileConfig is the YAML layout of the daemon's configuration file. Zero values keep
// the library defaults.
type fileConfig struct {
	Listen      string `yaml:"listen"`
	RedisAddr   string `yaml:"redis_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`
	Upstream    string `yaml:"upstream,omitempty"`

	Token struct {
		Issuer     string        `yaml:"issuer"`
		Audience   string        `yaml:"audience"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
	} `yaml:"token"`

	Session struct {
		CookieNames []string      `yaml:"cookie_names"`
		Lifetime    time.Duration `yaml:"lifetime"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
		NegativeTTL time.Duration `yaml:"negative_ttl"`
		Secure      *bool         `yaml:"secure_cookie"`
	} `yaml:"session"`

	Access struct {
		DenyUnlisted      bool          `yaml:"deny_unlisted"`
		BearerFallthrough bool          `yaml:"bearer_fallthrough"`
		OwnershipURL      string        `yaml:"ownership_url"`
		OwnershipTimeout  time.Duration `yaml:"ownership_timeout"`
	} `yaml:"access"`

	Security struct {
		IPThrottle       bool          `yaml:"ip_throttle"`
		MaxLoginAttempts int           `yaml:"max_login_attempts"`
		LoginCooldown    time.Duration `yaml:"login_cooldown"`
	} `yaml:"security"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Audit   bool `yaml:"audit"`
	Metrics bool `yaml:"metrics"`
}

func defaultFileConfig() fileConfig {
	var fc fileConfig
	fc.Listen = ":8080"
	fc.RedisAddr = "localhost:6379"
	fc.Metrics = true
	fc.Audit = true
	return fc
}

// loadFileConfig reads path, expanding ${VAR} references first. An empty path
// returns the defaults.
func loadFileConfig(path string) (fileConfig, error) {
	fc := defaultFileConfig()
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return fc, fmt.Errorf("unmarshal config: %w", err)
	}
	return fc, nil
}

// engineConfig overlays fc onto the library defaults. The signing secret only comes
// from the environment.
func (fc fileConfig) engineConfig(getenv func(string) string) (edgeauth.Config, error) {
	cfg := edgeauth.DefaultConfig()

	secret := getenv(secretEnv)
	if secret == "" {
		return cfg, errors.New(secretEnv + " is not set")
	}
	cfg.Token.Secret = []byte(secret)
	cfg.Token.Issuer = fc.Token.Issuer
	cfg.Token.Audience = fc.Token.Audience
	if fc.Token.AccessTTL > 0 {
		cfg.Token.AccessTTL = fc.Token.AccessTTL
	}
	if fc.Token.RefreshTTL > 0 {
		cfg.Token.RefreshTTL = fc.Token.RefreshTTL
	}

	if len(fc.Session.CookieNames) > 0 {
		cfg.Session.CookieNames = fc.Session.CookieNames
	}
	if fc.Session.Lifetime > 0 {
		cfg.Session.Lifetime = fc.Session.Lifetime
	}
	if fc.Session.CacheTTL > 0 {
		cfg.Session.CacheTTL = fc.Session.CacheTTL
	}
	cfg.Session.NegativeTTL = fc.Session.NegativeTTL

	cfg.Access.DenyUnlisted = fc.Access.DenyUnlisted
	cfg.Identity.BearerFallthrough = fc.Access.BearerFallthrough

	cfg.Security.EnableIPThrottle = fc.Security.IPThrottle
	if fc.Security.MaxLoginAttempts > 0 {
		cfg.Security.MaxLoginAttempts = fc.Security.MaxLoginAttempts
	}
	if fc.Security.LoginCooldown > 0 {
		cfg.Security.LoginCooldownDuration = fc.Security.LoginCooldown
	}

	cfg.Audit.Enabled = fc.Audit
	cfg.Metrics.Enabled = fc.Metrics
	cfg.Metrics.EnableLatencyHistograms = fc.Metrics

	return cfg, cfg.Validate()
}

func (fc fileConfig) corsConfig() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = fc.CORS.AllowedOrigins
	return cors
}

func (fc fileConfig) secureCookie() bool {
	return fc.Session.Secure == nil || *fc.Session.Secure
}
