package edgeauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/edgeauth/jwt"
)

// Config holds every tunable of the [Engine]. Start from [DefaultConfig] and override
// what you need; [Builder.Build] validates the result.
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	Identity IdentityConfig
	Access   AccessConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the stateless credential.
//
// Secret is the root signing secret (at least 32 bytes). Each token type signs with
// its own key derived from it.
type TokenConfig struct {
	Secret               []byte
	Issuer               string
	Audience             string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
	MaxFutureIAT         time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the server-side session path.
type SessionConfig struct {
	// CookieNames are checked in order; the first present cookie is used.
	CookieNames []string
	// Lifetime of a session created by [Engine.Login]. Access and refresh tokens
	// from the same login stop working when the session ends.
	Lifetime      time.Duration
	CacheTTL      time.Duration
	NegativeTTL   time.Duration
	LookupTimeout time.Duration
}

/*
====================================
IDENTITY / ACCESS CONFIG
====================================
*/

// IdentityConfig controls credential precedence.
type IdentityConfig struct {
	// BearerFallthrough lets a request with an invalid bearer token still
	// authenticate through its session cookie. Off by default.
	BearerFallthrough bool
}

// AccessConfig controls the enforcer's policy for routes without a binding.
type AccessConfig struct {
	DenyUnlisted bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id parameters used for login verification.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds login and refresh throttling.
type SecurityConfig struct {
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the production defaults. Token.Secret is left empty and must
// be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:            jwt.DefaultTTLs[jwt.TypeAccess],
			RefreshTTL:           jwt.DefaultTTLs[jwt.TypeRefresh],
			PasswordResetTTL:     jwt.DefaultTTLs[jwt.TypePasswordReset],
			EmailVerificationTTL: jwt.DefaultTTLs[jwt.TypeEmailVerification],
			MaxFutureIAT:         time.Minute,
		},
		Session: SessionConfig{
			CookieNames:   []string{"pitchey-session", "session"},
			Lifetime:      7 * 24 * time.Hour,
			CacheTTL:      time.Hour,
			NegativeTTL:   0,
			LookupTimeout: 2 * time.Second,
		},
		Identity: IdentityConfig{
			BearerFallthrough: false,
		},
		Access: AccessConfig{
			DenyUnlisted: false,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		Security: SecurityConfig{
			EnableIPThrottle:        false,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	if cfg.Session.CookieNames != nil {
		out.Session.CookieNames = append([]string(nil), cfg.Session.CookieNames...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.Secret) < jwt.MinSecretBytes {
		return fmt.Errorf("Token Secret must be at least %d bytes", jwt.MinSecretBytes)
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be >= AccessTTL")
	}
	if c.Token.PasswordResetTTL <= 0 || c.Token.EmailVerificationTTL <= 0 {
		return errors.New("Token purpose TTLs must be > 0")
	}
	if c.Token.MaxFutureIAT < 0 || c.Token.MaxFutureIAT > time.Hour {
		return errors.New("Token MaxFutureIAT must be between 0 and 1h")
	}

	// Session
	if len(c.Session.CookieNames) == 0 {
		return errors.New("Session CookieNames must not be empty")
	}
	for _, name := range c.Session.CookieNames {
		if !validCookieName(name) {
			return fmt.Errorf("Session cookie name %q is invalid", name)
		}
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if c.Session.CacheTTL <= 0 {
		return errors.New("Session CacheTTL must be > 0")
	}
	if c.Session.NegativeTTL < 0 {
		return errors.New("Session NegativeTTL must be >= 0")
	}
	if c.Session.NegativeTTL > c.Session.CacheTTL {
		return errors.New("Session NegativeTTL must not exceed CacheTTL")
	}
	if c.Session.LookupTimeout <= 0 {
		return errors.New("Session LookupTimeout must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Security
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0 when refresh throttling is enabled")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security RefreshCooldownDuration must be > 0 when refresh throttling is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n;,=\"()<>@:\\/[]?{}")
}
