package jwt

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// TokenType is the class of a token, carried in the typ claim. Each class signs
// with its own derived key.
type TokenType string

const (
	TypeAccess            TokenType = "access"
	TypeRefresh           TokenType = "refresh"
	TypePasswordReset     TokenType = "password_reset"
	TypeEmailVerification TokenType = "email_verification"
)

// DefaultTTLs are the lifetimes used by [Codec.Issue] when [Config.TTLs] does not
// override them.
var DefaultTTLs = map[TokenType]time.Duration{
	TypeAccess:            2 * time.Hour,
	TypeRefresh:           7 * 24 * time.Hour,
	TypePasswordReset:     time.Hour,
	TypeEmailVerification: 24 * time.Hour,
}

// MinSecretBytes is the shortest accepted signing secret.
const MinSecretBytes = 32

const keyInfoPrefix = "edgeauth/token/"

// ErrTokenInvalid is the only error returned by [Codec.Verify]. Malformed, forged,
// expired, revoked and wrong-type tokens are indistinguishable to the caller.
var ErrTokenInvalid = errors.New("token invalid")

// Claims is the token payload. The sid claim binds access and refresh tokens to the
// session created by the same login.
type Claims struct {
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	UserType  string    `json:"userType,omitempty"`
	Type      TokenType `json:"typ"`
	SessionID string    `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Subject is the identity a token is issued for. SessionID, when set, becomes the
// sid claim.
type Subject struct {
	ID        string
	Email     string
	Name      string
	UserType  string
	SessionID string
}

// RevocationChecker reports whether a token id has been revoked before its expiry.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Config configures a [Codec].
//
// Secret is the root secret; per-type keys are derived from it with HKDF-SHA256.
// MaxFutureIAT bounds how far ahead of the local clock an iat may be (default 1m).
type Config struct {
	Secret       []byte
	Issuer       string
	Audience     string
	TTLs         map[TokenType]time.Duration
	MaxFutureIAT time.Duration
	Revocations  RevocationChecker
	Logger       *slog.Logger
	Now          func() time.Time
}

// Codec signs and verifies HS256 tokens. A Codec is immutable after construction
// and safe for concurrent use.
type Codec struct {
	keys         map[TokenType][]byte
	ttls         map[TokenType]time.Duration
	issuer       string
	audience     string
	maxFutureIAT time.Duration
	revocations  RevocationChecker
	logger       *slog.Logger
	now          func() time.Time
}

// NewCodec validates cfg and derives one signing key per token type.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	c := &Codec{
		keys:         make(map[TokenType][]byte, len(DefaultTTLs)),
		ttls:         make(map[TokenType]time.Duration, len(DefaultTTLs)),
		issuer:       strings.TrimSpace(cfg.Issuer),
		audience:     strings.TrimSpace(cfg.Audience),
		maxFutureIAT: cfg.MaxFutureIAT,
		revocations:  cfg.Revocations,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}

	for typ, ttl := range DefaultTTLs {
		if override, ok := cfg.TTLs[typ]; ok {
			if override <= 0 {
				return nil, fmt.Errorf("invalid ttl for %s tokens", typ)
			}
			ttl = override
		}
		key, err := deriveKey(cfg.Secret, typ)
		if err != nil {
			return nil, err
		}
		c.keys[typ] = key
		c.ttls[typ] = ttl
	}
	for typ := range cfg.TTLs {
		if _, ok := DefaultTTLs[typ]; !ok {
			return nil, fmt.Errorf("unknown token type %q", typ)
		}
	}

	return c, nil
}

func deriveKey(secret []byte, typ TokenType) ([]byte, error) {
	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, secret, nil, []byte(keyInfoPrefix+string(typ)))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", typ, err)
	}
	return key, nil
}

// TTL returns the configured lifetime of a token type.
func (c *Codec) TTL(typ TokenType) time.Duration {
	return c.ttls[typ]
}

// Issue creates a token of the given type for s with the type's configured lifetime.
func (c *Codec) Issue(typ TokenType, s Subject) (string, *Claims, error) {
	claims := Claims{
		Email:     s.Email,
		Name:      s.Name,
		UserType:  s.UserType,
		Type:      typ,
		SessionID: s.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: s.ID,
		},
	}
	token, err := c.Create(&claims, c.ttls[typ])
	if err != nil {
		return "", nil, err
	}
	return token, &claims, nil
}

// Create fills iat, exp, jti and the configured iss/aud into claims and signs it with
// the key of claims.Type. Any ttl is accepted; a non-positive one yields a token that
// never verifies.
func (c *Codec) Create(claims *Claims, ttl time.Duration) (string, error) {
	if claims == nil {
		return "", errors.New("nil claims")
	}
	key, ok := c.keys[claims.Type]
	if !ok {
		return "", fmt.Errorf("unknown token type %q", claims.Type)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token subject is required")
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = uuid.NewString()
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// Verify checks signature, lifetime, issuer, audience, type and revocation, in that
// order. expectedType may be empty to accept any known type. Every failure returns
// [ErrTokenInvalid]; the reason is logged at debug level.
func (c *Codec) Verify(ctx context.Context, token string, expectedType TokenType) (*Claims, error) {
	claims, reason := c.verify(ctx, token, expectedType)
	if reason != nil {
		c.logger.DebugContext(ctx, "token rejected",
			slog.String("reason", reason.Error()),
			slog.String("expected_type", string(expectedType)),
		)
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (c *Codec) verify(ctx context.Context, token string, expectedType TokenType) (*Claims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, errors.New("malformed token")
	}

	// The payload is decoded unverified only to select the type key.
	var peek Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &peek); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	key, ok := c.keys[peek.Type]
	if !ok {
		return nil, fmt.Errorf("unknown token type %q", peek.Type)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		options = append(options, jwt.WithAudience(c.audience))
	}

	var claims Claims
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	if claims.IssuedAt == nil {
		return nil, errors.New("missing iat")
	}
	if !claims.ExpiresAt.Time.After(claims.IssuedAt.Time) {
		return nil, errors.New("exp not after iat")
	}
	if claims.IssuedAt.Time.After(c.now().Add(c.maxFutureIAT)) {
		return nil, errors.New("iat too far in the future")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("missing sub or jti")
	}
	if expectedType != "" && claims.Type != expectedType {
		return nil, fmt.Errorf("type %q, want %q", claims.Type, expectedType)
	}

	if c.revocations != nil {
		revoked, err := c.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("revocation lookup: %w", err)
		}
		if revoked {
			return nil, errors.New("token revoked")
		}
	}

	return &claims, nil
}
