package edgeauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/edgeauth/access"
	internalaudit "github.com/MrEthical07/edgeauth/internal/audit"
	"github.com/MrEthical07/edgeauth/internal/rate"
	"github.com/MrEthical07/edgeauth/jwt"
	"github.com/MrEthical07/edgeauth/password"
	"github.com/MrEthical07/edgeauth/permission"
	"github.com/MrEthical07/edgeauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	cache  session.Cache

	repository   session.Repository
	userProvider UserProvider
	auditSink    AuditSink
	model        *permission.Model
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// The client backs login throttling and, unless [Builder.WithCache] overrides it, the
// session cache and the revocation list. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache overrides the session cache.
func (b *Builder) WithCache(cache session.Cache) *Builder {
	b.cache = cache
	return b
}

// WithRepository sets the durable session repository. It is required.
func (b *Builder) WithRepository(repo session.Repository) *Builder {
	b.repository = repo
	return b
}

// WithUserProvider sets the user store used by login and refresh. Without one the
// engine still resolves identities but Login and Refresh return [ErrEngineNotReady].
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the sink fed by the audit dispatcher. Audit must also be
// enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithModel overrides the compiled-in [permission.DefaultModel].
func (b *Builder) WithModel(model *permission.Model) *Builder {
	b.model = model
	return b
}

// WithLogger sets the structured logger shared by all components.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source; intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the resolve latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, wires every component and returns an immutable
// [Engine]. It fails when the Redis client or the session repository is missing.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.repository == nil {
		return nil, errors.New("session repository required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	model := b.model
	if model == nil {
		model = permission.DefaultModel()
	}
	cache := b.cache
	if cache == nil {
		cache = session.NewRedisCache(b.redis)
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		now:          now,
		model:        model,
		userProvider: b.userProvider,
		metrics:      NewMetrics(cfg.Metrics),
	}

	// -------- REVOCATIONS + TOKEN CODEC --------
	revocations, err := session.NewRevocations(cache, now)
	if err != nil {
		return nil, err
	}
	engine.revocations = revocations

	codec, err := jwt.NewCodec(jwt.Config{
		Secret:   cloneBytes(cfg.Token.Secret),
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		TTLs: map[jwt.TokenType]time.Duration{
			jwt.TypeAccess:            cfg.Token.AccessTTL,
			jwt.TypeRefresh:           cfg.Token.RefreshTTL,
			jwt.TypePasswordReset:     cfg.Token.PasswordResetTTL,
			jwt.TypeEmailVerification: cfg.Token.EmailVerificationTTL,
		},
		MaxFutureIAT: cfg.Token.MaxFutureIAT,
		Revocations:  revocations,
		Logger:       logger,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	engine.codec = codec

	// -------- SESSION STORE --------
	store, err := session.NewStore(cache, b.repository, session.Config{
		CacheTTL:      cfg.Session.CacheTTL,
		NegativeTTL:   cfg.Session.NegativeTTL,
		LookupTimeout: cfg.Session.LookupTimeout,
	},
		session.WithRecorder(sessionRecorder{metrics: engine.metrics}),
		session.WithLogger(logger),
		session.WithClock(now),
	)
	if err != nil {
		return nil, err
	}
	engine.sessions = store

	// -------- ACCESS ENFORCER --------
	enforcer, err := access.NewEnforcer(model,
		access.WithDenyUnlisted(cfg.Access.DenyUnlisted),
		access.WithObserver(decisionObserver{engine: engine}),
		access.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	engine.enforcer = enforcer

	// -------- LOGIN SUPPORT --------
	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
		MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
		MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
	})

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
