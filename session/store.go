package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrBackendUnavailable is returned when the durable repository cannot answer.
// Callers must fail closed on it.
var ErrBackendUnavailable = errors.New("session backend unavailable")

const (
	// DefaultCacheTTL bounds how long a snapshot may live in the cache.
	DefaultCacheTTL = time.Hour
	// DefaultLookupTimeout bounds one shared durable lookup.
	DefaultLookupTimeout = 2 * time.Second

	keyPrefix     = "session:"
	missKeyPrefix = "session-miss:"
	missMarker    = "1"
	maxIDLen      = 256
)

// Event is a session resolution outcome reported to a [Recorder].
type Event uint8

const (
	EventCacheHit Event = iota
	EventCacheMiss
	EventCacheError
	EventStaleEntry
	EventNegativeHit
	EventDurableLookup
	EventDurableError
	EventCoalesced
)

// Recorder receives resolution events. Implementations must be cheap and safe for
// concurrent use.
type Recorder interface {
	RecordSession(Event)
}

type nopRecorder struct{}

func (nopRecorder) RecordSession(Event) {}

// Config tunes a [Store].
type Config struct {
	// CacheTTL caps the lifetime of a cached snapshot (default 1h). The effective TTL
	// is never longer than the session's remaining lifetime.
	CacheTTL time.Duration
	// NegativeTTL caches "no such live session" answers. Zero disables it.
	NegativeTTL time.Duration
	// LookupTimeout bounds the shared durable lookup (default 2s).
	LookupTimeout time.Duration
}

// Store resolves opaque session ids through a read-through cache in front of the
// durable repository. It is safe for concurrent use.
type Store struct {
	cache    Cache
	repo     Repository
	config   Config
	group    singleflight.Group
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a [Store].
type Option func(*Store)

// WithRecorder reports resolution events to r.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a [Store]. cache may be nil, in which case every lookup goes to
// the repository.
func NewStore(cache Cache, repo Repository, cfg Config, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, errors.New("session repository is required")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if cfg.CacheTTL < 0 || cfg.NegativeTTL < 0 || cfg.LookupTimeout < 0 {
		return nil, errors.New("session durations must not be negative")
	}

	s := &Store{
		cache:    cache,
		repo:     repo,
		config:   cfg,
		recorder: nopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func cacheKey(id string) string { return keyPrefix + id }
func missKey(id string) string  { return missKeyPrefix + id }

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && !strings.ContainsAny(id, " \t\r\n")
}

// Resolve returns the live session for id, or (nil, nil) when there is none.
//
// The cache is consulted first and its snapshot re-checked against the clock. On a
// miss the repository is queried, coalescing concurrent lookups of the same id, and
// a live result is written back. A repository failure yields [ErrBackendUnavailable];
// cache failures only degrade to the repository path.
func (s *Store) Resolve(ctx context.Context, id string) (*Session, error) {
	if !validID(id) {
		return nil, nil
	}

	now := s.now()
	if sess := s.fromCache(ctx, id, now); sess != nil {
		return sess, nil
	}
	if s.negativeHit(ctx, id) {
		return nil, nil
	}

	ch := s.group.DoChan(id, func() (interface{}, error) {
		return s.load(context.WithoutCancel(ctx), id)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, ctx.Err())
	case res := <-ch:
		if res.Shared {
			s.recorder.RecordSession(EventCoalesced)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		sess, _ := res.Val.(*Session)
		if !sess.Live(s.now()) {
			return nil, nil
		}
		return sess.clone(), nil
	}
}

func (s *Store) fromCache(ctx context.Context, id string, now time.Time) *Session {
	if s.cache == nil {
		return nil
	}

	raw, found, err := s.cache.Get(ctx, cacheKey(id))
	if err != nil {
		s.recorder.RecordSession(EventCacheError)
		s.logger.WarnContext(ctx, "session cache read failed", slog.Any("error", err))
		return nil
	}
	if !found {
		s.recorder.RecordSession(EventCacheMiss)
		return nil
	}

	sess, err := Decode([]byte(raw))
	if err != nil || sess.ID != id || !sess.Live(now) {
		s.recorder.RecordSession(EventStaleEntry)
		if delErr := s.cache.Delete(ctx, cacheKey(id)); delErr != nil {
			s.logger.WarnContext(ctx, "session cache delete failed", slog.Any("error", delErr))
		}
		return nil
	}

	s.recorder.RecordSession(EventCacheHit)
	return sess
}

func (s *Store) negativeHit(ctx context.Context, id string) bool {
	if s.cache == nil || s.config.NegativeTTL <= 0 {
		return false
	}
	_, found, err := s.cache.Get(ctx, missKey(id))
	if err != nil || !found {
		return false
	}
	s.recorder.RecordSession(EventNegativeHit)
	return true
}

// load runs once per id for all concurrent callers, detached from any single
// caller's cancellation.
func (s *Store) load(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.LookupTimeout)
	defer cancel()

	s.recorder.RecordSession(EventDurableLookup)
	now := s.now()
	sess, err := s.repo.FindLive(ctx, id, now)
	if err != nil {
		s.recorder.RecordSession(EventDurableError)
		s.logger.ErrorContext(ctx, "session repository lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if !sess.Live(now) || sess.ID != id {
		if s.cache != nil && s.config.NegativeTTL > 0 {
			if err := s.cache.Put(ctx, missKey(id), missMarker, s.config.NegativeTTL); err != nil {
				s.logger.WarnContext(ctx, "session negative cache write failed", slog.Any("error", err))
			}
		}
		return nil, nil
	}

	s.writeBack(ctx, sess, now)
	return sess, nil
}

func (s *Store) writeBack(ctx context.Context, sess *Session, now time.Time) {
	if s.cache == nil {
		return
	}
	ttl := s.config.CacheTTL
	if remaining := sess.Remaining(now); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	encoded, err := Encode(sess)
	if err != nil {
		s.logger.WarnContext(ctx, "session snapshot encode failed", slog.Any("error", err))
		return
	}
	if err := s.cache.Put(ctx, cacheKey(sess.ID), string(encoded), ttl); err != nil {
		s.recorder.RecordSession(EventCacheError)
		s.logger.WarnContext(ctx, "session cache write failed", slog.Any("error", err))
	}
}

// Create persists a new session and primes the cache with it.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if sess == nil || !validID(sess.ID) || sess.UserID == "" {
		return errors.New("session id and user id are required")
	}
	now := s.now()
	if !sess.Live(now) {
		return errors.New("session already expired")
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		if errors.Is(err, ErrDuplicateSession) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if s.cache != nil && s.config.NegativeTTL > 0 {
		_ = s.cache.Delete(ctx, missKey(sess.ID))
	}
	s.writeBack(ctx, sess, now)
	return nil
}

// Revoke deletes the session from the repository and evicts its snapshot. Revoking
// an unknown id is not an error.
func (s *Store) Revoke(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	s.group.Forget(id)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
			s.recorder.RecordSession(EventCacheError)
			s.logger.WarnContext(ctx, "session cache evict failed", slog.Any("error", err))
		}
	}
	return nil
}
