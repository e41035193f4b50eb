package edgeauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/edgeauth/jwt"
	"github.com/MrEthical07/edgeauth/permission"
)

const bearerScheme = "bearer"

// Resolve authenticates r.
//
// A bearer token in the Authorization header takes precedence and short-circuits
// cookie inspection. An invalid bearer token yields [ErrUnauthenticated] unless
// Identity.BearerFallthrough is set. Otherwise the first configured session cookie
// present on the request is resolved through the session store.
//
// Resolve returns [ErrUnauthenticated] when no credential authenticates and an error
// wrapping [ErrBackendUnavailable] when the durable store cannot answer.
func (e *Engine) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	if r == nil {
		return nil, ErrUnauthenticated
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() { e.metrics.Observe(MetricResolveLatency, time.Since(start)) }()
	}

	id, err := e.resolve(ctx, r)
	switch {
	case err == nil:
	case errors.Is(err, ErrBackendUnavailable):
		e.metricInc(MetricResolveBackendError)
	default:
		e.metricInc(MetricResolveUnauthenticated)
	}
	return id, err
}

func (e *Engine) resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	if token, ok := bearerToken(r); ok {
		id, err := e.ResolveBearer(ctx, token)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, ErrBackendUnavailable) || !e.config.Identity.BearerFallthrough {
			return nil, err
		}
	}

	if sessionID, ok := e.sessionCookie(r); ok {
		return e.ResolveSession(ctx, sessionID)
	}
	return nil, ErrUnauthenticated
}

// ResolveBearer verifies an access token and returns its identity. A token bound to
// a session (sid claim) is only accepted while that session is live.
func (e *Engine) ResolveBearer(ctx context.Context, token string) (*Identity, error) {
	claims, err := e.codec.Verify(ctx, token, jwt.TypeAccess)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if err := e.checkBoundSession(ctx, claims); err != nil {
		return nil, err
	}

	e.metricInc(MetricResolveBearer)
	id := &Identity{
		ID:        claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		UserType:  claims.UserType,
		Role:      permission.ParseRole(claims.UserType),
		Source:    SourceBearer,
		TokenID:   claims.ID,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (e *Engine) checkBoundSession(ctx context.Context, claims *jwt.Claims) error {
	if claims.SessionID == "" {
		return nil
	}
	sess, err := e.sessions.Resolve(ctx, claims.SessionID)
	if err != nil {
		e.logger.ErrorContext(ctx, "bound session lookup failed", slog.Any("error", err))
		e.emitAudit(ctx, auditEventBackendUnavailable, false, claims.Subject, "", ErrBackendUnavailable, func() map[string]string {
			return map[string]string{"operation": "resolve_bound_session"}
		})
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if sess == nil || sess.UserID != claims.Subject {
		return ErrUnauthenticated
	}
	return nil
}

// ResolveSession resolves an opaque session id.
func (e *Engine) ResolveSession(ctx context.Context, sessionID string) (*Identity, error) {
	sess, err := e.sessions.Resolve(ctx, sessionID)
	if err != nil {
		e.logger.ErrorContext(ctx, "session resolution failed", slog.Any("error", err))
		e.emitAudit(ctx, auditEventBackendUnavailable, false, "", "", ErrBackendUnavailable, func() map[string]string {
			return map[string]string{"operation": "resolve_session"}
		})
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if sess == nil {
		return nil, ErrUnauthenticated
	}

	e.metricInc(MetricResolveSession)
	return &Identity{
		ID:        sess.UserID,
		Email:     sess.UserEmail,
		Name:      sess.UserName,
		UserType:  sess.UserType,
		Role:      permission.ParseRole(sess.UserType),
		Source:    SourceSession,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// RequireAuth resolves r and fails with [ErrUnauthenticated] (401) when nothing
// authenticates. Backend failures are returned as [ErrBackendUnavailable].
func (e *Engine) RequireAuth(ctx context.Context, r *http.Request) (*Identity, error) {
	id, err := e.Resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	return id, nil
}

// RequireRole is [Engine.RequireAuth] plus a role check: the caller's userType,
// compared case-insensitively, must be one of roles. Otherwise it returns
// [ErrForbidden] (403). Admin is not implied; list it when it should pass.
func (e *Engine) RequireRole(ctx context.Context, r *http.Request, roles ...permission.Role) (*Identity, error) {
	id, err := e.RequireAuth(ctx, r)
	if err != nil {
		return nil, err
	}
	if !HasRole(id, roles...) {
		return nil, ErrForbidden
	}
	return id, nil
}

// HasRole reports whether id's role is one of roles. The unknown role never matches.
func HasRole(id *Identity, roles ...permission.Role) bool {
	if id == nil || id.Role == permission.RoleUnknown {
		return false
	}
	for _, role := range roles {
		if id.Role == role {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func (e *Engine) sessionCookie(r *http.Request) (string, bool) {
	for _, name := range e.config.Session.CookieNames {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			continue
		}
		return c.Value, true
	}
	return "", false
}
