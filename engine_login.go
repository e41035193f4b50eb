package edgeauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrEthical07/edgeauth/internal"
	"github.com/MrEthical07/edgeauth/internal/rate"
	"github.com/MrEthical07/edgeauth/jwt"
	"github.com/MrEthical07/edgeauth/permission"
	"github.com/MrEthical07/edgeauth/session"
)

// Login verifies identifier and secret, then issues an access token, a refresh token
// and a server-side session.
//
// Unknown identifiers and wrong passwords both yield [ErrInvalidCredentials]. Failed
// attempts are counted per identifier (and per client IP when enabled); once the
// budget is spent Login returns [ErrLoginRateLimited] until the cooldown expires.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	if e == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	identifier = normalizeIdentifier(identifier)
	ip := clientIPFromContext(ctx)

	if identifier == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_identifier"}
		})
		return nil, ErrInvalidCredentials
	}

	if err := e.rateLimiter.CheckLogin(ctx, identifier, ip); err != nil {
		return nil, e.loginLimitError(ctx, identifier, "", err)
	}

	user, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger.ErrorContext(ctx, "user lookup failed", slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		e.passwordHash.VerifyDummy(secret)
		return nil, e.loginFailed(ctx, identifier, "", "user_not_found")
	}

	ok, err := e.passwordHash.Verify(secret, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.loginFailed(ctx, identifier, user.UserID, "password_mismatch")
	}

	if err := e.rateLimiter.ResetLogin(ctx, identifier, ip); err != nil {
		e.logger.WarnContext(ctx, "login counter reset failed", slog.Any("error", err))
	}
	e.upgradePasswordHash(ctx, user, secret)

	result, err := e.issueSession(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, result.SessionID, nil, func() map[string]string {
		return map[string]string{"role": result.Identity.Role.String()}
	})
	return result, nil
}

func (e *Engine) loginFailed(ctx context.Context, identifier, userID, reason string) error {
	if err := e.rateLimiter.IncrementLogin(ctx, identifier, clientIPFromContext(ctx)); err != nil {
		return e.loginLimitError(ctx, identifier, userID, err)
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"reason":     reason,
		}
	})
	return ErrInvalidCredentials
}

func (e *Engine) loginLimitError(ctx context.Context, identifier, userID string, err error) error {
	if !errors.Is(err, rate.ErrRateLimited) {
		e.logger.ErrorContext(ctx, "login rate limiter unavailable", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.metricInc(MetricLoginRateLimited)
	e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, "", ErrLoginRateLimited, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})
	return ErrLoginRateLimited
}

func (e *Engine) upgradePasswordHash(ctx context.Context, user UserRecord, secret string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.passwordHash.Hash(secret)
	if err != nil {
		return
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade failed", slog.Any("error", err))
	}
}

func (e *Engine) issueSession(ctx context.Context, user UserRecord) (*LoginResult, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	now := e.now()
	sess := &session.Session{
		ID:        sid.String(),
		UserID:    user.UserID,
		UserEmail: user.Email,
		UserName:  user.Name,
		UserType:  user.UserType,
		CreatedAt: now,
		ExpiresAt: now.Add(e.config.Session.Lifetime),
	}

	result, err := e.issuePair(user, sess.ID)
	if err != nil {
		return nil, err
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		e.logger.ErrorContext(ctx, "session create failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	result.SessionID = sess.ID
	result.SessionExpiresAt = sess.ExpiresAt
	return result, nil
}

func (e *Engine) issuePair(user UserRecord, sessionID string) (*LoginResult, error) {
	subject := jwt.Subject{
		ID:        user.UserID,
		Email:     user.Email,
		Name:      user.Name,
		UserType:  user.UserType,
		SessionID: sessionID,
	}

	accessToken, accessClaims, err := e.codec.Issue(jwt.TypeAccess, subject)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshClaims, err := e.codec.Issue(jwt.TypeRefresh, subject)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Identity: Identity{
			ID:        user.UserID,
			Email:     user.Email,
			Name:      user.Name,
			UserType:  user.UserType,
			Role:      permission.ParseRole(user.UserType),
			Source:    SourceBearer,
			TokenID:   accessClaims.ID,
			SessionID: sessionID,
			ExpiresAt: accessClaims.ExpiresAt.Time,
		},
		AccessToken:      accessToken,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// Refresh exchanges a refresh token for a new access/refresh pair bound to the same
// session. The presented refresh token is revoked first, so each refresh token works
// once. A refresh token whose session has ended is rejected.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(ctx, refreshToken, jwt.TypeRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	if err := e.rateLimiter.CheckRefresh(ctx, claims.Subject); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, claims.Subject, "", ErrRefreshRateLimited, nil)
			return nil, ErrRefreshRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := e.checkBoundSession(ctx, claims); err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			return nil, err
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.SessionID, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "session_ended"}
		})
		return nil, ErrRefreshInvalid
	}

	if err := e.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		e.logger.ErrorContext(ctx, "refresh token revocation failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	user, err := e.userProvider.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, "", ErrUserNotFound, nil)
			return nil, ErrRefreshInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	result, err := e.issuePair(user, claims.SessionID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.UserID, "", nil, nil)
	return result, nil
}

// Logout ends the login behind id. The presented access token is revoked until it
// would have expired and the session is deleted. Tokens carrying the session's sid,
// the refresh token included, stop working with it.
func (e *Engine) Logout(ctx context.Context, id *Identity) error {
	if id == nil || id.ID == "" {
		return ErrUnauthenticated
	}

	if id.TokenID != "" {
		if err := e.revocations.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		e.metricInc(MetricTokenRevoked)
	}
	if id.SessionID != "" {
		if err := e.sessions.Revoke(ctx, id.SessionID); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, id.ID, id.SessionID, nil, func() map[string]string {
		return map[string]string{"source": string(id.Source)}
	})
	return nil
}

// RevokeToken verifies token as typ and revokes it. An already invalid token is
// reported as [ErrUnauthenticated].
func (e *Engine) RevokeToken(ctx context.Context, token string, typ jwt.TokenType) error {
	claims, err := e.codec.Verify(ctx, token, typ)
	if err != nil {
		return ErrUnauthenticated
	}
	if err := e.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRevoked, true, claims.Subject, "", nil, func() map[string]string {
		return map[string]string{"type": string(typ)}
	})
	return nil
}

// IssuePurposeToken issues a password-reset or email-verification token for user.
func (e *Engine) IssuePurposeToken(typ jwt.TokenType, user UserRecord) (string, *jwt.Claims, error) {
	if !purposeType(typ) {
		return "", nil, ErrUnsupportedTokenType
	}
	return e.codec.Issue(typ, jwt.Subject{
		ID:       user.UserID,
		Email:    user.Email,
		Name:     user.Name,
		UserType: user.UserType,
	})
}

// VerifyPurposeToken verifies a password-reset or email-verification token.
func (e *Engine) VerifyPurposeToken(ctx context.Context, token string, typ jwt.TokenType) (*jwt.Claims, error) {
	if !purposeType(typ) {
		return nil, ErrUnsupportedTokenType
	}
	return e.codec.Verify(ctx, token, typ)
}

// ConsumePurposeToken verifies a purpose token and revokes it so it cannot be used
// again.
func (e *Engine) ConsumePurposeToken(ctx context.Context, token string, typ jwt.TokenType) (*jwt.Claims, error) {
	claims, err := e.VerifyPurposeToken(ctx, token, typ)
	if err != nil {
		return nil, err
	}
	if err := e.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	e.metricInc(MetricTokenRevoked)
	return claims, nil
}

func purposeType(typ jwt.TokenType) bool {
	return typ == jwt.TypePasswordReset || typ == jwt.TypeEmailVerification
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
