package edgeauth

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/edgeauth/internal/audit"
	"github.com/MrEthical07/edgeauth/permission"
)

// CredentialSource names the path that authenticated a request.
type CredentialSource string

const (
	// SourceBearer is a verified access token from the Authorization header.
	SourceBearer CredentialSource = "bearer"
	// SourceSession is a live server-side session from a cookie.
	SourceSession CredentialSource = "session"
)

// Identity is the normalized output of either credential path. It carries who the
// caller is, never what they own.
type Identity struct {
	ID       string
	Email    string
	Name     string
	UserType string
	Role     permission.Role
	Source   CredentialSource

	// TokenID is the access token's jti (bearer identities only).
	TokenID string
	// SessionID is the session behind the identity: the cookie value, or the sid
	// claim of a bearer token.
	SessionID string
	// ExpiresAt is the expiry of the credential that produced the identity.
	ExpiresAt time.Time
}

// UserRecord is the account view the engine needs for login.
type UserRecord struct {
	UserID       string
	Email        string
	Name         string
	UserType     string
	PasswordHash string
}

// UserProvider is implemented by the application's user store. GetUserByIdentifier
// and GetUserByID must return [ErrUserNotFound] for unknown users; any other error is
// treated as a backend outage.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh].
//
// SessionID is only set by Login; it is the value for the session cookie.
type LoginResult struct {
	Identity         Identity
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
	SessionExpiresAt time.Time
}

// AuditEvent is emitted for security-relevant engine operations.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes audit events through a structured logger.
type LogSink = internalaudit.LogSink

// NewChannelSink creates a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] on w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink creates a [LogSink]; a nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}
