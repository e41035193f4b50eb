package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the tables used by [Repository] and [Users].
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	user_type     TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at);
`

const (
	findLiveSQL = `
SELECT s.id, s.created_at, s.expires_at, u.id, u.email, u.name, u.user_type
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.id = $1 AND s.expires_at > $2`

	createSessionSQL = `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`
	deleteSessionSQL = `DELETE FROM sessions WHERE id = $1`
	purgeExpiredSQL  = `DELETE FROM sessions WHERE expires_at <= $1`
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements session.Repository.
type Repository struct {
	db     DB
	logger *slog.Logger
}

var _ session.Repository = (*Repository)(nil)

func NewRepository(db DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// FindLive returns the session joined with its user when it has not expired at now.
func (r *Repository) FindLive(ctx context.Context, id string, now time.Time) (*session.Session, error) {
	var s session.Session
	err := r.db.QueryRow(ctx, findLiveSQL, id, now.UTC()).Scan(
		&s.ID, &s.CreatedAt, &s.ExpiresAt,
		&s.UserID, &s.UserEmail, &s.UserName, &s.UserType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.logError("session_repo_find_live_failed", err)
	}
	return &s, nil
}

func (r *Repository) Create(ctx context.Context, s *session.Session) error {
	_, err := r.db.Exec(ctx, createSessionSQL, s.ID, s.UserID, s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return session.ErrDuplicateSession
		}
		return r.logError("session_repo_create_failed", err, "user_id", s.UserID)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, deleteSessionSQL, id); err != nil {
		return r.logError("session_repo_delete_failed", err)
	}
	return nil
}

// PurgeExpired deletes sessions that expired at or before now and reports how many
// rows went.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, purgeExpiredSQL, now.UTC())
	if err != nil {
		return 0, r.logError("session_repo_purge_failed", err)
	}
	return tag.RowsAffected(), nil
}

// Session ids are bearer credentials, so they are never logged.
func (r *Repository) logError(event string, err error, attrs ...any) error {
	r.logger.Error(event, append(attrs, "error", err)...)
	return fmt.Errorf("%s: %w", strings.TrimSuffix(event, "_failed"), err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const (
	userByEmailSQL = `SELECT id, email, name, user_type, password_hash FROM users WHERE email = $1`
	userByIDSQL    = `SELECT id, email, name, user_type, password_hash FROM users WHERE id = $1`
	updateHashSQL  = `UPDATE users SET password_hash = $2 WHERE id = $1`
)

// Users implements edgeauth.UserProvider against the users table. Identifiers are
// emails, matched after the engine's normalization.
type Users struct {
	db DB
}

var _ edgeauth.UserProvider = (*Users)(nil)

func NewUsers(db DB) *Users {
	return &Users{db: db}
}

func (u *Users) GetUserByIdentifier(ctx context.Context, identifier string) (edgeauth.UserRecord, error) {
	return u.scanUser(ctx, userByEmailSQL, identifier)
}

func (u *Users) GetUserByID(ctx context.Context, userID string) (edgeauth.UserRecord, error) {
	return u.scanUser(ctx, userByIDSQL, userID)
}

func (u *Users) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	tag, err := u.db.Exec(ctx, updateHashSQL, userID, newHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return edgeauth.ErrUserNotFound
	}
	return nil
}

func (u *Users) scanUser(ctx context.Context, query string, arg string) (edgeauth.UserRecord, error) {
	var rec edgeauth.UserRecord
	err := u.db.QueryRow(ctx, query, arg).Scan(&rec.UserID, &rec.Email, &rec.Name, &rec.UserType, &rec.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return edgeauth.UserRecord{}, edgeauth.ErrUserNotFound
		}
		return edgeauth.UserRecord{}, fmt.Errorf("load user: %w", err)
	}
	return rec, nil
}
