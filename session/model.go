package session

import "time"

// Session is a server-side login session joined with the identity fields of its user.
// The durable repository is the source of truth; the cache holds encoded snapshots.
type Session struct {
	ID        string
	UserID    string
	UserEmail string
	UserName  string
	UserType  string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live reports whether the session is still valid at now.
func (s *Session) Live(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

// Remaining returns the time left until expiry, or zero once expired.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
