package session

import "time"

// UserSession binds one user to a session id until ExpiresAt. A single
// session id may carry several UserSession entries (co-resident sign-ins).
type UserSession struct {
	SessionID string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Remaining returns the lifetime left at now, or zero once expired.
func (s UserSession) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Lifetime returns ExpiresAt - CreatedAt. Cookie max-age is derived from it.
func (s UserSession) Lifetime() time.Duration {
	return s.ExpiresAt.Sub(s.CreatedAt)
}

// Identity is the per-request view of who is calling: the session id and
// user id resolved at the transport boundary. It is passed explicitly to
// every call that needs it.
type Identity struct {
	SessionID string
	UserID    string
}

// Anonymous reports whether no user was resolved.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}
