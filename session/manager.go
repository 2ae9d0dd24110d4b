package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingUser is returned when a session operation needs a user id and none was given.
	ErrMissingUser = errors.New("user id is required")
	// ErrInvalidCookie is returned when a cookie would be emitted with invalid attributes.
	ErrInvalidCookie = errors.New("invalid session cookie")
)

// Repository is the persistence contract the Manager needs. [Store] is the
// Redis implementation.
type Repository interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
	List(ctx context.Context, sessionID string) ([]UserSession, error)
	Get(ctx context.Context, sessionID, userID string) (*UserSession, error)
	Create(ctx context.Context, us UserSession) (*UserSession, bool, error)
	Extend(ctx context.Context, sessionID, userID string, expected, newExpiry time.Time) (time.Time, bool, error)
	Delete(ctx context.Context, sessionID, userID string) (int, error)
	DeleteAll(ctx context.Context, sessionID string) (int, error)
}

// SubjectParser extracts a user id from a bearer token.
type SubjectParser interface {
	Subject(token string) (string, error)
}

// Observer is notified of session lifecycle changes.
type Observer interface {
	SessionCreated()
	SessionRefreshed()
	SessionRevoked(n int)
	CookiesCleared()
}

type noopObserver struct{}

func (noopObserver) SessionCreated()    {}
func (noopObserver) SessionRefreshed()  {}
func (noopObserver) SessionRevoked(int) {}
func (noopObserver) CookiesCleared()    {}

// Config holds session lifetimes and the names of the cookies and header.
type Config struct {
	TTL              time.Duration
	RefreshThreshold time.Duration
	SessionCookie    string
	UserCookie       string
	SessionHeader    string
	CookieDomain     string
	CookiePath       string
}

// DefaultConfig returns a 15 day session refreshed once less than 7 days remain.
func DefaultConfig() Config {
	return Config{
		TTL:              15 * 24 * time.Hour,
		RefreshThreshold: 7 * 24 * time.Hour,
		SessionCookie:    "session",
		UserCookie:       "user",
		SessionHeader:    "X-Session-Id",
		CookiePath:       "/",
	}
}

// Manager resolves request identity, mints and refreshes sessions and
// decides which cookies a response must carry. It never writes to an
// http.ResponseWriter; callers apply the returned cookies.
type Manager struct {
	repo     Repository
	cfg      Config
	bearer   SubjectParser
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewManager returns a Manager over repo. Zero fields in cfg take DefaultConfig values.
func NewManager(repo Repository, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = def.RefreshThreshold
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = def.SessionCookie
	}
	if cfg.UserCookie == "" {
		cfg.UserCookie = def.UserCookie
	}
	if cfg.SessionHeader == "" {
		cfg.SessionHeader = def.SessionHeader
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	return &Manager{
		repo:     repo,
		cfg:      cfg,
		observer: noopObserver{},
		logger:   zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithBearer enables the Authorization header fallback for user id resolution.
func (m *Manager) WithBearer(p SubjectParser) *Manager {
	m.bearer = p
	return m
}

// WithObserver installs a lifecycle observer.
func (m *Manager) WithObserver(o Observer) *Manager {
	if o != nil {
		m.observer = o
	}
	return m
}

// WithLogger sets the logger used for lenient resolution paths.
func (m *Manager) WithLogger(l zerolog.Logger) *Manager {
	m.logger = l
	return m
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// SessionOptionsFromRequest reads the claimed session id and user id.
//
// The session id comes from the session cookie, else the session header.
// The user id comes from the user cookie, else the subject of a bearer
// token; a bearer token that fails verification yields an empty user id
// and is never reported as an error.
func (m *Manager) SessionOptionsFromRequest(r *http.Request) Identity {
	var id Identity
	if r == nil {
		return id
	}

	if c, err := r.Cookie(m.cfg.SessionCookie); err == nil && c.Value != "" {
		id.SessionID = c.Value
	} else {
		id.SessionID = strings.TrimSpace(r.Header.Get(m.cfg.SessionHeader))
	}

	if c, err := r.Cookie(m.cfg.UserCookie); err == nil && c.Value != "" {
		id.UserID = c.Value
	} else if m.bearer != nil {
		if token, ok := BearerToken(r.Header.Get("Authorization")); ok {
			sub, err := m.bearer.Subject(token)
			if err != nil {
				m.logger.Debug().Err(err).Msg("ignoring unverifiable bearer token during session resolution")
			} else {
				id.UserID = sub
			}
		}
	}

	return id
}

// UserSessionsFromRequest resolves the live sessions behind the request's
// session id.
//
// No session id: nil, no cookies. A session id with no live entries: nil
// plus cookies clearing both the session and user cookie. Otherwise the
// first entry (oldest association) is current; it is refreshed if due, and
// the user cookie is reissued when the claimed user id differs from it. The
// current entry is always element 0 of the result.
func (m *Manager) UserSessionsFromRequest(ctx context.Context, r *http.Request) ([]UserSession, []*http.Cookie, error) {
	opts := m.SessionOptionsFromRequest(r)
	if opts.SessionID == "" {
		return nil, nil, nil
	}

	sessions, err := m.repo.List(ctx, opts.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if len(sessions) == 0 {
		m.observer.CookiesCleared()
		return nil, m.clearCookies(m.cfg.SessionCookie, m.cfg.UserCookie), nil
	}

	current := sessions[0]
	var cookies []*http.Cookie

	refreshed, err := m.RefreshUserSessionIfNeeded(ctx, current, 0)
	if err != nil {
		return nil, nil, err
	}
	if refreshed != nil {
		current.ExpiresAt = *refreshed
		sessions[0] = current
		c, err := m.cookie(m.cfg.SessionCookie, current.SessionID, current)
		if err != nil {
			return nil, nil, err
		}
		cookies = append(cookies, c)
	}

	if refreshed != nil || opts.UserID != current.UserID {
		c, err := m.cookie(m.cfg.UserCookie, current.UserID, current)
		if err != nil {
			return nil, nil, err
		}
		cookies = append(cookies, c)
	}

	return sessions, cookies, nil
}

// CreateUserSession binds userID to sessionID, allocating a fresh id when
// sessionID is empty or has no server record. Calling it again for the same
// pair returns the existing entry (refreshed if due) instead of a duplicate.
func (m *Manager) CreateUserSession(ctx context.Context, userID, sessionID string) (*UserSession, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	if sessionID != "" {
		exists, err := m.repo.Exists(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if !exists {
			// Never adopt a client-chosen id the server did not issue.
			sessionID = ""
		}
	}

	if sessionID != "" {
		existing, err := m.repo.Get(ctx, sessionID, userID)
		switch {
		case err == nil:
			next, err := m.RefreshUserSessionIfNeeded(ctx, *existing, 0)
			if err != nil {
				return nil, err
			}
			if next != nil {
				existing.ExpiresAt = *next
			}
			return existing, nil
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	} else {
		sessionID = m.newID()
	}

	now := m.now()
	us, created, err := m.repo.Create(ctx, UserSession{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.TTL),
	})
	if err != nil {
		return nil, err
	}
	if created {
		m.observer.SessionCreated()
	}
	return us, nil
}

// RefreshUserSessionIfNeeded extends us when less than minRemaining of its
// lifetime is left (RefreshThreshold when minRemaining <= 0). It returns nil
// when no refresh was needed or the entry is gone.
func (m *Manager) RefreshUserSessionIfNeeded(ctx context.Context, us UserSession, minRemaining time.Duration) (*time.Time, error) {
	if minRemaining <= 0 {
		minRemaining = m.cfg.RefreshThreshold
	}

	now := m.now()
	if !us.ExpiresAt.After(now) || us.ExpiresAt.Sub(now) >= minRemaining {
		return nil, nil
	}

	next, wrote, err := m.repo.Extend(ctx, us.SessionID, us.UserID, us.ExpiresAt, now.Add(m.cfg.TTL))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if wrote {
		m.observer.SessionRefreshed()
	}
	if !next.After(us.ExpiresAt) {
		return nil, nil
	}
	return &next, nil
}

// SetCookies ensures userID holds a session under id.SessionID (or a new
// one) and returns the resulting identity with a session cookie and a user
// cookie whose max-age is the session's ExpiresAt - CreatedAt.
func (m *Manager) SetCookies(ctx context.Context, id Identity, userID string) (Identity, []*http.Cookie, error) {
	us, err := m.CreateUserSession(ctx, userID, id.SessionID)
	if err != nil {
		return id, nil, err
	}

	sessionCookie, err := m.cookie(m.cfg.SessionCookie, us.SessionID, *us)
	if err != nil {
		return id, nil, err
	}
	userCookie, err := m.cookie(m.cfg.UserCookie, us.UserID, *us)
	if err != nil {
		return id, nil, err
	}

	return Identity{SessionID: us.SessionID, UserID: us.UserID}, []*http.Cookie{sessionCookie, userCookie}, nil
}

// SignOut deletes userID's entry under sessionID, or the whole session id
// when userID is empty. It returns the number of entries removed.
func (m *Manager) SignOut(ctx context.Context, sessionID, userID string) (int, error) {
	if sessionID == "" {
		return 0, nil
	}

	var (
		n   int
		err error
	)
	if userID != "" {
		n, err = m.repo.Delete(ctx, sessionID, userID)
	} else {
		n, err = m.repo.DeleteAll(ctx, sessionID)
	}
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.observer.SessionRevoked(n)
	}
	return n, nil
}

// RefreshCookies reissues cookieName for the most recently associated user
// of sessionID. With no session id, or none of its entries left, it returns
// a cookie clearing cookieName.
func (m *Manager) RefreshCookies(ctx context.Context, cookieName, sessionID string) (*http.Cookie, error) {
	if cookieName == "" {
		cookieName = m.cfg.UserCookie
	}
	if sessionID != "" {
		sessions, err := m.repo.List(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if len(sessions) > 0 {
			last := sessions[len(sessions)-1]
			return m.cookie(cookieName, last.UserID, last)
		}
	}
	return m.clearCookies(cookieName)[0], nil
}

// ClearCookies returns cookies that remove both the session and user cookie.
func (m *Manager) ClearCookies() []*http.Cookie {
	return m.clearCookies(m.cfg.SessionCookie, m.cfg.UserCookie)
}

func (m *Manager) cookie(name, value string, us UserSession) (*http.Cookie, error) {
	maxAge := int(us.Lifetime() / time.Second)
	if maxAge <= 0 {
		return nil, fmt.Errorf("%w: non-positive max-age for %s", ErrInvalidCookie, name)
	}
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	return c, nil
}

func (m *Manager) clearCookies(names ...string) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		out = append(out, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     m.cfg.CookiePath,
			Domain:   m.cfg.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
	return out
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
