package authcore

import (
	"context"
	"errors"
	"net/http"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

func summary(us session.UserSession) SessionSummary {
	return SessionSummary{
		SessionID: us.SessionID,
		UserID:    us.UserID,
		CreatedAt: us.CreatedAt,
		ExpiresAt: us.ExpiresAt,
	}
}

func (e *Engine) sessionError(op string, err error) error {
	if errors.Is(err, session.ErrMissingUser) {
		return ValidationError("userId", "user id is required")
	}
	return e.internal(op, err)
}

// GetSessionOptionsFromRequest returns the session id and user id the
// request claims. An unverifiable bearer token yields no user id.
func (e *Engine) GetSessionOptionsFromRequest(r *http.Request) session.Identity {
	return e.sessions.SessionOptionsFromRequest(r)
}

// GetUserSessionFromRequest returns the live sessions behind the request's session id, the current
// one first, and the cookies the response must carry. A stale session id
// yields no sessions and cookies clearing both the session and user cookie;
// it is never reported as an error.
func (e *Engine) GetUserSessionFromRequest(ctx context.Context, r *http.Request) ([]SessionSummary, []*http.Cookie, error) {
	start := time.Now()
	sessions, cookies, err := e.sessions.UserSessionsFromRequest(ctx, r)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricResolveLatency, time.Since(start))
	}
	if err != nil {
		return nil, nil, e.sessionError("resolve_session", err)
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, us := range sessions {
		out = append(out, summary(us))
	}
	return out, cookies, nil
}

// CreateUserSession binds userID to sessionID or to a fresh id. Repeating
// the call for the same pair returns the existing session.
func (e *Engine) CreateUserSession(ctx context.Context, userID, sessionID string) (*SessionSummary, error) {
	us, err := e.sessions.CreateUserSession(ctx, userID, sessionID)
	if err != nil {
		return nil, e.sessionError("create_session", err)
	}
	s := summary(*us)
	return &s, nil
}

// RefreshUserSessionIfNeeded extends s when less than minRemaining is left
// (the configured threshold when minRemaining is zero). It returns nil when
// nothing was refreshed.
func (e *Engine) RefreshUserSessionIfNeeded(ctx context.Context, s SessionSummary, minRemaining time.Duration) (*time.Time, error) {
	next, err := e.sessions.RefreshUserSessionIfNeeded(ctx, session.UserSession{
		SessionID: s.SessionID,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}, minRemaining)
	if err != nil {
		return nil, e.sessionError("refresh_session", err)
	}
	return next, nil
}

// SetCookies ensures userID has a session under id.SessionID, allocating a
// new id when the request carried none or one the server never issued, and
// returns the new identity with the session and user cookies.
func (e *Engine) SetCookies(ctx context.Context, id session.Identity, userID string) (session.Identity, []*http.Cookie, error) {
	next, cookies, err := e.sessions.SetCookies(ctx, id, userID)
	if err != nil {
		return id, nil, e.sessionError("set_cookies", err)
	}
	return next, cookies, nil
}

// SignOut removes userID from sessionID, or the whole session id when
// userID is empty, and returns how many entries were removed.
func (e *Engine) SignOut(ctx context.Context, sessionID, userID string) (int, error) {
	n, err := e.sessions.SignOut(ctx, sessionID, userID)
	if err != nil {
		return 0, e.sessionError("sign_out", err)
	}
	e.emitAudit(ctx, internalaudit.EventSignOut, userID, sessionID, nil, nil)
	return n, nil
}

// RefreshCookies reissues cookieName for the most recently associated user
// of sessionID, or clears it when there is none.
func (e *Engine) RefreshCookies(ctx context.Context, cookieName, sessionID string) (*http.Cookie, error) {
	c, err := e.sessions.RefreshCookies(ctx, cookieName, sessionID)
	if err != nil {
		return nil, e.sessionError("refresh_cookies", err)
	}
	return c, nil
}

// ClearCookies returns cookies removing the session and user cookie.
func (e *Engine) ClearCookies() []*http.Cookie {
	return e.sessions.ClearCookies()
}

// IssueBearerToken signs a bearer token for userID.
func (e *Engine) IssueBearerToken(ctx context.Context, userID string) (*BearerEnvelope, error) {
	u, err := e.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tok, err := e.bearer.Issue(jwt.Subject{ID: u.ID, Email: u.Email, Name: u.Name})
	if err != nil {
		return nil, e.internal("issue_bearer", err)
	}
	return &BearerEnvelope{Token: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

// ValidateBearerToken verifies signature and expiry. Every failure is an
// InvalidTokenError and no partial payload is returned.
func (e *Engine) ValidateBearerToken(token string) (*BearerPayload, error) {
	claims, err := e.bearer.Parse(token)
	if err != nil {
		e.metricInc(MetricBearerInvalid)
		return nil, InvalidTokenError(err)
	}
	p := &BearerPayload{
		UserID:  claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}
