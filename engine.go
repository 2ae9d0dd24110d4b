package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/tokens"
	"github.com/MrEthical07/authcore/tokenstore"
	"github.com/MrEthical07/authcore/user"
)

// Engine is the authentication core. Build it with [New] and [Builder.Build].
//
// Engine instances are safe for concurrent use and hold no per-request state.
type Engine struct {
	config Config
	logger zerolog.Logger
	now    func() time.Time

	users       user.Repository
	earlyAccess EarlyAccess
	mailer      Mailer

	hasher    password.Hasher
	dummyHash string
	bearer    *jwt.Manager
	limiter   *rate.Limiter

	sessions     *session.Manager
	sessionStore *session.Store

	tokens     *tokens.Service
	tokenStore *tokenstore.Store

	providers *oauth.Registry
	states    *oauth.StateStore

	metrics *Metrics
	audit   *internalaudit.Dispatcher
}

// Close describes the close operation and its observable behavior.
//
// Close flushes pending audit events. It does not close the Redis client or
// the user repository, which the caller owns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Ping checks that Redis answers.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.sessionStore.Ping(ctx); err != nil {
		return e.internal("ping", err)
	}
	return nil
}

// Sessions exposes the session manager for transports that apply cookies themselves.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// AuditDropped returns how many audit events were dropped.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
// MetricsSnapshot does not mutate shared global state and can be used concurrently.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// internal logs err and returns the opaque InternalServerError that wraps it.
func (e *Engine) internal(op string, err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	e.logger.Error().Err(err).Str("op", op).Msg("internal failure")
	return InternalServerError(err)
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, sessionID string, err error, meta map[string]string) {
	if e.audit == nil {
		return
	}
	ev := internalaudit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   err == nil,
		Metadata:  meta,
	}
	if te, ok := AsError(err); ok {
		ev.Error = string(te.Code)
	} else if err != nil {
		ev.Error = string(CodeInternal)
	}
	e.audit.Emit(ctx, ev)
}
