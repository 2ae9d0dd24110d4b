package authcore

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/user"
)

// EarlyAccess decides whether an email may register or sign in during a
// restricted rollout.
type EarlyAccess interface {
	Allowed(ctx context.Context, email string) (bool, error)
}

// EarlyAccessFunc adapts a function to [EarlyAccess].
type EarlyAccessFunc func(ctx context.Context, email string) (bool, error)

// Allowed calls f.
func (f EarlyAccessFunc) Allowed(ctx context.Context, email string) (bool, error) {
	return f(ctx, email)
}

type openAccess struct{}

func (openAccess) Allowed(context.Context, string) (bool, error) { return true, nil }

// MailMessage is a fully rendered email.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
}

// MailOptions carries delivery metadata for the mail queue.
type MailOptions struct {
	Priority int
	Attempts int
}

// Mailer enqueues rendered messages. Delivery and retries are its concern.
type Mailer interface {
	Enqueue(ctx context.Context, msg MailMessage, opts MailOptions) error
}

type discardMailer struct{}

func (discardMailer) Enqueue(context.Context, MailMessage, MailOptions) error { return nil }

// AuthResult is returned by Register, SignIn and OAuth callbacks.
type AuthResult struct {
	User        user.Profile `json:"user"`
	BearerToken string       `json:"bearerToken"`
	IssuedAt    time.Time    `json:"issuedAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// CallbackResult is an [AuthResult] plus what preflight recorded, so the
// transport can return the user agent to where the login started.
type CallbackResult struct {
	AuthResult
	RedirectURI string `json:"redirectUri,omitempty"`
	Client      string `json:"client,omitempty"`
	ClientNonce string `json:"clientNonce,omitempty"`
}

// BearerEnvelope is the bearer token DTO. RefreshToken is reserved for
// transports that layer refresh on top; the core never issues one.
type BearerEnvelope struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// BearerPayload is the verified content of a bearer token.
type BearerPayload struct {
	UserID    string
	Email     string
	Name      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionSummary is the session DTO.
type SessionSummary struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PreflightRequest starts an OAuth login.
type PreflightRequest struct {
	Provider    string
	RedirectURI string
	Client      string
	ClientNonce string
}

// PreflightResult is the URL to redirect the user agent to and the state it embeds.
type PreflightResult struct {
	AuthorizeURL string `json:"authorizeUrl"`
	State        string `json:"state"`
}

// CallbackRequest carries the query parameters of an OAuth redirect back.
type CallbackRequest struct {
	Code        string
	State       string
	ClientNonce string
}

// AuditEvent is one audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink
