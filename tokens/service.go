package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/tokenstore"
)

// Purpose namespaces a token.
type Purpose string

const (
	// PurposePasswordReset tokens store the account email.
	PurposePasswordReset Purpose = "password_reset"
	// PurposeSetPassword tokens store "userId:email".
	PurposeSetPassword Purpose = "set_password"
	// PurposeEmailVerify tokens store "userId:email".
	PurposeEmailVerify Purpose = "email_verify"
)

// DefaultLength is the token length used when Config.Length is not positive.
const DefaultLength = 32

var (
	// ErrUnavailable is returned when the token store cannot be reached.
	ErrUnavailable = errors.New("token service unavailable")
	// ErrUnknownPurpose is returned for purposes without a configured TTL.
	ErrUnknownPurpose = errors.New("unknown token purpose")
	// ErrInvalidPayload is returned when generation input cannot be encoded.
	ErrInvalidPayload = errors.New("invalid token payload")
)

// Config controls token lifetimes and the consumption policy.
type Config struct {
	PasswordResetTTL time.Duration
	SetPasswordTTL   time.Duration
	EmailVerifyTTL   time.Duration
	Length           int
	// SingleUse deletes a token on its first successful validation.
	SingleUse bool
}

// DefaultConfig returns the reference lifetimes: 24h, 72h and 24h.
func DefaultConfig() Config {
	return Config{
		PasswordResetTTL: 24 * time.Hour,
		SetPasswordTTL:   72 * time.Hour,
		EmailVerifyTTL:   24 * time.Hour,
		Length:           DefaultLength,
	}
}

// UserPayload is the decoded value of set_password and email_verify tokens.
type UserPayload struct {
	UserID string
	Email  string
}

// Service generates and validates purpose tokens.
type Service struct {
	store *tokenstore.Store
	cfg   Config
}

// NewService returns a Service. Zero fields in cfg fall back to DefaultConfig.
func NewService(store *tokenstore.Store, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.PasswordResetTTL <= 0 {
		cfg.PasswordResetTTL = def.PasswordResetTTL
	}
	if cfg.SetPasswordTTL <= 0 {
		cfg.SetPasswordTTL = def.SetPasswordTTL
	}
	if cfg.EmailVerifyTTL <= 0 {
		cfg.EmailVerifyTTL = def.EmailVerifyTTL
	}
	if cfg.Length <= 0 {
		cfg.Length = def.Length
	}
	return &Service{store: store, cfg: cfg}
}

// TTL returns the lifetime configured for p.
func (s *Service) TTL(p Purpose) (time.Duration, error) {
	switch p {
	case PurposePasswordReset:
		return s.cfg.PasswordResetTTL, nil
	case PurposeSetPassword:
		return s.cfg.SetPasswordTTL, nil
	case PurposeEmailVerify:
		return s.cfg.EmailVerifyTTL, nil
	default:
		return 0, ErrUnknownPurpose
	}
}

func key(p Purpose, token string) string {
	return string(p) + ":" + token
}

// Generate stores payload under a fresh token for purpose p.
// Collisions are not checked.
func (s *Service) Generate(ctx context.Context, p Purpose, payload string) (string, error) {
	ttl, err := s.TTL(p)
	if err != nil {
		return "", err
	}

	token, err := internal.NewToken(s.cfg.Length)
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, key(p, token), payload, ttl); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}

// Validate returns the payload stored for token under purpose p.
// ok is false when the token is malformed, unknown or expired.
func (s *Service) Validate(ctx context.Context, p Purpose, token string) (payload string, ok bool, err error) {
	if _, err := s.TTL(p); err != nil {
		return "", false, err
	}
	if !internal.IsToken(token, s.cfg.Length) {
		return "", false, nil
	}

	if s.cfg.SingleUse {
		payload, err = s.store.Take(ctx, key(p, token))
	} else {
		payload, err = s.store.Get(ctx, key(p, token))
	}
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return payload, true, nil
}

// Revoke deletes token for purpose p.
func (s *Service) Revoke(ctx context.Context, p Purpose, token string) error {
	if _, err := s.TTL(p); err != nil {
		return err
	}
	if !internal.IsToken(token, s.cfg.Length) {
		return nil
	}
	if err := s.store.Delete(ctx, key(p, token)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GeneratePasswordResetToken issues a password_reset token bound to email.
func (s *Service) GeneratePasswordResetToken(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", ErrInvalidPayload
	}
	return s.Generate(ctx, PurposePasswordReset, email)
}

// ValidatePasswordResetToken returns the email bound to token.
func (s *Service) ValidatePasswordResetToken(ctx context.Context, token string) (string, bool, error) {
	return s.Validate(ctx, PurposePasswordReset, token)
}

// GenerateSetPasswordToken issues a set_password token bound to userID and email.
func (s *Service) GenerateSetPasswordToken(ctx context.Context, userID, email string) (string, error) {
	payload, err := encodeUserPayload(userID, email)
	if err != nil {
		return "", err
	}
	return s.Generate(ctx, PurposeSetPassword, payload)
}

// ValidateSetPasswordToken returns the user binding of a set_password token.
func (s *Service) ValidateSetPasswordToken(ctx context.Context, token string) (UserPayload, bool, error) {
	return s.validateUser(ctx, PurposeSetPassword, token)
}

// GenerateEmailVerifyToken issues an email_verify token bound to userID and email.
func (s *Service) GenerateEmailVerifyToken(ctx context.Context, userID, email string) (string, error) {
	payload, err := encodeUserPayload(userID, email)
	if err != nil {
		return "", err
	}
	return s.Generate(ctx, PurposeEmailVerify, payload)
}

// ValidateEmailVerifyToken returns the user binding of an email_verify token.
func (s *Service) ValidateEmailVerifyToken(ctx context.Context, token string) (UserPayload, bool, error) {
	return s.validateUser(ctx, PurposeEmailVerify, token)
}

func (s *Service) validateUser(ctx context.Context, p Purpose, token string) (UserPayload, bool, error) {
	raw, ok, err := s.Validate(ctx, p, token)
	if err != nil || !ok {
		return UserPayload{}, false, err
	}
	payload, ok := decodeUserPayload(raw)
	if !ok {
		return UserPayload{}, false, nil
	}
	return payload, true, nil
}

func encodeUserPayload(userID, email string) (string, error) {
	// The user id is the part before the first ':', so it must not contain one.
	if userID == "" || email == "" || strings.Contains(userID, ":") {
		return "", ErrInvalidPayload
	}
	return userID + ":" + email, nil
}

func decodeUserPayload(raw string) (UserPayload, bool) {
	userID, email, found := strings.Cut(raw, ":")
	if !found || userID == "" || email == "" {
		return UserPayload{}, false
	}
	return UserPayload{UserID: userID, Email: email}, true
}
