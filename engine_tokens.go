package authcore

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/tokens"
	"github.com/MrEthical07/authcore/user"
)

func (e *Engine) tokenError(op string, err error) error {
	if errors.Is(err, tokens.ErrInvalidPayload) {
		return ValidationError("token", "token payload is incomplete")
	}
	return e.internal(op, err)
}

// GeneratePasswordResetToken stores a password_reset token bound to email.
func (e *Engine) GeneratePasswordResetToken(ctx context.Context, email string) (string, error) {
	normalized, err := e.validateEmail(email)
	if err != nil {
		return "", err
	}
	tok, err := e.tokens.GeneratePasswordResetToken(ctx, normalized)
	if err != nil {
		return "", e.tokenError("generate_token", err)
	}
	e.metricInc(MetricPurposeTokenIssued)
	return tok, nil
}

// ValidatePasswordResetToken returns the email bound to token. ok is false
// for malformed, unknown and expired tokens.
func (e *Engine) ValidatePasswordResetToken(ctx context.Context, token string) (email string, ok bool, err error) {
	email, ok, err = e.tokens.ValidatePasswordResetToken(ctx, token)
	if err != nil {
		return "", false, e.tokenError("validate_token", err)
	}
	e.countValidation(ok)
	return email, ok, nil
}

// GenerateSetPasswordToken stores a set_password token bound to userID and email.
func (e *Engine) GenerateSetPasswordToken(ctx context.Context, userID, email string) (string, error) {
	tok, err := e.tokens.GenerateSetPasswordToken(ctx, userID, user.NormalizeEmail(email))
	if err != nil {
		return "", e.tokenError("generate_token", err)
	}
	e.metricInc(MetricPurposeTokenIssued)
	return tok, nil
}

// ValidateSetPasswordToken returns the user binding of a set_password token.
func (e *Engine) ValidateSetPasswordToken(ctx context.Context, token string) (tokens.UserPayload, bool, error) {
	p, ok, err := e.tokens.ValidateSetPasswordToken(ctx, token)
	if err != nil {
		return tokens.UserPayload{}, false, e.tokenError("validate_token", err)
	}
	e.countValidation(ok)
	return p, ok, nil
}

// GenerateEmailVerifyToken stores an email_verify token bound to userID and email.
func (e *Engine) GenerateEmailVerifyToken(ctx context.Context, userID, email string) (string, error) {
	tok, err := e.tokens.GenerateEmailVerifyToken(ctx, userID, user.NormalizeEmail(email))
	if err != nil {
		return "", e.tokenError("generate_token", err)
	}
	e.metricInc(MetricPurposeTokenIssued)
	return tok, nil
}

// ValidateEmailVerifyToken returns the user binding of an email_verify token.
func (e *Engine) ValidateEmailVerifyToken(ctx context.Context, token string) (tokens.UserPayload, bool, error) {
	p, ok, err := e.tokens.ValidateEmailVerifyToken(ctx, token)
	if err != nil {
		return tokens.UserPayload{}, false, e.tokenError("validate_token", err)
	}
	e.countValidation(ok)
	return p, ok, nil
}

func (e *Engine) countValidation(ok bool) {
	if ok {
		e.metricInc(MetricPurposeTokenValidated)
	} else {
		e.metricInc(MetricPurposeTokenRejected)
	}
}

// RequestPasswordReset mails a password reset link to email. An address
// without an account succeeds without sending anything.
func (e *Engine) RequestPasswordReset(ctx context.Context, email, callbackURL string) error {
	normalized, err := e.validateEmail(email)
	if err != nil {
		return err
	}
	if _, err := tokenLink(callbackURL, ""); err != nil {
		return err
	}

	u, err := e.users.FindByEmail(ctx, normalized)
	if errors.Is(err, user.ErrNotFound) {
		e.logger.Debug().Str("email", normalized).Msg("password reset for unknown email")
		return nil
	}
	if err != nil {
		return e.internal("request_password_reset", err)
	}

	tok, err := e.GeneratePasswordResetToken(ctx, u.Email)
	if err != nil {
		return err
	}
	if err := e.sendTokenMail(ctx, mailPasswordReset, u, callbackURL, tok, e.config.Tokens.PasswordResetTTL); err != nil {
		return err
	}
	e.emitAudit(ctx, internalaudit.EventPasswordResetRequested, u.ID, "", nil, nil)
	return nil
}

// ResetPassword sets newPassword on the account a password_reset token was
// issued for.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (*user.Profile, error) {
	if err := e.validatePassword(newPassword); err != nil {
		return nil, err
	}
	email, ok, err := e.ValidatePasswordResetToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, InvalidEmailToken()
	}
	u, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return nil, InvalidEmailToken()
	}
	if err != nil {
		return nil, e.internal("reset_password", err)
	}
	return e.ChangePassword(ctx, u.ID, newPassword)
}

// RequestSetPassword mails a set-password link to the account of userID.
func (e *Engine) RequestSetPassword(ctx context.Context, userID, callbackURL string) error {
	if _, err := tokenLink(callbackURL, ""); err != nil {
		return err
	}
	u, err := e.findUser(ctx, userID)
	if err != nil {
		return err
	}
	tok, err := e.GenerateSetPasswordToken(ctx, u.ID, u.Email)
	if err != nil {
		return err
	}
	return e.sendTokenMail(ctx, mailSetPassword, u, callbackURL, tok, e.config.Tokens.SetPasswordTTL)
}

// SetPassword sets newPassword on the account a set_password token was
// issued for, provided its email has not changed since.
func (e *Engine) SetPassword(ctx context.Context, token, newPassword string) (*user.Profile, error) {
	if err := e.validatePassword(newPassword); err != nil {
		return nil, err
	}
	p, ok, err := e.ValidateSetPasswordToken(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := e.tokenUser(ctx, p, ok, "set_password")
	if err != nil {
		return nil, err
	}
	return e.ChangePassword(ctx, u.ID, newPassword)
}

// RequestEmailVerification mails a verification link to the account of userID.
func (e *Engine) RequestEmailVerification(ctx context.Context, userID, callbackURL string) error {
	if _, err := tokenLink(callbackURL, ""); err != nil {
		return err
	}
	u, err := e.findUser(ctx, userID)
	if err != nil {
		return err
	}
	tok, err := e.GenerateEmailVerifyToken(ctx, u.ID, u.Email)
	if err != nil {
		return err
	}
	return e.sendTokenMail(ctx, mailEmailVerify, u, callbackURL, tok, e.config.Tokens.EmailVerifyTTL)
}

// VerifyEmail marks the account an email_verify token was issued for as
// verified.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (*user.Profile, error) {
	p, ok, err := e.ValidateEmailVerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	u, err := e.tokenUser(ctx, p, ok, "verify_email")
	if err != nil {
		return nil, err
	}
	return e.SetEmailVerified(ctx, u.ID)
}

// tokenUser resolves the user of a token binding. A missing user or an
// email that no longer matches makes the token invalid.
func (e *Engine) tokenUser(ctx context.Context, p tokens.UserPayload, ok bool, op string) (*user.User, error) {
	if !ok {
		return nil, InvalidEmailToken()
	}
	u, err := e.users.FindByID(ctx, p.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, InvalidEmailToken()
	}
	if err != nil {
		return nil, e.internal(op, err)
	}
	if user.NormalizeEmail(u.Email) != p.Email {
		return nil, InvalidEmailToken()
	}
	return u, nil
}

func (e *Engine) sendTokenMail(ctx context.Context, kind mailKind, u *user.User, callbackURL, token string, ttl time.Duration) error {
	link, err := tokenLink(callbackURL, token)
	if err != nil {
		return err
	}
	msg, err := renderMail(kind, e.config.Mail.ProductName, u.Email, u.Name, link, ttl)
	if err != nil {
		return e.internal("render_mail", err)
	}
	opts := MailOptions{Priority: e.config.Mail.Priority, Attempts: e.config.Mail.Attempts}
	if err := e.mailer.Enqueue(ctx, msg, opts); err != nil {
		return e.internal("enqueue_mail", err)
	}
	return nil
}
