package authcore

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/user"
)

const maxNameRunes = 100

func (e *Engine) validateEmail(email string) (string, error) {
	normalized, err := user.ValidateEmail(email)
	if err != nil {
		return "", ValidationError("email", "invalid email address")
	}
	return normalized, nil
}

func (e *Engine) validatePassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < e.config.Password.MinLength || n > e.config.Password.MaxLength {
		return ValidationError("password", "password length is out of range")
	}
	return nil
}

// CanSignIn fails with ValidationError on a malformed email and otherwise
// returns the early-access decision for it.
func (e *Engine) CanSignIn(ctx context.Context, email string) (bool, error) {
	normalized, err := e.validateEmail(email)
	if err != nil {
		return false, err
	}
	ok, err := e.earlyAccess.Allowed(ctx, normalized)
	if err != nil {
		return false, e.internal("early_access", err)
	}
	return ok, nil
}

// Register may return ValidationError, EmailAlreadyUsed or an internal error.
// It creates the user and issues a bearer token; it does not create a
// session, which is the caller's job through SetCookies.
func (e *Engine) Register(ctx context.Context, email, name, password string) (*AuthResult, error) {
	normalized, err := e.validateEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
		return nil, ValidationError("name", "name must be between 1 and 100 characters")
	}
	if err := e.validatePassword(password); err != nil {
		return nil, err
	}

	if _, err := e.users.FindByEmail(ctx, normalized); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return nil, EmailAlreadyUsed(normalized)
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, e.internal("register", err)
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		return nil, e.internal("register", err)
	}

	u, err := e.users.Create(ctx, user.NewUser{
		Email:        normalized,
		Name:         name,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, EmailAlreadyUsed(normalized)
		}
		return nil, e.internal("register", err)
	}

	res, err := e.authResult(u)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, internalaudit.EventRegister, u.ID, "", nil, nil)
	return res, nil
}

// Every mismatch (unknown email, wrong password, account without a
// password) fails with the same WrongSignInCredentials error after the same
// amount of hashing work. With throttling enabled, too many failures for one
// email fail with TooManyRequests whether or not the account exists.
func (e *Engine) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	normalized, err := e.validateEmail(email)
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.Check(ctx, normalized); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricSignInRateLimited)
				return nil, TooManyRequests()
			}
			return nil, e.internal("sign_in", err)
		}
	}

	u, err := e.users.FindByEmail(ctx, normalized)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, e.internal("sign_in", err)
	}

	hash := e.dummyHash
	if u.HasPassword() {
		hash = u.PasswordHash
	}
	ok, verr := e.hasher.Verify(password, hash)
	if verr != nil {
		e.logger.Warn().Err(verr).Msg("stored password hash rejected")
		ok = false
	}

	if !ok || !u.HasPassword() {
		e.metricInc(MetricSignInFailure)
		if e.limiter != nil {
			if err := e.limiter.Fail(ctx, normalized); err != nil && !errors.Is(err, rate.ErrRateLimited) {
				e.logger.Warn().Err(err).Msg("sign-in throttle unavailable")
			}
		}
		fail := WrongSignInCredentials(normalized)
		e.emitAudit(ctx, internalaudit.EventSignIn, "", "", fail, nil)
		return nil, fail
	}

	if e.limiter != nil {
		if err := e.limiter.Reset(ctx, normalized); err != nil {
			e.logger.Warn().Err(err).Msg("sign-in throttle reset failed")
		}
	}
	e.rehashIfNeeded(ctx, u, password)

	res, err := e.authResult(u)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, internalaudit.EventSignIn, u.ID, "", nil, nil)
	return res, nil
}

func (e *Engine) rehashIfNeeded(ctx context.Context, u *user.User, password string) {
	if !e.config.Password.RehashOnSignIn {
		return
	}
	needs, err := e.hasher.NeedsRehash(u.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return
	}
	if _, err := e.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		e.logger.Warn().Err(err).Str("user_id", u.ID).Msg("password rehash failed")
	}
}

// ChangePassword re-hashes and stores newPassword for userID. The caller
// has already authorized the change; no old password is checked here.
func (e *Engine) ChangePassword(ctx context.Context, userID, newPassword string) (*user.Profile, error) {
	if err := e.validatePassword(newPassword); err != nil {
		return nil, err
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return nil, e.internal("change_password", err)
	}
	u, err := e.users.UpdatePassword(ctx, userID, hash)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, UserNotFound(userID)
		}
		return nil, e.internal("change_password", err)
	}

	if e.limiter != nil {
		if err := e.limiter.Reset(ctx, u.Email); err != nil {
			e.logger.Warn().Err(err).Msg("sign-in throttle reset failed")
		}
	}
	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, internalaudit.EventPasswordChanged, u.ID, "", nil, nil)
	p := u.Profile()
	return &p, nil
}

// SetEmailVerified flags userID's email as verified. Calling it again is a no-op.
func (e *Engine) SetEmailVerified(ctx context.Context, userID string) (*user.Profile, error) {
	u, err := e.users.MarkEmailVerified(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, UserNotFound(userID)
		}
		return nil, e.internal("set_email_verified", err)
	}
	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, internalaudit.EventEmailVerified, u.ID, "", nil, nil)
	p := u.Profile()
	return &p, nil
}

// GetUser returns the profile of userID.
func (e *Engine) GetUser(ctx context.Context, userID string) (*user.Profile, error) {
	u, err := e.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

func (e *Engine) findUser(ctx context.Context, userID string) (*user.User, error) {
	if userID == "" {
		return nil, UserNotFound(userID)
	}
	u, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, UserNotFound(userID)
		}
		return nil, e.internal("find_user", err)
	}
	return u, nil
}

func (e *Engine) authResult(u *user.User) (*AuthResult, error) {
	tok, err := e.bearer.Issue(jwt.Subject{ID: u.ID, Email: u.Email, Name: u.Name})
	if err != nil {
		return nil, e.internal("issue_bearer", err)
	}
	return &AuthResult{
		User:        u.Profile(),
		BearerToken: tok.Value,
		IssuedAt:    tok.IssuedAt,
		ExpiresAt:   tok.ExpiresAt,
	}, nil
}
