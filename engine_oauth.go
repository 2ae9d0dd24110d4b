package authcore

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/oauth"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

// Preflight persists an anti-CSRF state for a login with req.Provider and
// returns the provider's authorize URL.
func (e *Engine) Preflight(ctx context.Context, req PreflightRequest) (*PreflightResult, error) {
	name := strings.TrimSpace(req.Provider)
	if name == "" {
		return nil, MissingOAuthQueryParameter("provider")
	}
	provider, err := e.providers.Lookup(name)
	if err != nil {
		return nil, UnknownOAuthProvider(name)
	}

	if req.RedirectURI != "" {
		u, err := oauth.CheckRedirectURI(req.RedirectURI, e.config.OAuth.AllowedRedirectHosts)
		if err != nil {
			return nil, ValidationError("redirectUri", "redirect uri is not allowed")
		}
		req.RedirectURI = u.String()
	}

	st := oauth.State{
		Provider:    provider.Name(),
		RedirectURI: req.RedirectURI,
		Client:      req.Client,
		ClientNonce: req.ClientNonce,
	}
	if !st.IsWeb() && st.ClientNonce == "" {
		return nil, ValidationError("clientNonce", "client nonce is required for non-web clients")
	}

	state, err := e.states.Issue(ctx, st)
	if err != nil {
		return nil, e.internal("oauth_preflight", err)
	}
	e.metricInc(MetricOAuthPreflight)
	return &PreflightResult{
		AuthorizeURL: provider.AuthCodeURL(state, st.RedirectURI),
		State:        state,
	}, nil
}

// Callback completes a login started by [Engine.Preflight]. id is the
// identity the request resolved to; when it names a live session user the
// provider account is linked to that user. Otherwise an existing account
// with the profile email is used only when the provider verified that email;
// an unverified match fails with ActionForbidden.
//
// On success the account has a session under id.SessionID (or a fresh id)
// and the returned cookies carry it.
func (e *Engine) Callback(ctx context.Context, id session.Identity, req CallbackRequest) (*CallbackResult, []*http.Cookie, error) {
	res, cookies, err := e.callback(ctx, id, req)
	if err != nil {
		e.metricInc(MetricOAuthCallbackFailure)
		e.emitAudit(ctx, internalaudit.EventOAuthLogin, "", id.SessionID, err, nil)
		return nil, nil, err
	}
	e.metricInc(MetricOAuthCallbackSuccess)
	return res, cookies, nil
}

func (e *Engine) callback(ctx context.Context, id session.Identity, req CallbackRequest) (*CallbackResult, []*http.Cookie, error) {
	if req.Code == "" {
		return nil, nil, MissingOAuthQueryParameter("code")
	}
	if req.State == "" {
		return nil, nil, MissingOAuthQueryParameter("state")
	}

	st, err := e.states.Consume(ctx, req.State)
	switch {
	case errors.Is(err, oauth.ErrStateExpired):
		return nil, nil, OAuthStateExpired()
	case errors.Is(err, oauth.ErrStateInvalid):
		return nil, nil, InvalidOAuthCallbackState()
	case err != nil:
		return nil, nil, e.internal("oauth_state", err)
	}
	if !st.MatchNonce(req.ClientNonce) {
		return nil, nil, InvalidOAuthCallbackState()
	}
	provider, err := e.providers.Lookup(st.Provider)
	if err != nil {
		return nil, nil, InvalidOAuthCallbackState()
	}

	tok, err := provider.Exchange(ctx, req.Code, st.RedirectURI)
	if err != nil {
		return nil, nil, e.providerError("oauth_exchange", err)
	}
	profile, err := provider.Profile(ctx, tok)
	if err != nil {
		return nil, nil, e.providerError("oauth_profile", err)
	}

	current, err := e.signedInUser(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	u, linked, err := e.resolveAccount(ctx, current, profile)
	if err != nil {
		return nil, nil, err
	}

	err = e.users.LinkConnectedAccount(ctx, user.ConnectedAccount{
		Provider:          profile.Provider,
		ProviderAccountID: profile.ProviderAccountID,
		UserID:            u.ID,
		AccessToken:       tok.AccessToken,
		RefreshToken:      tok.RefreshToken,
		Scope:             scopeOf(tok),
		ExpiresAt:         tok.Expiry,
	})
	if errors.Is(err, user.ErrAccountLinked) {
		return nil, nil, OAuthAccountAlreadyConnected(profile.Provider)
	}
	if err != nil {
		return nil, nil, e.internal("oauth_link", err)
	}
	if linked {
		e.metricInc(MetricOAuthAccountLinked)
		e.emitAudit(ctx, internalaudit.EventOAuthConnected, u.ID, id.SessionID, nil,
			map[string]string{"provider": profile.Provider})
	}

	next, cookies, err := e.SetCookies(ctx, id, u.ID)
	if err != nil {
		return nil, nil, err
	}
	res, err := e.authResult(u)
	if err != nil {
		return nil, nil, err
	}
	e.emitAudit(ctx, internalaudit.EventOAuthLogin, u.ID, next.SessionID, nil,
		map[string]string{"provider": profile.Provider})
	return &CallbackResult{
		AuthResult:  *res,
		RedirectURI: st.RedirectURI,
		Client:      st.Client,
		ClientNonce: st.ClientNonce,
	}, cookies, nil
}

// signedInUser returns the user id holds a live session entry for, or nil.
// A claimed user id without a server record is ignored.
func (e *Engine) signedInUser(ctx context.Context, id session.Identity) (*user.User, error) {
	if id.SessionID == "" || id.UserID == "" {
		return nil, nil
	}
	if _, err := e.sessionStore.Get(ctx, id.SessionID, id.UserID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, e.internal("oauth_session", err)
	}
	u, err := e.users.FindByID(ctx, id.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, e.internal("oauth_session", err)
	}
	return u, nil
}

// resolveAccount picks the local user for profile. linked reports whether a
// new provider link is being created.
func (e *Engine) resolveAccount(ctx context.Context, current *user.User, profile *oauth.Profile) (u *user.User, linked bool, err error) {
	acc, err := e.users.FindConnectedAccount(ctx, profile.Provider, profile.ProviderAccountID)
	switch {
	case err == nil:
		if current != nil && current.ID != acc.UserID {
			return nil, false, OAuthAccountAlreadyConnected(profile.Provider)
		}
		u, err := e.findUser(ctx, acc.UserID)
		return u, false, err
	case !errors.Is(err, user.ErrNotFound):
		return nil, false, e.internal("oauth_account", err)
	}

	if current != nil {
		return current, true, nil
	}

	email, verr := user.ValidateEmail(profile.Email)
	if verr != nil {
		e.logger.Debug().Str("provider", profile.Provider).Msg("provider returned an unusable email")
		return nil, false, NetworkError(verr)
	}
	existing, err := e.users.FindByEmail(ctx, email)
	if err == nil {
		if !profile.EmailVerified {
			return nil, false, e.unverifiedEmail(profile)
		}
		return existing, true, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, false, e.internal("oauth_account", err)
	}

	allowed, err := e.earlyAccess.Allowed(ctx, email)
	if err != nil {
		return nil, false, e.internal("early_access", err)
	}
	if !allowed {
		return nil, false, EarlyAccessRequired(email)
	}
	created, err := e.users.Create(ctx, user.NewUser{
		Email:         email,
		Name:          profile.Name,
		AvatarURL:     profile.AvatarURL,
		EmailVerified: profile.EmailVerified,
	})
	if errors.Is(err, user.ErrEmailTaken) {
		// Lost a race with a concurrent sign-up for the same address.
		if !profile.EmailVerified {
			return nil, false, e.unverifiedEmail(profile)
		}
		created, err = e.users.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, false, e.internal("oauth_account", err)
	}
	return created, true, nil
}

// unverifiedEmail refuses to attach a provider identity to an existing
// account on the strength of an email the provider has not verified.
func (e *Engine) unverifiedEmail(profile *oauth.Profile) error {
	e.logger.Debug().Str("provider", profile.Provider).Msg("provider email unverified; not linking by email")
	return ActionForbidden("the provider has not verified this email address")
}

func (e *Engine) providerError(op string, err error) error {
	var xe *oauth.ExchangeError
	if errors.As(err, &xe) {
		return InvalidOAuthCallbackCode(xe.Status, xe.Body)
	}
	if errors.Is(err, oauth.ErrNetwork) || errors.Is(err, oauth.ErrProfile) {
		e.logger.Warn().Err(err).Str("op", op).Msg("oauth provider failure")
		return NetworkError(err)
	}
	return e.internal(op, err)
}

func scopeOf(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}
