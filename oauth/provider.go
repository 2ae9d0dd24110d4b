package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

const maxErrorBody = 1024

var (
	// ErrUnknownProvider is returned when a provider name is not registered.
	ErrUnknownProvider = errors.New("oauth: unknown provider")
	// ErrNetwork is returned when a provider cannot be reached or answers
	// outside the protocol.
	ErrNetwork = errors.New("oauth: provider unavailable")
	// ErrProfile is returned when the provider profile lacks required fields.
	ErrProfile = errors.New("oauth: incomplete provider profile")
)

// ExchangeError is returned when the provider rejects an authorization code.
type ExchangeError struct {
	Status int
	Body   string
}

// Error implements error.
func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oauth: code exchange failed with status %d", e.Status)
}

// Profile is the provider identity returned after a successful exchange.
type Profile struct {
	Provider          string
	ProviderAccountID string
	Email             string
	EmailVerified     bool
	Name              string
	AvatarURL         string
}

// Provider is one OAuth 2.0 identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
	Profile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// ProviderConfig holds the client registration of a provider. The URL fields
// override the public endpoints and are mostly useful in tests.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIURL       string
	HTTPClient   *http.Client
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers providers under their lower-cased names.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces p.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[strings.ToLower(p.Name())] = p
}

// Lookup returns the provider called name.
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// base carries what every x/oauth2 backed provider shares.
type base struct {
	name   string
	config oauth2.Config
	client *http.Client
}

// Name returns the registry name of the provider.
func (b *base) Name() string { return b.name }

func (b *base) withRedirect(redirectURI string) *oauth2.Config {
	cfg := b.config
	cfg.RedirectURL = redirectURI
	return &cfg
}

func (b *base) context(ctx context.Context) context.Context {
	if b.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, b.client)
}

// Exchange trades an authorization code for a token.
func (b *base) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	tok, err := b.withRedirect(redirectURI).Exchange(b.context(ctx), code)
	if err != nil {
		return nil, exchangeError(err)
	}
	return tok, nil
}

func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		body := re.Body
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &ExchangeError{Status: status, Body: string(body)}
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// getJSON issues an authorized GET and decodes a 2xx JSON body into dst.
func (b *base) getJSON(ctx context.Context, token *oauth2.Token, url string, header http.Header, dst any) error {
	ctx = b.context(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := b.config.Client(ctx, token).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s returned %d", ErrNetwork, url, resp.StatusCode)
	}
	if err := decodeJSON(resp.Body, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrNetwork, url, err)
	}
	return nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
