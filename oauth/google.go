package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfo = "https://openidconnect.googleapis.com/v1/userinfo"

// Google authenticates users with Google's OpenID Connect endpoints.
type Google struct {
	base
	userInfoURL string
}

var _ Provider = (*Google)(nil)

// NewGoogle returns a Google provider. APIURL, when set, replaces the
// userinfo endpoint.
func NewGoogle(cfg ProviderConfig) *Google {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	return &Google{
		base: base{
			name:   "google",
			client: cfg.HTTPClient,
			config: oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Scopes:       scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:   pick(cfg.AuthURL, endpoints.Google.AuthURL),
					TokenURL:  pick(cfg.TokenURL, endpoints.Google.TokenURL),
					AuthStyle: oauth2.AuthStyleInParams,
				},
			},
		},
		userInfoURL: pick(cfg.APIURL, googleUserInfo),
	}
}

// AuthCodeURL asks for offline access so a refresh token is returned, and
// always shows the account chooser.
func (g *Google) AuthCodeURL(state, redirectURI string) string {
	return g.withRedirect(redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Profile fetches the userinfo endpoint with token.
func (g *Google) Profile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var u googleUser
	if err := g.getJSON(ctx, token, g.userInfoURL, nil, &u); err != nil {
		return nil, err
	}
	if u.Sub == "" || u.Email == "" {
		return nil, fmt.Errorf("%w: google subject or email missing", ErrProfile)
	}
	return &Profile{
		Provider:          g.name,
		ProviderAccountID: u.Sub,
		Email:             u.Email,
		EmailVerified:     u.EmailVerified,
		Name:              u.Name,
		AvatarURL:         u.Picture,
	}, nil
}
