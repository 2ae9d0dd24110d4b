package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const githubAPI = "https://api.github.com"

// GitHub authenticates users with GitHub OAuth apps.
type GitHub struct {
	base
	apiURL string
}

var _ Provider = (*GitHub)(nil)

// NewGitHub returns a GitHub provider requesting read:user and user:email
// unless cfg.Scopes says otherwise.
func NewGitHub(cfg ProviderConfig) *GitHub {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}
	return &GitHub{
		base: base{
			name:   "github",
			client: cfg.HTTPClient,
			config: oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Scopes:       scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:  pick(cfg.AuthURL, endpoints.GitHub.AuthURL),
					TokenURL: pick(cfg.TokenURL, endpoints.GitHub.TokenURL),
				},
			},
		},
		apiURL: strings.TrimRight(pick(cfg.APIURL, githubAPI), "/"),
	}
}

// AuthCodeURL returns the GitHub authorize URL for state.
func (g *GitHub) AuthCodeURL(state, redirectURI string) string {
	return g.withRedirect(redirectURI).AuthCodeURL(state)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

var githubHeader = http.Header{
	"Accept":               {"application/vnd.github+json"},
	"X-Github-Api-Version": {"2022-11-28"},
}

// Profile reads /user and, when the public email is hidden, the primary
// verified address from /user/emails.
func (g *GitHub) Profile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var u githubUser
	if err := g.getJSON(ctx, token, g.apiURL+"/user", githubHeader, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("%w: github user id missing", ErrProfile)
	}

	p := &Profile{
		Provider:          g.name,
		ProviderAccountID: strconv.FormatInt(u.ID, 10),
		Email:             u.Email,
		EmailVerified:     u.Email != "",
		Name:              u.Name,
		AvatarURL:         u.AvatarURL,
	}
	if p.Name == "" {
		p.Name = u.Login
	}

	if p.Email == "" {
		var emails []githubEmail
		if err := g.getJSON(ctx, token, g.apiURL+"/user/emails", githubHeader, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				p.Email = e.Email
				p.EmailVerified = true
				break
			}
		}
	}
	if p.Email == "" {
		return nil, fmt.Errorf("%w: github account has no verified primary email", ErrProfile)
	}
	return p, nil
}
