package oauth

import (
	"errors"
	"net/url"
	"strings"
)

// ErrRedirectNotAllowed is returned for redirect URIs outside the allowlist.
var ErrRedirectNotAllowed = errors.New("oauth: redirect uri not allowed")

// CheckRedirectURI parses raw and, when allowedHosts is non-empty, requires
// its host to match one entry exactly or as a subdomain of a ".example.com"
// entry. Only absolute http(s) URIs are accepted.
func CheckRedirectURI(raw string, allowedHosts []string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") || u.User != nil {
		return nil, ErrRedirectNotAllowed
	}
	if len(allowedHosts) == 0 {
		return u, nil
	}

	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		switch {
		case allowed == "":
		case strings.HasPrefix(allowed, "."):
			if strings.HasSuffix(host, allowed) || host == allowed[1:] {
				return u, nil
			}
		case host == allowed:
			return u, nil
		}
	}
	return nil, ErrRedirectNotAllowed
}
