package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/session"
)

type bearerContextKey struct{}

// BearerFromContext returns the payload [RequireBearer] verified.
func BearerFromContext(ctx context.Context) (*authcore.BearerPayload, bool) {
	p, ok := ctx.Value(bearerContextKey{}).(*authcore.BearerPayload)
	return p, ok
}

// RequireBearer verifies the Authorization bearer token and injects its
// payload into the request context. Missing and invalid tokens get 401.
func RequireBearer(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, authcore.AuthenticationRequired())
				return
			}

			token, ok := session.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, authcore.AuthenticationRequired())
				return
			}

			payload, err := engine.ValidateBearerToken(token)
			if err != nil {
				writeError(w, authcore.AuthenticationRequired())
				return
			}

			ctx := context.WithValue(r.Context(), bearerContextKey{}, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
