package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/session"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity [Session] resolved. ok is false
// when the middleware did not run.
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(session.Identity)
	return id, ok
}

// Session resolves the request's session with
// [authcore.Engine.GetUserSessionFromRequest], sets the returned cookies on
// the response and stores the current identity in the request context.
// A request without a live session continues with an anonymous identity
// that keeps no session id.
func Session(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, authcore.InternalServerError(nil))
				return
			}

			sessions, cookies, err := engine.GetUserSessionFromRequest(r.Context(), r)
			if err != nil {
				writeError(w, err)
				return
			}
			for _, c := range cookies {
				http.SetCookie(w, c)
			}

			var id session.Identity
			if len(sessions) > 0 {
				id = session.Identity{SessionID: sessions[0].SessionID, UserID: sessions[0].UserID}
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser answers 401 unless [Session] resolved a user. It must be
// installed after Session.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || id.Anonymous() {
			writeError(w, authcore.AuthenticationRequired())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, authcore.PublicMessage(err), authcore.StatusCode(err))
}
