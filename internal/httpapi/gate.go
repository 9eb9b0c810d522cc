package httpapi

import (
	"net/http"

	"oitm.org/internal/auth"
	"oitm.org/internal/obs"
	"oitm.org/internal/session"
)

// authGate is stage one of the chain. It verifies the token cookie, keeps
// the user cookie in step with it and redirects to login when the two
// disagree. Nothing downstream runs after a redirect.
func (a *API) authGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := a.cookies.Read(r, session.TokenCookie); ok {
			id, err := a.verifier.Verify(token)
			if err != nil {
				a.cookies.Clear(w, session.TokenCookie)
				a.cookies.Clear(w, session.UserCookie)
				obs.ObserveGate(obs.GateInvalidToken)
				a.redirectToLogin(w, r)
				return
			}

			a.cookies.SetIdentity(w, id.LoginName)
			obs.ObserveGate(obs.GateAuthenticated)

			ctx := auth.ContextWithIdentity(r.Context(), id)
			ctx = auth.ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// A user cookie must never outlive its token.
		if _, ok := a.cookies.Read(r, session.UserCookie); ok {
			a.cookies.Clear(w, session.UserCookie)
			obs.ObserveGate(obs.GateOrphanUser)
			a.redirectToLogin(w, r)
			return
		}

		obs.ObserveGate(obs.GateAnonymous)
		next.ServeHTTP(w, r)
	})
}

func (a *API) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, a.loginPath, http.StatusFound)
}
