package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"oitm.org/internal/action"
	"oitm.org/internal/audit"
	"oitm.org/internal/auth"
	"oitm.org/internal/backend"
)

// handleAction performs like/copy for a signed-in user. Anonymous users get
// the action parked in redirect_action and are sent to login; the replay
// stage performs it on their first request after signing in.
func (a *API) handleAction(w http.ResponseWriter, r *http.Request) {
	rec, err := action.New(
		action.Verb(chi.URLParam(r, "verb")),
		action.Kind(chi.URLParam(r, "kind")),
		chi.URLParam(r, "id"),
	)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	returnTo := sameOriginPath(r)

	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		a.cookies.SetPendingAction(w, action.Encode(rec))
		a.cookies.SetReturnTo(w, returnTo)
		_ = audit.LogEvent(r.Context(), "action.deferred", map[string]any{
			"action":    action.Encode(rec),
			"return_to": returnTo,
		})
		http.Redirect(w, r, a.loginPath, http.StatusSeeOther)
		return
	}

	if err := a.backend.Perform(r.Context(), token, rec); err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			if se.Code == http.StatusUnauthorized {
				http.Redirect(w, r, a.loginPath, http.StatusSeeOther)
				return
			}
			if target := backend.RedirectFor(se.Code); target != "" {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			writeError(w, r, http.StatusBadGateway, se.Error())
			return
		}
		writeError(w, r, http.StatusBadGateway, "backend unavailable")
		return
	}
	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}

// sameOriginPath returns the Referer path when it points back at this host,
// otherwise "/".
func sameOriginPath(r *http.Request) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	p := u.EscapedPath()
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.ContainsAny(p, ";,\"\\ ") {
		return "/"
	}
	return p
}
