package httpapi

import (
	"context"
	"net/http"

	"oitm.org/internal/action"
	"oitm.org/internal/audit"
	"oitm.org/internal/auth"
	"oitm.org/internal/obs"
	"oitm.org/internal/session"
)

// replay is stage two. A redirect_action cookie is consumed on the first
// request that sees it outside the login page: it is dispatched at most
// once and cleared whatever the outcome.
func (a *API) replay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoded, ok := a.cookies.Read(r, session.ActionCookie)
		if !ok || r.URL.Path == a.loginPath {
			next.ServeHTTP(w, r)
			return
		}

		token, authed := auth.TokenFromContext(r.Context())
		switch rec, err := action.Decode(encoded); {
		case !authed:
			obs.ObserveReplay(obs.ReplayNoAuth)
		case err != nil:
			obs.ObserveReplay(obs.ReplayMalformed)
			obs.Warn("replay_discarded", map[string]any{
				"request_id": audit.RequestIDFromContext(r.Context()),
				"reason":     err.Error(),
			})
		default:
			a.dispatch(r.Context(), token, rec)
		}

		a.cookies.Clear(w, session.ActionCookie)
		next.ServeHTTP(w, r)
	})
}

func (a *API) dispatch(ctx context.Context, token string, rec action.Record) {
	fields := map[string]any{"action": action.Encode(rec)}

	if err := a.backend.Perform(ctx, token, rec); err != nil {
		obs.ObserveReplay(obs.ReplayFailed)
		obs.Warn("replay_failed", map[string]any{
			"request_id": audit.RequestIDFromContext(ctx),
			"action":     action.Encode(rec),
			"error":      err.Error(),
		})
		fields["error"] = err.Error()
		_ = audit.LogEvent(ctx, "replay.failed", fields)
		return
	}

	obs.ObserveReplay(obs.ReplaySuccess)
	_ = audit.LogEvent(ctx, "replay.dispatched", fields)
}
