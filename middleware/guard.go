package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/authkit"
)

const msgAdminRequired = "administrator privileges required"

// RequireSession rejects requests whose client is anonymous or whose
// session was superseded. A stale client is logged out as a side effect.
func RequireSession(engine *authkit.Engine) func(http.Handler) http.Handler {
	return guard(engine, false)
}

// RequireAdmin behaves like [RequireSession] and also requires an
// administrator account.
func RequireAdmin(engine *authkit.Engine) func(http.Handler) http.Handler {
	return guard(engine, true)
}

func guard(engine *authkit.Engine, admin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, ok := ClientFromContext(r.Context())
			if engine == nil || !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.CheckAuthentication(r.Context(), client)
			if err != nil {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			if res.Failed() {
				WriteResult(w, res)
				return
			}
			if admin && !client.IsAdmin() {
				WriteResult(w, authkit.NewResult().Fail(authkit.CodeForbidden, msgAdminRequired))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteResult writes res as JSON with its code as the HTTP status.
func WriteResult(w http.ResponseWriter, res *authkit.Result) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(res.Code)
	_ = json.NewEncoder(w).Encode(res)
}
