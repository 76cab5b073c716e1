package server

import (
	"encoding/json"
	"net/http"

	"github.com/groqtales/groqtales-server/internal/auth"
)

// AuthMiddleware requires a valid Bearer API key.
// If the authenticator is nil, the middleware is a no-op.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil {
				AddError(r.Context(), err)
				unauthorized(w, err.Error())
				return
			}

			if err := authenticator.ValidateAPIKey(apiKey); err != nil {
				AddError(r.Context(), err)
				unauthorized(w, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
}
