package middleware

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"
)

// APIKey guards a route group with a static key. Clients send it as
// "Authorization: Bearer <key>", "X-API-Key" or "API-Key". Only a bcrypt hash
// of the configured key is kept in memory.
func APIKey(key string) (func(http.Handler) http.Handler, error) {
	var hash []byte
	if key != "" {
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost); err != nil {
			return nil, err
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := extractAPIKey(r)
			switch {
			case provided == "":
				writeAuthError(w, http.StatusUnauthorized, "API key is required")
				return
			case hash == nil:
				writeAuthError(w, http.StatusInternalServerError, "API key not configured on server")
				return
			case bcrypt.CompareHashAndPassword(hash, []byte(provided)) != nil:
				writeAuthError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func extractAPIKey(r *http.Request) string {
	if token := parseBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get("API-Key"))
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
