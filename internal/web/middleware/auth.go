package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/sievert/ingreso/internal/config"
	"github.com/sievert/ingreso/internal/logging"
)

// APIKeyHeader carries the key of a calling integration.
const APIKeyHeader = "X-API-Key"

type authError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// APIKeyAuth rejects requests without a configured X-API-Key when
// RequireAPIKey is set. With no keys configured every request fails.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			log := logging.FromContext(r.Context())
			key := r.Header.Get(APIKeyHeader)
			switch {
			case key == "":
				log.Warn("auth: missing API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				denyAuth(w, http.StatusUnauthorized, "AUTH001", "Falta la llave de acceso")
			case !isValidAPIKey(key, cfg.APIKeys):
				log.Warn("auth: invalid API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				denyAuth(w, http.StatusForbidden, "AUTH002", "Llave de acceso inválida")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func denyAuth(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authError{Error: msg, Message: msg, Code: code})
}

// isValidAPIKey compares key against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, k := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return valid == 1
}
