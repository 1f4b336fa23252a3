package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the given origins. A "*" entry allows any origin, in which
// case credentials are not allowed.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins, wildcard = []string{"*"}, true
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Locale"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}
