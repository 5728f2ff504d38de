// Package auth guards protected routes with API keys from the credential
// store. Error bodies match the dialect of the route being called so SDK
// clients can parse them.
package auth

import (
	"net/http"
	"strings"

	"github.com/aicarousel/aicarousel/internal/store"
	"github.com/aicarousel/aicarousel/internal/transform"
)

// KeyValidator is the slice of the credential store the middleware needs.
type KeyValidator interface {
	ValidateKey(presented string) (*store.APIKeyRecord, bool)
}

// publicPath reports whether a path is served without authentication.
func publicPath(path string) bool {
	switch path {
	case "/health", "/v1/models", "/metrics":
		return true
	}
	return strings.HasPrefix(path, "/v1/models/")
}

// extractKey pulls the presented API key from the request. The Bearer
// header wins over x-api-key when both are set.
func extractKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("x-api-key"))
}

// Middleware returns a handler wrapper enforcing API-key auth on every
// non-public path. OPTIONS preflights pass through for CORS.
func Middleware(keys KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			presented := extractKey(r)
			if presented == "" {
				writeUnauthorized(w, r, "Missing API key")
				return
			}
			if _, ok := keys.ValidateKey(presented); !ok {
				writeUnauthorized(w, r, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized picks the error dialect by route: Anthropic style for
// the messages endpoints, OpenAI style everywhere else.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	if strings.HasPrefix(r.URL.Path, "/v1/messages") {
		transform.WriteAnthropicError(w, http.StatusUnauthorized, "authentication_error", message)
		return
	}
	transform.WriteOpenAIError(w, http.StatusUnauthorized, message, "invalid_request_error", "invalid_api_key")
}
