package main

import (
	"encoding/json"
	"net/http"

	aicarousel "github.com/aicarousel/aicarousel"
	"github.com/aicarousel/aicarousel/internal/auth"
	"github.com/aicarousel/aicarousel/internal/logging"
	"github.com/aicarousel/aicarousel/internal/transform"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter builds the HTTP surface over the dispatcher and store.
func newRouter(dispatcher *aicarousel.Dispatcher, keys auth.KeyValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(jsonRecoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(auth.Middleware(keys))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"service": "aicarousel",
		})
	})

	r.Get("/v1/models", modelsHandler)
	r.Get("/v1/models/{id}", modelHandler)

	r.Post("/v1/chat/completions", chatCompletionsHandler(dispatcher))
	r.Post("/v1/messages", messagesHandler(dispatcher))
	r.Post("/v1/messages/count_tokens", countTokensHandler)
	r.Post("/chat", rawChatHandler(dispatcher))

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		transform.WriteOpenAIError(w, http.StatusNotFound,
			"Not found: "+r.URL.Path, "invalid_request_error", "not_found")
	})

	return r
}

// jsonRecoverer converts handler panics into a JSON 500 instead of chi's
// plain-text default.
func jsonRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.FromContext(r.Context()).Error("handler panic",
					"path", r.URL.Path, "panic", rec)
				transform.WriteOpenAIError(w, http.StatusInternalServerError,
					"Internal server error", "server_error", "internal_error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
