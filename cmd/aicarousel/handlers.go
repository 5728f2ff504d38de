package main

import (
	"encoding/json"
	"errors"
	"net/http"

	aicarousel "github.com/aicarousel/aicarousel"
	"github.com/aicarousel/aicarousel/internal/logging"
	"github.com/aicarousel/aicarousel/internal/metrics"
	"github.com/aicarousel/aicarousel/internal/transform"
	"github.com/aicarousel/aicarousel/providers"
)

// dispatchErrorStatus maps dispatch failures to HTTP status codes. Both
// "nothing configured" and "everything failed" are 503s; the message
// carries the last upstream error for the client.
func dispatchErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, aicarousel.ErrNoProviders):
		return http.StatusServiceUnavailable, "No AI providers configured"
	case errors.Is(err, aicarousel.ErrAllFailed):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

// chatCompletionsHandler serves POST /v1/chat/completions in the OpenAI
// dialect. Responses stream unless the request sets stream to false.
func chatCompletionsHandler(dispatcher *aicarousel.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transform.OpenAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			transform.WriteOpenAIError(w, http.StatusBadRequest,
				"Invalid request body: "+err.Error(), "invalid_request_error", "invalid_request")
			return
		}
		if len(req.Messages) == 0 {
			transform.WriteOpenAIError(w, http.StatusBadRequest,
				"messages is required", "invalid_request_error", "invalid_request")
			return
		}

		result, err := dispatcher.Dispatch(r.Context(), req.Messages)
		if err != nil {
			status, msg := dispatchErrorStatus(err)
			transform.WriteOpenAIError(w, status, msg, "server_error", "provider_error")
			return
		}
		log := logging.FromContext(r.Context()).With(
			"provider", result.ProviderKey, "model", result.Model)

		if req.WantsStream() {
			if err := transform.WriteOpenAIStream(w, "aicarousel", result.Stream); err != nil {
				log.Warn("upstream stream ended with error", "error", err.Error())
			}
			return
		}

		completion, err := transform.CollectOpenAI("aicarousel", result.Stream)
		if err != nil {
			log.Warn("collecting upstream stream", "error", err.Error())
			transform.WriteOpenAIError(w, http.StatusServiceUnavailable,
				err.Error(), "server_error", "provider_error")
			return
		}
		metrics.TokensOutput.WithLabelValues(result.ProviderKey, result.Model).
			Add(float64(completion.Usage.CompletionTokens))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion)
	}
}

// messagesHandler serves POST /v1/messages in the Anthropic dialect.
// max_tokens is required on the wire but not forwarded upstream.
func messagesHandler(dispatcher *aicarousel.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transform.AnthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			transform.WriteAnthropicError(w, http.StatusBadRequest,
				"invalid_request_error", "Invalid request body: "+err.Error())
			return
		}
		if req.MaxTokens == nil {
			transform.WriteAnthropicError(w, http.StatusBadRequest,
				"invalid_request_error", "max_tokens is required")
			return
		}
		messages, err := req.ToMessages()
		if err != nil {
			transform.WriteAnthropicError(w, http.StatusBadRequest,
				"invalid_request_error", err.Error())
			return
		}
		if len(messages) == 0 {
			transform.WriteAnthropicError(w, http.StatusBadRequest,
				"invalid_request_error", "messages is required")
			return
		}

		result, err := dispatcher.Dispatch(r.Context(), messages)
		if err != nil {
			status, msg := dispatchErrorStatus(err)
			transform.WriteAnthropicError(w, status, "api_error", msg)
			return
		}
		log := logging.FromContext(r.Context()).With(
			"provider", result.ProviderKey, "model", result.Model)

		if req.Stream {
			if err := transform.WriteAnthropicStream(w, "aicarousel", result.Stream); err != nil {
				log.Warn("upstream stream ended with error", "error", err.Error())
			}
			return
		}

		msg, err := transform.CollectAnthropic("aicarousel", result.Stream)
		if err != nil {
			log.Warn("collecting upstream stream", "error", err.Error())
			transform.WriteAnthropicError(w, http.StatusServiceUnavailable,
				"api_error", err.Error())
			return
		}
		metrics.TokensOutput.WithLabelValues(result.ProviderKey, result.Model).
			Add(float64(msg.Usage.OutputTokens))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(msg)
	}
}

// countTokensHandler serves POST /v1/messages/count_tokens with the same
// 4-characters-per-token estimate the response usage blocks use.
func countTokensHandler(w http.ResponseWriter, r *http.Request) {
	var req transform.AnthropicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transform.WriteAnthropicError(w, http.StatusBadRequest,
			"invalid_request_error", "Invalid request body: "+err.Error())
		return
	}
	messages, err := req.ToMessages()
	if err != nil {
		transform.WriteAnthropicError(w, http.StatusBadRequest,
			"invalid_request_error", err.Error())
		return
	}

	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"input_tokens": (total + 3) / 4,
	})
}

// rawChatHandler serves POST /chat: a bare message array in, the raw chunk
// stream out with no SSE framing beyond the event-stream content type.
func rawChatHandler(dispatcher *aicarousel.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var messages []providers.ChatMessage
		if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
			transform.WriteOpenAIError(w, http.StatusBadRequest,
				"Invalid request body: "+err.Error(), "invalid_request_error", "invalid_request")
			return
		}
		if len(messages) == 0 {
			transform.WriteOpenAIError(w, http.StatusBadRequest,
				"messages is required", "invalid_request_error", "invalid_request")
			return
		}

		result, err := dispatcher.Dispatch(r.Context(), messages)
		if err != nil {
			status, msg := dispatchErrorStatus(err)
			transform.WriteOpenAIError(w, status, msg, "server_error", "provider_error")
			return
		}
		log := logging.FromContext(r.Context()).With(
			"provider", result.ProviderKey, "model", result.Model)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher, _ := w.(http.Flusher)
		for c := range result.Stream {
			if c.Err != nil {
				log.Warn("upstream stream ended with error", "error", c.Err.Error())
				break
			}
			_, _ = w.Write([]byte(c.Text))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
