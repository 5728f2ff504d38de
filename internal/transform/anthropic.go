package transform

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aicarousel/aicarousel/providers"
)

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AnthropicMessage is the Message envelope used both in message_start and
// as the non-streaming response body.
type AnthropicMessage struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Model        string                  `json:"model"`
	Content      []anthropicContentBlock `json:"content"`
	StopReason   *string                 `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        anthropicUsage          `json:"usage"`
}

// AnthropicError is the Anthropic-dialect error envelope.
type AnthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteAnthropicStream drains the chunk channel as the fixed Anthropic
// event sequence: message_start, content_block_start, one
// content_block_delta per non-empty chunk, then content_block_stop,
// message_delta, message_stop. Output tokens accumulate per delta using
// the character estimate. A mid-stream upstream error closes the sequence
// normally and is returned for logging.
func WriteAnthropicStream(w http.ResponseWriter, model string, stream <-chan providers.Chunk) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	id := newID("msg_")

	writeAnthropicEvent(w, flusher, "message_start", map[string]interface{}{
		"type": "message_start",
		"message": AnthropicMessage{
			ID:      id,
			Type:    "message",
			Role:    "assistant",
			Model:   model,
			Content: []anthropicContentBlock{},
		},
	})
	writeAnthropicEvent(w, flusher, "content_block_start", map[string]interface{}{
		"type":          "content_block_start",
		"index":         0,
		"content_block": anthropicContentBlock{Type: "text", Text: ""},
	})

	var (
		streamErr    error
		outputTokens int
	)
	for c := range stream {
		if c.Err != nil {
			streamErr = c.Err
			break
		}
		if c.Text == "" {
			continue
		}
		outputTokens += EstimateTokens(c.Text)
		writeAnthropicEvent(w, flusher, "content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]string{"type": "text_delta", "text": c.Text},
		})
	}

	writeAnthropicEvent(w, flusher, "content_block_stop", map[string]interface{}{
		"type":  "content_block_stop",
		"index": 0,
	})
	writeAnthropicEvent(w, flusher, "message_delta", map[string]interface{}{
		"type":  "message_delta",
		"delta": map[string]interface{}{"stop_reason": "end_turn", "stop_sequence": nil},
		"usage": map[string]int{"output_tokens": outputTokens},
	})
	writeAnthropicEvent(w, flusher, "message_stop", map[string]interface{}{
		"type": "message_stop",
	})
	return streamErr
}

func writeAnthropicEvent(w http.ResponseWriter, flusher http.Flusher, name string, payload interface{}) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	if flusher != nil {
		flusher.Flush()
	}
}

// CollectAnthropic drains the stream into a single Message object.
func CollectAnthropic(model string, stream <-chan providers.Chunk) (*AnthropicMessage, error) {
	var content string
	for c := range stream {
		if c.Err != nil {
			return nil, c.Err
		}
		content += c.Text
	}

	stop := "end_turn"
	return &AnthropicMessage{
		ID:         newID("msg_"),
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		Content:    []anthropicContentBlock{{Type: "text", Text: content}},
		StopReason: &stop,
		Usage:      anthropicUsage{OutputTokens: EstimateTokens(content)},
	}, nil
}

// WriteAnthropicError writes the Anthropic-dialect error body with the
// given HTTP status.
func WriteAnthropicError(w http.ResponseWriter, status int, errType, message string) {
	body := AnthropicError{Type: "error"}
	body.Error.Type = errType
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
