// Package transform converts between client wire formats and the internal
// chunk stream. Two dialects are supported: OpenAI chat completions and
// Anthropic messages, each in streaming SSE and collected JSON form.
package transform

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aicarousel/aicarousel/providers"
)

// OpenAIRequest is the inbound /v1/chat/completions body. Sampling
// parameters are accepted for protocol conformance and ignored; model
// routing comes from configuration, not the request.
type OpenAIRequest struct {
	Model       string                  `json:"model"`
	Messages    []providers.ChatMessage `json:"messages"`
	Stream      *bool                   `json:"stream,omitempty"`
	Temperature *float64                `json:"temperature,omitempty"`
	TopP        *float64                `json:"top_p,omitempty"`
	MaxTokens   *int                    `json:"max_tokens,omitempty"`
}

// WantsStream reports whether the response should stream. Streaming is the
// default; only an explicit false disables it.
func (r *OpenAIRequest) WantsStream() bool {
	return r.Stream == nil || *r.Stream
}

// AnthropicRequest is the inbound /v1/messages body. max_tokens is
// required on the wire but never forwarded upstream.
type AnthropicRequest struct {
	Model     string                  `json:"model"`
	Messages  []providers.ChatMessage `json:"messages"`
	System    json.RawMessage         `json:"system,omitempty"`
	MaxTokens *int                    `json:"max_tokens"`
	Stream    bool                    `json:"stream,omitempty"`
}

// ToMessages normalizes the request into the internal message list. A
// top-level system field, whether a plain string or text-block list, is
// prepended as a system message.
func (r *AnthropicRequest) ToMessages() ([]providers.ChatMessage, error) {
	out := make([]providers.ChatMessage, 0, len(r.Messages)+1)
	if len(r.System) > 0 && string(r.System) != "null" {
		text, err := normalizeContent(r.System)
		if err != nil {
			return nil, fmt.Errorf("invalid system field: %w", err)
		}
		out = append(out, providers.ChatMessage{Role: providers.RoleSystem, Content: text})
	}
	return append(out, r.Messages...), nil
}

// normalizeContent accepts a string or a list of content blocks and
// returns the joined text of the text-typed blocks.
func normalizeContent(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", err
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// EstimateTokens is the 4-characters-per-token estimate used everywhere
// token counts appear. Clients see these numbers; do not refine without
// changing the count_tokens endpoint to match.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// newID returns prefix plus 24 hex characters, the shape both dialects
// use for completion and message IDs.
func newID(prefix string) string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return prefix + hex.EncodeToString(b)
}
