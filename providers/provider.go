// Package providers defines the Adapter contract and the table of upstream
// LLM providers the gateway knows how to reach.
//
// An Adapter hides one vendor SDK or wire protocol behind a single shape:
// given a conversation, it returns a lazy stream of text fragments. The
// stream is a channel of Chunk values; channel close signals end of stream,
// and a Chunk with a non-nil Err signals a mid-stream failure.
package providers

import (
	"context"
	"encoding/json"
)

// Message role constants shared across adapters.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// SSEDone is the sentinel that marks the end of an OpenAI-style SSE stream.
	SSEDone = "[DONE]"
)

// ChatMessage is a single turn in a conversation. Content may be empty but
// is never absent after parse.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts content as either a plain string or an array of
// {type:"text", text:...} blocks; only text blocks are kept, joined by
// newlines. Non-text blocks (images, tool use) are ignored.
func (m *ChatMessage) UnmarshalJSON(b []byte) error {
	type wire struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	m.Role = w.Role
	m.Content = ""

	if len(w.Content) == 0 || string(w.Content) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(w.Content, &s); err == nil {
		m.Content = s
		return nil
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(w.Content, &blocks); err != nil {
		return err
	}
	for _, blk := range blocks {
		if blk.Type != "text" {
			continue
		}
		if m.Content != "" {
			m.Content += "\n"
		}
		m.Content += blk.Text
	}
	return nil
}

// Chunk is one element of an adapter's response stream. Text may be the
// empty string (keep-alive or no-content deltas are legal upstream).
type Chunk struct {
	Text string
	Err  error
}

// Adapter streams a chat completion for one (provider, model) pair.
//
// Chat may fail synchronously (bad request, connection refused) by returning
// an error. Asynchronous failures arrive as a Chunk with Err set, after which
// the channel is closed. Cancelling ctx tears down the upstream connection
// and closes the channel promptly.
type Adapter interface {
	Chat(ctx context.Context, messages []ChatMessage) (<-chan Chunk, error)
}

// Kind selects which adapter variant serves a provider.
type Kind string

// Adapter variants known at build time.
const (
	KindOpenAICompat Kind = "openai-compat"
	KindGemini       Kind = "gemini"
	KindLocal        Kind = "local"
	KindBedrock      Kind = "bedrock"
)

// Descriptor describes one upstream provider known at build time. The set of
// descriptors is fixed for the process lifetime; whether a provider is active
// for a given request is decided elsewhere (env key, enable flag, models).
type Descriptor struct {
	// Key is the short stable identifier ("cerebras").
	Key string
	// Name is the human-readable service name reported to clients.
	Name string
	// APIKeyEnv is the environment variable holding the provider's API key
	// material. For the local adapter it holds the base URL; for bedrock it
	// holds the AWS region. In every case a non-empty value means "reachable".
	APIKeyEnv string
	// BaseURL is the API root for OpenAI-compatible providers.
	BaseURL string
	Kind    Kind
}

// known lists every provider the gateway can dispatch to, in registration
// order. Order matters: it breaks priority ties for providers that have no
// stored setting.
var known = []Descriptor{
	{Key: "cerebras", Name: "Cerebras", APIKeyEnv: "CEREBRAS_API_KEY", BaseURL: "https://api.cerebras.ai/v1", Kind: KindOpenAICompat},
	{Key: "groq", Name: "Groq", APIKeyEnv: "GROQ_API_KEY", BaseURL: "https://api.groq.com/openai/v1", Kind: KindOpenAICompat},
	{Key: "openrouter", Name: "OpenRouter", APIKeyEnv: "OPENROUTER_API_KEY", BaseURL: "https://openrouter.ai/api/v1", Kind: KindOpenAICompat},
	{Key: "gemini", Name: "Google Gemini", APIKeyEnv: "GEMINI_API_KEY", BaseURL: "https://generativelanguage.googleapis.com", Kind: KindGemini},
	{Key: "local", Name: "Local LLM", APIKeyEnv: "LOCAL_LLM_URL", Kind: KindLocal},
	{Key: "bedrock", Name: "AWS Bedrock", APIKeyEnv: "BEDROCK_AWS_REGION", Kind: KindBedrock},
}

// Known returns the build-time provider table in stable order.
func Known() []Descriptor {
	out := make([]Descriptor, len(known))
	copy(out, known)
	return out
}

// Lookup returns the descriptor for key and whether it exists.
func Lookup(key string) (Descriptor, bool) {
	for _, d := range known {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}
