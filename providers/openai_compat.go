package providers

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompatAdapter serves every provider that speaks the OpenAI chat
// completions protocol (Cerebras, Groq, OpenRouter). The vendor is selected
// purely by base URL and API key.
type OpenAICompatAdapter struct {
	name   string
	model  string
	client openai.Client
}

// NewOpenAICompat creates an adapter for an OpenAI-compatible provider.
// baseURL must be the provider's API root including any /v1 segment.
func NewOpenAICompat(name, apiKey, baseURL, model string) *OpenAICompatAdapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompatAdapter{
		name:   name,
		model:  model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the provider key this adapter was built for.
func (a *OpenAICompatAdapter) Name() string { return a.name }

// Model returns the model this adapter sends requests for.
func (a *OpenAICompatAdapter) Model() string { return a.model }

// Chat sends a streaming chat completion request and yields the text
// fragment of each delta, including empty fragments.
func (a *OpenAICompatAdapter) Chat(ctx context.Context, messages []ChatMessage) (<-chan Chunk, error) {
	params := openai.ChatCompletionNewParams{
		Messages: buildSDKMessages(messages),
		Model:    a.model,
	}

	stream := a.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()
		for stream.Next() {
			chunk := stream.Current()
			for _, c := range chunk.Choices {
				select {
				case ch <- Chunk{Text: c.Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case ch <- Chunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// buildSDKMessages converts gateway messages to the openai-go union type.
func buildSDKMessages(msgs []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
