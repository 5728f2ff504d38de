package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// bedrockMaxTokens is the output cap sent with every Bedrock request. The
// gateway does not forward client token limits, so a fixed ceiling is used.
const bedrockMaxTokens = 4096

// BedrockAdapter streams Anthropic Claude models through the AWS Bedrock
// runtime. Authentication is AWS SigV4 via the default credential chain, not
// an API key; the provider is considered reachable when a region is set.
type BedrockAdapter struct {
	client *bedrockruntime.Client
	model  string
}

// NewBedrock creates a Bedrock adapter for the given region and model.
// region defaults to us-east-1.
func NewBedrock(ctx context.Context, region, model string) (*BedrockAdapter, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &BedrockAdapter{
		client: bedrockruntime.NewFromConfig(cfg),
		model:  model,
	}, nil
}

type bedrockClaudeRequest struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Messages         []ChatMessage `json:"messages"`
	System           string        `json:"system,omitempty"`
}

// Chat sends a streaming InvokeModel request and yields text deltas.
func (a *BedrockAdapter) Chat(ctx context.Context, messages []ChatMessage) (<-chan Chunk, error) {
	if !strings.HasPrefix(a.model, "anthropic.") {
		return nil, fmt.Errorf("bedrock streaming supports anthropic.* models only, got %s", a.model)
	}

	// Bedrock's Claude API carries the system prompt out of band.
	var system string
	var turns []ChatMessage
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += msg.Content
			continue
		}
		turns = append(turns, msg)
	}

	body, err := json.Marshal(bedrockClaudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        bedrockMaxTokens,
		Messages:         turns,
		System:           system,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := a.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(a.model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock streaming invoke failed: %w", err)
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		stream := output.GetStream()
		defer func() { _ = stream.Close() }()

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}
			var delta struct {
				Type  string `json:"type"`
				Delta struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"delta"`
			}
			if err := json.Unmarshal(chunk.Value.Bytes, &delta); err != nil {
				continue
			}
			if delta.Type != "content_block_delta" || delta.Delta.Type != "text_delta" {
				continue
			}
			select {
			case ch <- Chunk{Text: delta.Delta.Text}:
			case <-ctx.Done():
				return
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
