package transform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aicarousel/aicarousel/providers"
)

type openAIChunkDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

type openAIChunkChoice struct {
	Index        int              `json:"index"`
	Delta        openAIChunkDelta `json:"delta"`
	FinishReason *string          `json:"finish_reason"`
}

type openAIChunk struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []openAIChunkChoice `json:"choices"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAICompletionChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAICompletion is the non-streaming /v1/chat/completions response.
type OpenAICompletion struct {
	ID      string                   `json:"id"`
	Object  string                   `json:"object"`
	Created int64                    `json:"created"`
	Model   string                   `json:"model"`
	Choices []openAICompletionChoice `json:"choices"`
	Usage   openAIUsage              `json:"usage"`
}

// OpenAIError is the OpenAI-dialect error envelope.
type OpenAIError struct {
	Error struct {
		Message string  `json:"message"`
		Type    string  `json:"type"`
		Param   *string `json:"param"`
		Code    string  `json:"code"`
	} `json:"error"`
}

// WriteOpenAIStream drains the chunk channel as OpenAI SSE frames. The
// first delta carries the assistant role; the closing frame has an empty
// delta with finish_reason "stop", followed by the [DONE] sentinel. A
// mid-stream upstream error ends the stream with the same terminators and
// is returned for logging; the client always sees a well-formed stream.
func WriteOpenAIStream(w http.ResponseWriter, model string, stream <-chan providers.Chunk) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	id := newID("chatcmpl-")
	created := time.Now().Unix()

	var streamErr error
	first := true
	for c := range stream {
		if c.Err != nil {
			streamErr = c.Err
			break
		}
		delta := openAIChunkDelta{Content: &c.Text}
		if first {
			delta.Role = "assistant"
			first = false
		}
		writeOpenAIFrame(w, flusher, openAIChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []openAIChunkChoice{{Delta: delta}},
		})
	}

	stop := "stop"
	writeOpenAIFrame(w, flusher, openAIChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []openAIChunkChoice{{Delta: openAIChunkDelta{}, FinishReason: &stop}},
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
	return streamErr
}

func writeOpenAIFrame(w http.ResponseWriter, flusher http.Flusher, chunk openAIChunk) {
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if flusher != nil {
		flusher.Flush()
	}
}

// CollectOpenAI drains the stream into a single completion object. Token
// usage is the running character estimate with zero prompt tokens.
func CollectOpenAI(model string, stream <-chan providers.Chunk) (*OpenAICompletion, error) {
	var content string
	for c := range stream {
		if c.Err != nil {
			return nil, c.Err
		}
		content += c.Text
	}

	tokens := EstimateTokens(content)
	return &OpenAICompletion{
		ID:      newID("chatcmpl-"),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openAICompletionChoice{{
			Message:      openAIMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: openAIUsage{CompletionTokens: tokens, TotalTokens: tokens},
	}, nil
}

// WriteOpenAIError writes the OpenAI-dialect error body with the given
// HTTP status.
func WriteOpenAIError(w http.ResponseWriter, status int, message, errType, code string) {
	var body OpenAIError
	body.Error.Message = message
	body.Error.Type = errType
	body.Error.Code = code

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
