package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Chat roles accepted by the completions endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	maxRequestBytes = 2 << 20   // whole JSON payload
	maxMessageBytes = 512 << 10 // one message's content
)

var (
	// ErrContentFiltered reports a prompt or answer blocked by the
	// deployment's content filter.
	ErrContentFiltered = errors.New("llm: content filtered")
	ErrNoChoices       = errors.New("llm: no choices returned")
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one non-streaming completion. The model is fixed by the
// deployment, so there is no model field.
type ChatRequest struct {
	Messages    []ChatMessage
	Temperature float32
	TopP        float32
	MaxTokens   int
	Stop        []string
}

// UserPrompt builds a single-message request.
func UserPrompt(prompt string) *ChatRequest {
	return &ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: prompt}}}
}

// Validate checks roles, sampling ranges and per-message size.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
		if m.Content == "" && m.Role != RoleSystem {
			return fmt.Errorf("messages[%d]: content is required", i)
		}
		if len(m.Content) > maxMessageBytes {
			return fmt.Errorf("messages[%d]: content is %d bytes, limit %d", i, len(m.Content), maxMessageBytes)
		}
	}
	switch {
	case r.Temperature < 0 || r.Temperature > 2:
		return errors.New("temperature must be within [0, 2]")
	case r.TopP < 0 || r.TopP > 1:
		return errors.New("top_p must be within [0, 1]")
	case r.MaxTokens < 0:
		return errors.New("max_tokens must not be negative")
	}
	return nil
}

type ChatChoice struct {
	Index        int
	Message      ChatMessage
	FinishReason string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	ID      string
	Model   string
	Created time.Time
	Choices []ChatChoice
	// Usage is nil when the service did not report token counts.
	Usage *Usage
}

// Text returns the content of the first choice.
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

type Client interface {
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
