package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"visionqa-gateway/internal/httpx"
)

const finishContentFilter = "content_filter"

type completionBody struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type completionReply struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// APIError is an error body returned by the Azure OpenAI service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("llm: status %d: %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("llm: status %d: %s", e.StatusCode, e.Message)
}

// Is matches ErrContentFiltered for filter rejections.
func (e *APIError) Is(target error) bool {
	return target == ErrContentFiltered && e.Code == finishContentFilter
}

func (c *client) completionsURL() string {
	return c.cfg.Endpoint + "/openai/deployments/" + url.PathEscape(c.cfg.Deployment) +
		"/chat/completions?api-version=" + url.QueryEscape(c.cfg.APIVersion)
}

// ChatCompletion sends req to the configured deployment. A reply whose
// every choice was cut by the content filter is reported as
// ErrContentFiltered.
func (c *client) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("llm: invalid request: nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llm: invalid request: %w", err)
	}

	payload, err := json.Marshal(completionBody{
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}
	if len(payload) > maxRequestBytes {
		return nil, fmt.Errorf("llm: invalid request: payload is %d bytes, limit %d", len(payload), maxRequestBytes)
	}

	start := time.Now()
	target := c.completionsURL()
	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("api-key", c.cfg.APIKey)
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		c.logger.Error("completion request failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("llm: %w", err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckStatus(resp); err != nil {
		apiErr := toAPIError(err)
		c.logger.Error("completion rejected",
			zap.Int("status", apiErr.StatusCode),
			zap.String("code", apiErr.Code),
			zap.String("message", httpx.Truncate(apiErr.Message, 200)),
		)
		return nil, apiErr
	}

	var reply completionReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}

	out, err := reply.toResponse()
	if err != nil {
		c.logger.Warn("completion unusable", zap.String("deployment", c.cfg.Deployment), zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.String("deployment", c.cfg.Deployment),
		zap.String("model", out.Model),
		zap.Duration("duration", time.Since(start)),
	}
	if out.Usage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", out.Usage.PromptTokens),
			zap.Int("completion_tokens", out.Usage.CompletionTokens),
		)
	}
	c.logger.Info("completion done", fields...)

	return out, nil
}

func (r *completionReply) toResponse() (*ChatResponse, error) {
	if len(r.Choices) == 0 {
		return nil, ErrNoChoices
	}

	out := &ChatResponse{
		ID:      r.ID,
		Model:   r.Model,
		Created: time.Unix(r.Created, 0),
		Choices: make([]ChatChoice, 0, len(r.Choices)),
		Usage:   r.Usage,
	}
	filtered := 0
	for _, ch := range r.Choices {
		if ch.FinishReason == finishContentFilter {
			filtered++
		}
		out.Choices = append(out.Choices, ChatChoice{
			Index:        ch.Index,
			Message:      ch.Message,
			FinishReason: ch.FinishReason,
		})
	}
	if filtered == len(r.Choices) {
		return nil, ErrContentFiltered
	}
	return out, nil
}

// toAPIError decodes the service's {"error": {...}} body, falling back to the
// raw text when it is not JSON.
func toAPIError(err error) *APIError {
	var se *httpx.StatusError
	if !errors.As(err, &se) {
		return &APIError{Message: err.Error()}
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(se.Body), &body) == nil && body.Error.Message != "" {
		return &APIError{StatusCode: se.StatusCode, Code: body.Error.Code, Message: body.Error.Message}
	}
	return &APIError{StatusCode: se.StatusCode, Message: se.Body}
}
