package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tadbeer/helpdesk/internal/config"
)

// Provider completes a chat request. The assistant depends on this interface
// so tests can script responses.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Message is one chat turn. Assistant turns may carry tool calls; tool turns
// answer a call by ID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a function invocation requested by the model. Arguments is the
// raw JSON object the model produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool declares a callable function and its JSON schema.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is provider-neutral.
type Request struct {
	System    string
	Messages  []Message
	Tools     []Tool
	MaxTokens int
	JSONMode  bool
}

// Response carries the first choice of a completion.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Error is returned for non-2xx responses.
type Error struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to any OpenAI-compatible Chat Completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewClient returns nil when no API key is configured.
func NewClient(cfg config.LLMConfig) *Client {
	if !cfg.Enabled() {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete sends a non-streaming request.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("llm: response has no choices")
	}

	choice := wire.Choices[0]
	out := &Response{FinishReason: choice.FinishReason}
	if choice.Message.Content != nil {
		out.Content = *choice.Message.Content
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

func (c *Client) buildRequest(req Request) wireRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	wire := wireRequest{Model: c.model, MaxTokens: maxTokens}
	if req.JSONMode {
		wire.ResponseFormat = &wireResponseFormat{Type: "json_object"}
	}

	if req.System != "" {
		wire.Messages = append(wire.Messages, wireMessage{Role: "system", Content: stringPtr(req.System)})
	}
	for _, m := range req.Messages {
		msg := wireMessage{Role: m.Role, ToolCallID: m.ToolCallID}
		if m.Content != "" || len(m.ToolCalls) == 0 {
			msg.Content = stringPtr(m.Content)
		}
		for _, call := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, wireToolCall{
				ID:       call.ID,
				Type:     "function",
				Function: wireFunction{Name: call.Name, Arguments: call.Arguments},
			})
		}
		wire.Messages = append(wire.Messages, msg)
	}
	for _, tool := range req.Tools {
		wire.Tools = append(wire.Tools, wireTool{
			Type: "function",
			Function: wireToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return wire
}

// readError parses {"error":{"type","message"}} and falls back to the raw body.
func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Error.Message != "" {
		return &Error{StatusCode: resp.StatusCode, Type: wire.Error.Type, Message: wire.Error.Message}
	}
	return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func stringPtr(s string) *string { return &s }

type wireRequest struct {
	Model          string              `json:"model"`
	Messages       []wireMessage       `json:"messages"`
	Tools          []wireTool          `json:"tools,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *wireResponseFormat `json:"response_format,omitempty"`
}

type wireResponseFormat struct {
	Type string `json:"type"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string             `json:"type"`
	Function wireToolDefinition `json:"function"`
}

type wireToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type wireResponse struct {
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}
