package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tadbeer/helpdesk/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LLMConfig{BaseURL: srv.URL + "/", APIKey: "k", Model: "test-model", MaxTokens: 256, TimeoutSeconds: 5})
}

func TestNewClientDisabledWithoutKey(t *testing.T) {
	if NewClient(config.LLMConfig{BaseURL: "http://x"}) != nil {
		t.Fatalf("expected nil client without api key")
	}
}

func TestCompleteSendsToolsAndParsesCalls(t *testing.T) {
	var got wireRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_ticket","arguments":"{\"ticket_id\":\"t1\"}"}}]}}]}`))
	})

	resp, err := client.Complete(context.Background(), Request{
		System: "be brief",
		Messages: []Message{
			{Role: "user", Content: "why?"},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "c0", Name: "search_docs", Arguments: `{}`}}},
			{Role: "tool", ToolCallID: "c0", Content: "[]"},
		},
		Tools: []Tool{{Name: "get_ticket", Description: "d", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got.Model != "test-model" || got.MaxTokens != 256 {
		t.Fatalf("unexpected request header fields %+v", got)
	}
	if len(got.Messages) != 4 || got.Messages[0].Role != "system" {
		t.Fatalf("system prompt should lead, got %+v", got.Messages)
	}
	if got.Messages[2].Content != nil || len(got.Messages[2].ToolCalls) != 1 {
		t.Fatalf("assistant tool-call turn malformed: %+v", got.Messages[2])
	}
	if got.Messages[3].ToolCallID != "c0" {
		t.Fatalf("tool turn lost its call id")
	}
	if len(got.Tools) != 1 || got.Tools[0].Type != "function" {
		t.Fatalf("tools not sent: %+v", got.Tools)
	}

	if resp.FinishReason != "tool_calls" || len(resp.ToolCalls) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if call := resp.ToolCalls[0]; call.Name != "get_ticket" || call.Arguments != `{"ticket_id":"t1"}` {
		t.Fatalf("unexpected call %+v", call)
	}
}

func TestCompleteJSONMode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("json mode not requested")
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"{}"}}]}`))
	})
	resp, err := client.Complete(context.Background(), Request{JSONMode: true, Messages: []Message{{Role: "user", Content: "x"}}})
	if err != nil || resp.Content != "{}" {
		t.Fatalf("Complete = %+v, %v", resp, err)
	}
}

func TestCompleteProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	})
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
	var llmErr *Error
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if llmErr.StatusCode != http.StatusTooManyRequests || llmErr.Type != "rate_limit_error" || llmErr.Message != "slow down" {
		t.Fatalf("unexpected error %+v", llmErr)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	if _, err := client.Complete(context.Background(), Request{}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
