package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"axiom/engine/internal/llm"
)

type mockRT struct {
	roundTrip func(req *http.Request) (*http.Response, error)
}

func (m *mockRT) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.roundTrip(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func testClient(rt http.RoundTripper) *Client {
	c := NewClient(Options{BaseURL: DefaultBaseURL, APIKey: "ollama", AllowedHosts: []string{"localhost"}})
	c.client = &http.Client{Transport: rt}
	return c
}

func TestPing(t *testing.T) {
	client := testClient(&mockRT{roundTrip: func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/models" {
			t.Fatalf("expected /v1/models, got %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer ollama" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		return response(http.StatusOK, `{"data":[]}`), nil
	}})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestChatWithToolsSendsRequest(t *testing.T) {
	client := testClient(&mockRT{roundTrip: func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/chat/completions" {
			t.Fatalf("expected /v1/chat/completions, got %s", req.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["tool_choice"] != "auto" {
			t.Fatalf("expected tool_choice auto, got %v", body["tool_choice"])
		}
		if body["max_tokens"].(float64) != 4096 {
			t.Fatalf("expected max_tokens 4096, got %v", body["max_tokens"])
		}
		msgs := body["messages"].([]any)
		assistant := msgs[1].(map[string]any)
		if v, ok := assistant["content"]; !ok || v != nil {
			t.Fatalf("expected null content on tool-call message, got %v", v)
		}
		return response(http.StatusOK, `{"choices":[{"message":{"content":"Done"},"finish_reason":"stop"}]}`), nil
	}})
	resp, err := client.ChatWithTools(context.Background(), llm.ChatRequest{
		Model: "qwen2.5-coder:1.5b",
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "list"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Type: "function", Function: llm.ToolCallFunction{Name: "list_files", Arguments: "{}"}}}},
			{Role: llm.RoleTool, ToolCallID: "c1", Content: "main.go"},
		},
		Tools:       []llm.Tool{{Type: "function", Function: llm.FunctionDef{Name: "list_files", Parameters: json.RawMessage(`{"type":"object"}`)}}},
		ToolChoice:  "auto",
		Temperature: 0.1,
		MaxTokens:   4096,
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.Content != "Done" || resp.FinishReason != "stop" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestChatWithToolsParsesToolCallWithObjectArgs(t *testing.T) {
	client := testClient(&mockRT{roundTrip: func(req *http.Request) (*http.Response, error) {
		return response(http.StatusOK, `{"choices":[{"message":{"content":"","tool_calls":[{"function":{"name":"read_file","arguments":{"file_path":"util.py"}}}]}}]}`), nil
	}})
	resp, err := client.ChatWithTools(context.Background(), llm.ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("chat with tools failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if !strings.HasPrefix(call.ID, "call_") {
		t.Fatalf("expected synthesized id, got %q", call.ID)
	}
	if call.Function.Arguments != `{"file_path":"util.py"}` {
		t.Fatalf("expected object args, got %q", call.Function.Arguments)
	}
	if resp.FinishReason != "tool_calls" {
		t.Fatalf("expected finish reason tool_calls, got %q", resp.FinishReason)
	}
}

func TestSynthesizedToolCallIDsDifferAcrossRounds(t *testing.T) {
	client := testClient(&mockRT{roundTrip: func(req *http.Request) (*http.Response, error) {
		return response(http.StatusOK, `{"choices":[{"message":{"content":"","tool_calls":[{"function":{"name":"list_files","arguments":"{}"}},{"function":{"name":"list_files","arguments":"{}"}}]}}]}`), nil
	}})
	seen := map[string]bool{}
	for round := 0; round < 2; round++ {
		resp, err := client.ChatWithTools(context.Background(), llm.ChatRequest{Model: "m"})
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if len(resp.ToolCalls) != 2 {
			t.Fatalf("round %d: expected 2 tool calls, got %d", round, len(resp.ToolCalls))
		}
		for _, call := range resp.ToolCalls {
			if !strings.HasPrefix(call.ID, "call_") {
				t.Fatalf("unexpected id %q", call.ID)
			}
			if seen[call.ID] {
				t.Fatalf("id %q repeated", call.ID)
			}
			seen[call.ID] = true
		}
	}
}

func TestChatWithToolsStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, llm.ErrUnauthorized},
		{http.StatusTooManyRequests, llm.ErrRateLimited},
		{http.StatusBadGateway, llm.ErrUnavailable},
	}
	for _, tc := range cases {
		client := testClient(&mockRT{roundTrip: func(req *http.Request) (*http.Response, error) {
			return response(tc.status, `{}`), nil
		}})
		_, err := client.ChatWithTools(context.Background(), llm.ChatRequest{Model: "m"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestChatWithToolsConnectionRefusedIsTransient(t *testing.T) {
	client := testClient(&mockRT{roundTrip: func(req *http.Request) (*http.Response, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}})
	_, err := client.ChatWithTools(context.Background(), llm.ChatRequest{Model: "m"})
	if !llm.Transient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestChatWithToolsCanceledIsNotTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := testClient(&mockRT{roundTrip: func(req *http.Request) (*http.Response, error) {
		return nil, req.Context().Err()
	}})
	_, err := client.ChatWithTools(ctx, llm.ChatRequest{Model: "m"})
	if llm.Transient(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestEgressBlockedForRemoteHost(t *testing.T) {
	client := NewClient(Options{BaseURL: "https://example.com/v1", AllowedHosts: []string{"localhost"}})
	err := client.Ping(context.Background())
	if !errors.Is(err, llm.ErrEgressBlocked) {
		t.Fatalf("expected egress blocked, got %v", err)
	}
}
