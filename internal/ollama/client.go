package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"axiom/engine/internal/egress"
	"axiom/engine/internal/llm"
	"axiom/engine/internal/logging"
)

const (
	DefaultBaseURL    = "http://localhost:11434/v1"
	maxErrorBodyBytes = 2048
)

type Options struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	AllowedHosts []string
	Logger       *slog.Logger
}

// Client talks to the OpenAI-compatible chat-completions API that Ollama
// serves under /v1.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	transport := egress.NewAllowlistRoundTripper(http.DefaultTransport, opts.AllowedHosts)
	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// Ping checks that the server answers the model listing endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()
	return statusError(resp)
}

// ChatWithTools submits one chat-completions request.
func (c *Client) ChatWithTools(ctx context.Context, request llm.ChatRequest) (llm.ChatResponse, error) {
	payload := chatCompletionRequest{
		Model:       request.Model,
		Messages:    toWireMessages(request.Messages),
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	}
	if len(request.Tools) > 0 {
		payload.Tools = toWireTools(request.Tools)
		payload.ToolChoice = request.ToolChoice
	}
	start := time.Now()
	content, toolCalls, finish, err := c.sendChatCompletion(ctx, payload)
	attrs := []any{"model", request.Model, "messages", len(request.Messages), "duration_ms", time.Since(start).Milliseconds()}
	if profile, ok := llm.RequestProfileFromContext(ctx); ok {
		attrs = append(attrs, "purpose", profile.Purpose, "session_id", profile.SessionID)
	}
	if err != nil {
		c.logger.Warn("ollama.request_failed", append(attrs, "error", err.Error())...)
		return llm.ChatResponse{}, err
	}
	c.logger.Debug("ollama.request", append(attrs, "tool_calls", len(toolCalls))...)
	if finish == "" {
		finish = "stop"
		if len(toolCalls) > 0 {
			finish = "tool_calls"
		}
	}
	return llm.ChatResponse{Content: content, ToolCalls: toolCalls, FinishReason: finish}, nil
}

func (c *Client) sendChatCompletion(ctx context.Context, payload chatCompletionRequest) (string, []llm.ToolCall, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", nil, "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, "", transportError(ctx, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return "", nil, "", err
	}
	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", nil, "", fmt.Errorf("%w: %v", llm.ErrBadResponse, err)
	}
	if len(completion.Choices) == 0 {
		return "", nil, "", fmt.Errorf("%w: no choices", llm.ErrBadResponse)
	}
	choice := completion.Choices[0]
	return extractContent(choice.Message.Content), toLLMToolCalls(choice.Message.ToolCalls), choice.FinishReason, nil
}

func (c *Client) authorize(req *http.Request) {
	if key := strings.TrimSpace(c.apiKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// transportError classifies a failed round trip. Connection failures and
// client timeouts are transient; caller cancellation is not.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, llm.ErrEgressBlocked) {
		return llm.ErrEgressBlocked
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return llm.ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return llm.ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", llm.ErrUnavailable, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("ollama error: %s - %s", resp.Status, strings.TrimSpace(string(errorBody)))
	}
	return nil
}

type chatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []chatMessage  `json:"messages"`
	Tools       []chatToolSpec `json:"tools,omitempty"`
	ToolChoice  string         `json:"tool_choice,omitempty"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
}

type chatToolSpec struct {
	Type     string          `json:"type"`
	Function chatToolDetails `json:"function"`
}

type chatToolDetails struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatMessage struct {
	Role       string            `json:"role"`
	Content    *string           `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCallReq `json:"tool_calls,omitempty"`
}

type chatToolCallReq struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function chatToolFunctionReq `json:"function"`
}

type chatToolFunctionReq struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content   json.RawMessage    `json:"content"`
	ToolCalls []chatToolCallResp `json:"tool_calls"`
}

type chatToolCallResp struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function chatToolFunctionRaw `json:"function"`
}

type chatToolFunctionRaw struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type contentBlock struct {
	Text string `json:"text"`
}

func toWireMessages(messages []llm.ChatMessage) []chatMessage {
	result := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		entry := chatMessage{Role: normalizeRole(msg.Role), ToolCallID: msg.ToolCallID}
		// Tool-call-only assistant messages carry a null content.
		if msg.Content != "" || len(msg.ToolCalls) == 0 {
			content := msg.Content
			entry.Content = &content
		}
		for _, call := range msg.ToolCalls {
			callID := strings.TrimSpace(call.ID)
			if callID == "" {
				callID = newCallID()
			}
			entry.ToolCalls = append(entry.ToolCalls, chatToolCallReq{
				ID:   callID,
				Type: "function",
				Function: chatToolFunctionReq{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}
		result = append(result, entry)
	}
	return result
}

func toWireTools(tools []llm.Tool) []chatToolSpec {
	result := make([]chatToolSpec, 0, len(tools))
	for _, tool := range tools {
		result = append(result, chatToolSpec{
			Type: "function",
			Function: chatToolDetails{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}
	return result
}

func normalizeRole(role string) string {
	switch strings.TrimSpace(role) {
	case llm.RoleAssistant, llm.RoleUser, llm.RoleSystem, llm.RoleTool:
		return strings.TrimSpace(role)
	default:
		return llm.RoleUser
	}
}

func extractContent(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var builder strings.Builder
		for _, block := range blocks {
			builder.WriteString(block.Text)
		}
		return builder.String()
	}
	return ""
}

// newCallID names a tool call the server left unnamed. IDs must stay unique
// across rounds because tool results are paired by ID.
func newCallID() string {
	return "call_" + uuid.NewString()
}

func toLLMToolCalls(calls []chatToolCallResp) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	result := make([]llm.ToolCall, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			continue
		}
		callID := strings.TrimSpace(call.ID)
		if callID == "" {
			callID = newCallID()
		}
		result = append(result, llm.ToolCall{
			ID:   callID,
			Type: "function",
			Function: llm.ToolCallFunction{
				Name:      name,
				Arguments: normalizeArguments(call.Function.Arguments),
			},
		})
	}
	return result
}

// normalizeArguments accepts arguments as an object or as a JSON-encoded
// string. Ollama sends objects; OpenAI-style servers send strings.
func normalizeArguments(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "{}"
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if strings.TrimSpace(asString) == "" {
			return "{}"
		}
		return asString
	}
	return trimmed
}
