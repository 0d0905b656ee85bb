package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"axiom/engine/internal/config"
	"axiom/engine/internal/errinfo"
	"axiom/engine/internal/llm"
	"axiom/engine/internal/tools"
)

type scriptStep struct {
	resp llm.ChatResponse
	err  error
}

// scriptedClient replays steps in order and records every request. Once the
// script runs out it answers "done".
type scriptedClient struct {
	mu       sync.Mutex
	steps    []scriptStep
	requests []llm.ChatRequest
	repeat   *scriptStep
}

func (c *scriptedClient) ChatWithTools(ctx context.Context, request llm.ChatRequest) (llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, request)
	if c.repeat != nil {
		return c.repeat.resp, c.repeat.err
	}
	if len(c.steps) == 0 {
		return llm.ChatResponse{Content: "done", FinishReason: "stop"}, nil
	}
	step := c.steps[0]
	c.steps = c.steps[1:]
	return step.resp, step.err
}

func (c *scriptedClient) calls() []llm.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.ChatRequest(nil), c.requests...)
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: "function", Function: llm.ToolCallFunction{Name: name, Arguments: args}}
}

func testConfig() config.Config {
	return config.Config{
		Model: config.ModelConfig{
			ChatModel:       "qwen2.5-coder:1.5b",
			ContextLimit:    32768,
			MaxOutputTokens: 4096,
			Temperature:     0.1,
		},
		Agent: config.AgentConfig{
			MaxAttempts:        3,
			RetryBackoff:       time.Second,
			MaxToolRounds:      20,
			MaxToolOutputChars: 16000,
			SystemPrompt:       "You are Axiom.",
		},
	}
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

func newTestEngine(t *testing.T, cfg config.Config, client LLMClient) (*Engine, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	eng, err := New(cfg, client, WithTurnOptions(WithSleep(rec.sleep)))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng, rec
}

func mustJSON(t *testing.T, value any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func initWorkspace(t *testing.T, eng *Engine, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, errInfo := eng.Initialize(context.Background(), mustJSON(t, map[string]any{"root": root})); errInfo != nil {
		t.Fatalf("initialize: %v", errInfo)
	}
	return root
}

func TestChatProposeEditKeepsDiffOutOfMemory(t *testing.T) {
	args := `{"file_path":"util.py","search_text":"def foo():","replace_text":"def bar():"}`
	client := &scriptedClient{steps: []scriptStep{
		{resp: llm.ChatResponse{ToolCalls: []llm.ToolCall{toolCall("call-1", "propose_edit", args)}}},
		{resp: llm.ChatResponse{Content: "I proposed renaming foo to bar."}},
	}}
	eng, _ := newTestEngine(t, testConfig(), client)
	root := initWorkspace(t, eng, map[string]string{"util.py": "def foo():\n    return 1\n"})

	out, errInfo := eng.Chat(context.Background(), mustJSON(t, map[string]any{"prompt": "rename function foo to bar in util.py"}))
	if errInfo != nil {
		t.Fatalf("chat: %v", errInfo)
	}
	if out["response"] != "I proposed renaming foo to bar." {
		t.Fatalf("unexpected response: %v", out["response"])
	}
	if _, hasErr := out["error"]; hasErr {
		t.Fatalf("unexpected error: %v", out["error_info"])
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	var wire struct {
		Components []map[string]any `json:"components"`
	}
	if err := json.Unmarshal(encoded, &wire); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if len(wire.Components) != 1 || wire.Components[0][tools.ArtifactTypeField] != tools.ArtifactDiff {
		t.Fatalf("expected one diff component, got %v", wire.Components)
	}
	if !strings.Contains(wire.Components[0]["diff"].(string), "+def bar():") {
		t.Fatalf("diff missing replacement: %v", wire.Components[0]["diff"])
	}

	requests := client.calls()
	if len(requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(requests))
	}
	second := requests[1].Messages
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call-1" || last.Content != "Diff generated and displayed to user." {
		t.Fatalf("expected diff summary as tool result, got %+v", last)
	}
	for _, msg := range second {
		if strings.Contains(msg.Content, "@@") {
			t.Fatalf("diff body leaked into memory: %q", msg.Content)
		}
	}
	if second[0].Role != llm.RoleSystem {
		t.Fatalf("expected system message first")
	}
	if len(requests[0].Tools) == 0 || requests[0].ToolChoice != "auto" {
		t.Fatalf("expected tool schemas with auto choice")
	}

	data, err := os.ReadFile(filepath.Join(root, "util.py"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "def foo():") {
		t.Fatalf("proposal must not touch the file")
	}
}

func TestChatRecoversToolCallLeakedAsText(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{resp: llm.ChatResponse{Content: "```json\n{\"name\": \"list_files\", \"arguments\": {}}\n```"}},
		{resp: llm.ChatResponse{Content: "The workspace has main.go."}},
	}}
	eng, _ := newTestEngine(t, testConfig(), client)
	initWorkspace(t, eng, map[string]string{"main.go": "package main\n"})

	s := eng.Session("")
	reply := Collect(eng.Orchestrator().Turn(context.Background(), s, "what files are there?"))
	if reply.Error != nil {
		t.Fatalf("unexpected error: %v", reply.Error)
	}
	if reply.Response != "The workspace has main.go." {
		t.Fatalf("raw tool JSON must not reach the user, got %q", reply.Response)
	}
	if len(reply.Progress) != 1 || reply.Progress[0] != "Running list_files..." {
		t.Fatalf("unexpected progress: %v", reply.Progress)
	}

	second := client.calls()[1].Messages
	assistant := second[len(second)-2]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].Function.Name != "list_files" {
		t.Fatalf("expected synthetic list_files call, got %+v", assistant)
	}
	if !strings.HasPrefix(assistant.ToolCalls[0].ID, "call_") {
		t.Fatalf("unexpected synthetic id %q", assistant.ToolCalls[0].ID)
	}
	result := second[len(second)-1]
	if result.ToolCallID != assistant.ToolCalls[0].ID || !strings.Contains(result.Content, "main.go") {
		t.Fatalf("unexpected tool result: %+v", result)
	}
}

func TestChatTransportFailureRetriesThenFails(t *testing.T) {
	unavailable := fmt.Errorf("%w: dial tcp 127.0.0.1:11434: connection refused", llm.ErrUnavailable)
	client := &scriptedClient{repeat: &scriptStep{err: unavailable}}
	eng, rec := newTestEngine(t, testConfig(), client)

	s := eng.Session("")
	reply := Collect(eng.Orchestrator().Turn(context.Background(), s, "hello"))
	if reply.Error == nil || reply.Error.ErrorCode != errinfo.CodeProviderUnavailable {
		t.Fatalf("expected provider unavailable, got %+v", reply.Error)
	}
	if !reply.Error.Retryable || reply.Error.SessionID != DefaultSessionID {
		t.Fatalf("unexpected error info: %+v", reply.Error)
	}
	if got := len(client.calls()); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(rec.waits) != 2 || rec.waits[0] != time.Second || rec.waits[1] != time.Second {
		t.Fatalf("expected two 1s waits between attempts, got %v", rec.waits)
	}

	snapshot := s.Memory.Snapshot()
	users := 0
	for _, msg := range snapshot {
		if msg.Role == llm.RoleUser {
			users++
			if msg.Content != "hello" {
				t.Fatalf("unexpected user message %q", msg.Content)
			}
		}
	}
	if users != 1 || len(snapshot) != 2 {
		t.Fatalf("expected system + one user message, got %+v", snapshot)
	}
}

func TestChatNonTransientErrorIsNotRetried(t *testing.T) {
	client := &scriptedClient{repeat: &scriptStep{err: llm.ErrUnauthorized}}
	eng, rec := newTestEngine(t, testConfig(), client)

	out, errInfo := eng.Chat(context.Background(), mustJSON(t, map[string]any{"prompt": "hi"}))
	if errInfo != nil {
		t.Fatalf("chat: %v", errInfo)
	}
	if out["error"] != errinfo.CodeProviderAuthFailed {
		t.Fatalf("expected auth failure, got %v", out["error"])
	}
	if !strings.HasPrefix(out["response"].(string), "Error: ") {
		t.Fatalf("expected error text as response, got %v", out["response"])
	}
	if len(client.calls()) != 1 || len(rec.waits) != 0 {
		t.Fatalf("expected a single attempt without waits")
	}
}

func TestChatBeforeInitializeReportsSandboxState(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{resp: llm.ChatResponse{ToolCalls: []llm.ToolCall{toolCall("c1", "read_file", `{"file_path":"main.go"}`)}}},
		{resp: llm.ChatResponse{Content: "Please open a folder first."}},
	}}
	eng, _ := newTestEngine(t, testConfig(), client)

	reply := Collect(eng.Orchestrator().Turn(context.Background(), eng.Session(""), "read main.go"))
	if reply.Error != nil {
		t.Fatalf("tool errors must not end the turn: %v", reply.Error)
	}
	msgs := client.calls()[1].Messages
	result := msgs[len(msgs)-1]
	if !strings.Contains(result.Content, "not initialized") {
		t.Fatalf("expected not-initialized tool error, got %q", result.Content)
	}
}

func TestChatFaultingToolsDoNotStopTheTurn(t *testing.T) {
	client := &scriptedClient{steps: []scriptStep{
		{resp: llm.ChatResponse{Content: "Looking.", ToolCalls: []llm.ToolCall{
			toolCall("c1", "no_such_tool", `{}`),
			toolCall("c2", "read_file", `{"file_path": 7}`),
			toolCall("c3", "read_file", `{"file_path":"../outside.txt"}`),
			toolCall("c4", "read_file", `{"file_path":"a.txt"}`),
		}}},
		{resp: llm.ChatResponse{Content: "a.txt says hi."}},
	}}
	eng, _ := newTestEngine(t, testConfig(), client)
	initWorkspace(t, eng, map[string]string{"a.txt": "hi"})

	reply := Collect(eng.Orchestrator().Turn(context.Background(), eng.Session(""), "read a.txt"))
	if reply.Error != nil {
		t.Fatalf("unexpected error: %v", reply.Error)
	}
	if reply.Response != "Looking.\na.txt says hi." {
		t.Fatalf("unexpected response %q", reply.Response)
	}
	if len(reply.Progress) != 4 {
		t.Fatalf("expected progress for every call, got %v", reply.Progress)
	}

	msgs := client.calls()[1].Messages
	results := msgs[len(msgs)-4:]
	wantPrefix := []string{"Error: Tool 'no_such_tool' not found.", "Error", "Security check failed", "hi"}
	for i, msg := range results {
		if msg.Role != llm.RoleTool || msg.ToolCallID != fmt.Sprintf("c%d", i+1) {
			t.Fatalf("results out of order: %+v", msg)
		}
		if !strings.HasPrefix(msg.Content, wantPrefix[i]) {
			t.Fatalf("result %d: expected prefix %q, got %q", i, wantPrefix[i], msg.Content)
		}
	}
}

func TestChatStopsAfterToolRoundLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Agent.MaxToolRounds = 3
	round := 0
	client := &scriptedClient{}
	for i := 0; i < 5; i++ {
		round++
		client.steps = append(client.steps, scriptStep{resp: llm.ChatResponse{ToolCalls: []llm.ToolCall{
			toolCall(fmt.Sprintf("c%d", round), "get_current_plan", fmt.Sprintf(`{"n":%d}`, round)),
		}}})
	}
	eng, _ := newTestEngine(t, cfg, client)

	s := eng.Session("")
	reply := Collect(eng.Orchestrator().Turn(context.Background(), s, "loop"))
	if reply.Error == nil || reply.Error.ErrorCode != errinfo.CodeAgentLoopDetected {
		t.Fatalf("expected loop detection, got %+v", reply.Error)
	}
	if got := len(client.calls()); got != 3 {
		t.Fatalf("expected 3 model calls, got %d", got)
	}
	assertPairs(t, s.Memory.Snapshot())
}

func TestChatStopsOnRepeatedIdenticalCalls(t *testing.T) {
	client := &scriptedClient{repeat: &scriptStep{resp: llm.ChatResponse{ToolCalls: []llm.ToolCall{
		toolCall("", "get_current_plan", `{}`),
	}}}}
	eng, _ := newTestEngine(t, testConfig(), client)

	s := eng.Session("")
	reply := Collect(eng.Orchestrator().Turn(context.Background(), s, "loop"))
	if reply.Error == nil || !strings.Contains(reply.Error.Detail, "repeated identical tool call") {
		t.Fatalf("expected hard stop, got %+v", reply.Error)
	}
	if got := len(client.calls()); got != loopDetectionStop {
		t.Fatalf("expected %d model calls, got %d", loopDetectionStop, got)
	}
	assertPairs(t, s.Memory.Snapshot())
}

func TestChatClipsLargeToolOutput(t *testing.T) {
	cfg := testConfig()
	cfg.Agent.MaxToolOutputChars = 10
	client := &scriptedClient{steps: []scriptStep{
		{resp: llm.ChatResponse{ToolCalls: []llm.ToolCall{toolCall("c1", "read_file", `{"file_path":"big.txt"}`)}}},
	}}
	eng, _ := newTestEngine(t, cfg, client)
	initWorkspace(t, eng, map[string]string{"big.txt": strings.Repeat("x", 100)})

	Collect(eng.Orchestrator().Turn(context.Background(), eng.Session(""), "read"))
	msgs := client.calls()[1].Messages
	got := msgs[len(msgs)-1].Content
	if !strings.HasPrefix(got, strings.Repeat("x", 10)+"\n... (output truncated, 90 characters omitted)") {
		t.Fatalf("unexpected clipped output %q", got)
	}
}

func TestChatCanceledContext(t *testing.T) {
	client := &scriptedClient{}
	eng, _ := newTestEngine(t, testConfig(), client)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply := Collect(eng.Orchestrator().Turn(ctx, eng.Session(""), "hi"))
	if reply.Error == nil || reply.Error.ErrorCode != errinfo.CodeUserCanceled {
		t.Fatalf("expected cancellation, got %+v", reply.Error)
	}
	if len(client.calls()) != 0 {
		t.Fatalf("no model call expected after cancellation")
	}
}

func TestInitializeHandler(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig(), &scriptedClient{})
	ctx := context.Background()

	if _, errInfo := eng.Initialize(ctx, mustJSON(t, map[string]any{})); errInfo == nil || errInfo.ErrorCode != errinfo.CodeValidationFailed {
		t.Fatalf("expected validation error for missing root, got %v", errInfo)
	}
	if _, errInfo := eng.Initialize(ctx, mustJSON(t, map[string]any{"root": filepath.Join(t.TempDir(), "missing")})); errInfo == nil || errInfo.ErrorCode != errinfo.CodeFileNotFound {
		t.Fatalf("expected file not found for missing root, got %v", errInfo)
	}

	root := t.TempDir()
	out, errInfo := eng.Initialize(ctx, mustJSON(t, map[string]any{"root": root}))
	if errInfo != nil {
		t.Fatalf("initialize: %v", errInfo)
	}
	canonical, _ := filepath.EvalSymlinks(root)
	if out["status"] != "ok" || out["root"] != canonical {
		t.Fatalf("unexpected initialize result: %v", out)
	}
	if _, errInfo := eng.Initialize(ctx, mustJSON(t, map[string]any{"root": root})); errInfo != nil {
		t.Fatalf("same root again should succeed: %v", errInfo)
	}
	if _, errInfo := eng.Initialize(ctx, mustJSON(t, map[string]any{"root": t.TempDir()})); errInfo == nil {
		t.Fatalf("expected error when switching roots")
	}

	other := eng.Session("other")
	if other.Sandbox.Initialized() {
		t.Fatalf("sessions must not share a sandbox root")
	}
	if eng.Session("") == other || eng.Session("other") != other {
		t.Fatalf("session lookup mismatch")
	}
}

func TestChatHandlerValidation(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig(), &scriptedClient{})
	if _, errInfo := eng.Chat(context.Background(), mustJSON(t, map[string]any{"prompt": "  "})); errInfo == nil {
		t.Fatalf("expected validation error for empty prompt")
	}
	if _, errInfo := eng.Chat(context.Background(), json.RawMessage(`[1]`)); errInfo == nil {
		t.Fatalf("expected validation error for malformed data")
	}
}

type fakeQuick struct {
	completion *string
	lastLang   string
}

func (f *fakeQuick) InlineCompletion(_ context.Context, _ string, _ int, language string) *string {
	f.lastLang = language
	return f.completion
}

func (f *fakeQuick) Hover(_ context.Context, symbol, _ string) string {
	return "explains " + symbol
}

func TestQuickHandlers(t *testing.T) {
	text := "(a, b):"
	quick := &fakeQuick{completion: &text}
	eng, err := New(testConfig(), &scriptedClient{}, WithQuick(quick))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, errInfo := eng.InlineCompletion(context.Background(), mustJSON(t, map[string]any{"code": "def add", "cursor_line": 0}))
	if errInfo != nil {
		t.Fatalf("inline: %v", errInfo)
	}
	if got := out["completion"].(*string); got == nil || *got != text {
		t.Fatalf("unexpected completion %v", out["completion"])
	}
	if quick.lastLang != "python" {
		t.Fatalf("expected default language, got %q", quick.lastLang)
	}

	quick.completion = nil
	out, _ = eng.InlineCompletion(context.Background(), mustJSON(t, map[string]any{"code": "x"}))
	encoded, _ := json.Marshal(out)
	if string(encoded) != `{"completion":null}` {
		t.Fatalf("expected null completion, got %s", encoded)
	}

	out, _ = eng.Hover(context.Background(), mustJSON(t, map[string]any{"symbol": "add", "context": "def add"}))
	if out["tooltip"] != "explains add" {
		t.Fatalf("unexpected tooltip %v", out["tooltip"])
	}
}

func TestReconfigureAndReloadTools(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig(), &scriptedClient{})
	if !eng.Registry().Has("edit_file") {
		t.Fatalf("edit_file should be registered by default")
	}

	cfg := testConfig()
	cfg.Tools.Disabled = []string{"edit_file"}
	cfg.Model.ChatModel = "llama3.1:8b"
	replacement := &scriptedClient{}
	if err := eng.Reconfigure(cfg, replacement); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if eng.Registry().Has("edit_file") {
		t.Fatalf("edit_file should be disabled")
	}

	Collect(eng.Orchestrator().Turn(context.Background(), eng.Session(""), "hi"))
	if calls := replacement.calls(); len(calls) != 1 || calls[0].Model != "llama3.1:8b" {
		t.Fatalf("expected the new client and model, got %+v", calls)
	}

	out, errInfo := eng.ReloadTools(context.Background(), nil)
	if errInfo != nil {
		t.Fatalf("reload: %v", errInfo)
	}
	names := out["tools"].([]string)
	for _, name := range names {
		if name == "edit_file" {
			t.Fatalf("reload must keep the disabled list")
		}
	}
	if len(names) != len(tools.Builtins(nil))-1 {
		t.Fatalf("unexpected tools: %v", names)
	}
}

func TestSessionMemoryBudgetFollowsConfig(t *testing.T) {
	cfg := testConfig()
	eng, _ := newTestEngine(t, cfg, &scriptedClient{})
	existing := eng.Session("")
	if got := existing.Memory.Budget(); got != cfg.MemoryBudget() || got != 28672 {
		t.Fatalf("expected budget %d, got %d", cfg.MemoryBudget(), got)
	}

	smaller := testConfig()
	smaller.Model.ContextLimit = 8192
	smaller.Model.MaxOutputTokens = 1024
	if err := eng.Reconfigure(smaller, nil); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if got := eng.Session("fresh").Memory.Budget(); got != 7168 {
		t.Fatalf("new sessions should use the new budget, got %d", got)
	}
	if got := existing.Memory.Budget(); got != 28672 {
		t.Fatalf("existing sessions keep their memory, got %d", got)
	}
}

func TestPlanHandler(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig(), &scriptedClient{})
	out, _ := eng.Plan(context.Background(), nil)
	if out["plan"] != nil {
		t.Fatalf("expected no plan, got %v", out["plan"])
	}
	eng.Session("").Plan.Set("ship", []string{"a", "b"})
	out, _ = eng.Plan(context.Background(), mustJSON(t, map[string]any{"session_id": "default"}))
	encoded, _ := json.Marshal(out)
	if !strings.Contains(string(encoded), `"goal":"ship"`) || !strings.Contains(string(encoded), `"current_step":0`) {
		t.Fatalf("unexpected plan payload %s", encoded)
	}
}

func TestMapLLMError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{llm.ErrUnauthorized, errinfo.CodeProviderAuthFailed},
		{llm.ErrEgressBlocked, errinfo.CodeEgressBlocked},
		{fmt.Errorf("%w: 503", llm.ErrUnavailable), errinfo.CodeProviderUnavailable},
		{llm.ErrRateLimited, errinfo.CodeProviderUnavailable},
		{context.Canceled, errinfo.CodeUserCanceled},
		{context.DeadlineExceeded, errinfo.CodeNetworkUnavailable},
		{fmt.Errorf("%w: no choices", llm.ErrBadResponse), errinfo.CodeValidationFailed},
		{errors.New("weird"), errinfo.CodeInternal},
	}
	for _, tc := range cases {
		info := mapLLMError(errinfo.PhaseChat, "m", tc.err)
		if info.ErrorCode != tc.code {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.code, info.ErrorCode)
		}
		if info.ModelID != "m" || info.Subphase != errinfo.SubphaseModelCall {
			t.Fatalf("missing model context: %+v", info)
		}
	}
}

// assertPairs checks that every tool result answers a retained intent.
func assertPairs(t *testing.T, msgs []llm.ChatMessage) {
	t.Helper()
	intents := map[string]bool{}
	for _, msg := range msgs {
		for _, call := range msg.ToolCalls {
			intents[call.ID] = true
		}
		if msg.Role == llm.RoleTool && !intents[msg.ToolCallID] {
			t.Fatalf("orphan tool result %q", msg.ToolCallID)
		}
	}
}
