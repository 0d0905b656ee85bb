package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"axiom/engine/internal/errinfo"
	"axiom/engine/internal/llm"
	"axiom/engine/internal/logging"
	"axiom/engine/internal/tools"
	"axiom/engine/internal/trace"
)

// LLMClient is the chat oracle a turn drives.
type LLMClient interface {
	ChatWithTools(ctx context.Context, request llm.ChatRequest) (llm.ChatResponse, error)
}

// ToolDispatcher is the part of the tool registry a turn needs.
type ToolDispatcher interface {
	Schemas() []llm.Tool
	Dispatch(ctx context.Context, env *tools.Env, name string, args json.RawMessage) tools.Result
}

type TurnState string

const (
	StateAwaitingModel    TurnState = "AWAITING_MODEL"
	StateInterpreting     TurnState = "INTERPRETING"
	StateExecutingTools   TurnState = "EXECUTING_TOOLS"
	StateTerminatedAnswer TurnState = "TERMINATED_ANSWER"
	StateTerminatedError  TurnState = "TERMINATED_ERROR"
)

// Settings are the knobs of one turn. They are read once when a turn starts.
type Settings struct {
	Model              string
	Temperature        float64
	MaxOutputTokens    int
	MaxAttempts        int
	RetryBackoff       time.Duration
	MaxToolRounds      int
	MaxToolOutputChars int
}

func (s Settings) normalized() Settings {
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 1
	}
	if s.MaxToolRounds < 1 {
		s.MaxToolRounds = 1
	}
	return s
}

type backend struct {
	client   LLMClient
	settings Settings
}

// Orchestrator runs turns: model call, tool execution, repeat until the model
// answers in plain text.
type Orchestrator struct {
	backend  atomic.Pointer[backend]
	registry ToolDispatcher
	tracer   trace.Tracer
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithSleep replaces the wait between retries.
func WithSleep(sleep func(context.Context, time.Duration) error) OrchestratorOption {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

func NewOrchestrator(client LLMClient, registry ToolDispatcher, settings Settings, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		tracer:   trace.Nop(),
		logger:   logging.Nop(),
		sleep:    sleepWithContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.Swap(client, settings)
	return o
}

// Swap installs a new client and settings. Turns already running finish on
// the old ones.
func (o *Orchestrator) Swap(client LLMClient, settings Settings) {
	if client == nil {
		if current := o.backend.Load(); current != nil {
			client = current.client
		}
	}
	o.backend.Store(&backend{client: client, settings: settings.normalized()})
}

func (o *Orchestrator) Settings() Settings {
	return o.backend.Load().settings
}

// Turn runs one user input to completion on s. The channel is closed when
// the turn reaches a terminal state; the last event of a failed turn has
// kind EventError.
func (o *Orchestrator) Turn(ctx context.Context, s *Session, input string) <-chan Event {
	out := make(chan Event, 8)
	go func() {
		defer close(out)
		s.turnMu.Lock()
		defer s.turnMu.Unlock()
		t := &turn{o: o, s: s, b: o.backend.Load(), out: out, ctx: ctx, state: StateAwaitingModel}
		t.run(input)
	}()
	return out
}

type turn struct {
	o     *Orchestrator
	s     *Session
	b     *backend
	out   chan<- Event
	ctx   context.Context
	state TurnState
	guard loopGuard
}

func (t *turn) emit(ev Event) {
	select {
	case t.out <- ev:
	case <-t.ctx.Done():
	}
}

func (t *turn) transition(next TurnState) {
	t.o.logger.Debug("engine.turn_state", "session_id", t.s.ID, "from", string(t.state), "to", string(next))
	t.state = next
}

func (t *turn) fail(info *errinfo.ErrorInfo) {
	info.SessionID = t.s.ID
	t.transition(StateTerminatedError)
	t.o.logger.Warn("engine.turn_failed", "session_id", t.s.ID, "error_code", info.ErrorCode, "detail", info.Detail)
	ev := Event{Kind: EventError, Err: info, Text: info.Error()}
	select {
	case t.out <- ev:
	case <-t.ctx.Done():
		// Best effort once the caller is gone.
		select {
		case t.out <- ev:
		default:
		}
	}
}

func (t *turn) run(input string) {
	ctx, end := t.o.tracer.StartSpan(t.ctx, "turn", map[string]any{"session_id": t.s.ID, "model": t.b.settings.Model})
	t.ctx = ctx
	var turnErr error
	defer func() { end(turnErr) }()

	stats := t.s.Memory.Append(llm.ChatMessage{Role: llm.RoleUser, Content: input})
	t.o.logger.Info("engine.turn_start", "session_id", t.s.ID, "memory_tokens", stats.Used, "memory_budget", stats.Budget, "evicted", stats.Evicted, "truncated", stats.Truncated)

	for round := 0; round < t.b.settings.MaxToolRounds; round++ {
		if err := t.ctx.Err(); err != nil {
			info := errinfo.UserCanceled(errinfo.PhaseChat, "turn canceled")
			turnErr = info
			t.fail(info)
			return
		}
		t.transition(StateAwaitingModel)
		resp, info := t.callModel(round)
		if info != nil {
			turnErr = info
			t.fail(info)
			return
		}

		t.transition(StateInterpreting)
		content, calls := resp.Content, resp.ToolCalls
		if len(calls) == 0 {
			if call, ok := recoverToolCall(content); ok {
				t.o.logger.Info("engine.tool_call_recovered", "session_id", t.s.ID, "tool", call.Function.Name)
				t.o.tracer.Event(t.ctx, "tool_call_recovered", map[string]any{"tool": call.Function.Name})
				calls = []llm.ToolCall{call}
				content = ""
			}
		}
		if len(calls) == 0 {
			t.s.Memory.Append(llm.ChatMessage{Role: llm.RoleAssistant, Content: content})
			t.emit(Event{Kind: EventText, Text: content})
			t.transition(StateTerminatedAnswer)
			t.o.logger.Info("engine.turn_complete", "session_id", t.s.ID, "rounds", round+1)
			return
		}

		t.transition(StateExecutingTools)
		if info := t.executeTools(content, calls); info != nil {
			turnErr = info
			t.fail(info)
			return
		}
	}

	info := errinfo.AgentLoopDetected(errinfo.PhaseChat, fmt.Sprintf("no final answer after %d tool rounds", t.b.settings.MaxToolRounds))
	turnErr = info
	t.fail(info)
}

// callModel submits the current memory, retrying transient failures with a
// fixed backoff.
func (t *turn) callModel(round int) (llm.ChatResponse, *errinfo.ErrorInfo) {
	settings := t.b.settings
	request := llm.ChatRequest{
		Model:       settings.Model,
		Messages:    t.s.Memory.Snapshot(),
		Tools:       t.o.registry.Schemas(),
		ToolChoice:  "auto",
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxOutputTokens,
	}
	ctx := llm.WithRequestProfile(t.ctx, llm.RequestProfile{Purpose: llm.PurposeChat, SessionID: t.s.ID})

	var lastErr error
	for attempt := 1; attempt <= settings.MaxAttempts; attempt++ {
		callCtx, end := t.o.tracer.StartSpan(ctx, "model_call", map[string]any{"round": round, "attempt": attempt, "messages": len(request.Messages)})
		resp, err := t.b.client.ChatWithTools(callCtx, request)
		end(err)
		if err == nil {
			t.o.logger.Info("engine.model_response", "session_id", t.s.ID, "round", round, "attempt", attempt,
				"tool_call_count", len(resp.ToolCalls), "content_length", len(resp.Content), "finish_reason", resp.FinishReason)
			return resp, nil
		}
		lastErr = err
		t.o.logger.Warn("engine.model_error", "session_id", t.s.ID, "round", round, "attempt", attempt, "error", err.Error())
		if !llm.Transient(err) || attempt == settings.MaxAttempts {
			break
		}
		if sleepErr := t.o.sleep(t.ctx, settings.RetryBackoff); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}
	return llm.ChatResponse{}, mapLLMError(errinfo.PhaseChat, settings.Model, lastErr)
}

// executeTools runs calls in order and appends the assistant message with all
// of its results to memory in one step, so the pair is never split.
func (t *turn) executeTools(content string, calls []llm.ToolCall) *errinfo.ErrorInfo {
	if len(calls) > maxToolCallsPerRound {
		t.o.logger.Warn("engine.tool_calls_clipped", "session_id", t.s.ID, "requested", len(calls), "kept", maxToolCallsPerRound)
		calls = calls[:maxToolCallsPerRound]
	}
	calls = append([]llm.ToolCall(nil), calls...)
	for i := range calls {
		if strings.TrimSpace(calls[i].ID) == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
		if calls[i].Type == "" {
			calls[i].Type = "function"
		}
		switch t.guard.observe(calls[i]) {
		case loopStop:
			return errinfo.AgentLoopDetected(errinfo.PhaseChat, fmt.Sprintf(
				"repeated identical tool call detected: %s (hard stop after %d identical calls in last %d)",
				calls[i].Function.Name, loopDetectionStop, loopDetectionWindow))
		case loopWarn:
			t.o.logger.Warn("engine.loop_warning", "session_id", t.s.ID, "tool", calls[i].Function.Name)
		}
	}
	if strings.TrimSpace(content) != "" {
		t.emit(Event{Kind: EventText, Text: content})
	}

	env := t.s.toolEnv()
	results := make([]llm.ChatMessage, 0, len(calls))
	for _, call := range calls {
		name := call.Function.Name
		t.emit(Event{Kind: EventProgress, Tool: name, Text: fmt.Sprintf("Running %s...", name)})

		ctx, end := t.o.tracer.StartSpan(t.ctx, "tool_call", map[string]any{"tool": name, "tool_call_id": call.ID})
		res := t.o.registry.Dispatch(ctx, env, name, json.RawMessage(call.Function.Arguments))
		var spanErr error
		if res.Error != nil {
			spanErr = res.Error
		}
		end(spanErr)

		if res.Artifact != nil {
			t.emit(Event{Kind: EventArtifact, Tool: name, Artifact: res.Artifact})
		}
		results = append(results, llm.ChatMessage{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Content:    clip(res.Output, t.b.settings.MaxToolOutputChars),
		})
	}
	assistant := llm.ChatMessage{Role: llm.RoleAssistant, Content: content, ToolCalls: calls}
	stats := t.s.Memory.Append(append([]llm.ChatMessage{assistant}, results...)...)
	t.o.logger.Debug("engine.tools_complete", "session_id", t.s.ID, "tools", len(calls), "memory_tokens", stats.Used, "evicted", stats.Evicted)
	return nil
}

// clip keeps at most limit characters, marking the cut.
func clip(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + fmt.Sprintf("\n... (output truncated, %d characters omitted)", len(runes)-limit)
}

func sleepWithContext(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
