package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"axiom/engine/internal/config"
	"axiom/engine/internal/errinfo"
	"axiom/engine/internal/logging"
	"axiom/engine/internal/sandbox"
	"axiom/engine/internal/tools"
)

const EngineVersion = "0.3.0"

// QuickService answers the stateless editor requests.
type QuickService interface {
	InlineCompletion(ctx context.Context, code string, cursorLine int, language string) *string
	Hover(ctx context.Context, symbol, snippet string) string
}

type Engine struct {
	logger       *slog.Logger
	registry     *tools.Registry
	orchestrator *Orchestrator
	quick        QuickService
	turnOpts     []OrchestratorOption

	mu       sync.Mutex
	sessions map[string]*Session
	session  SessionOptions
	disabled []string
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithQuick(quick QuickService) Option {
	return func(e *Engine) {
		if quick != nil {
			e.quick = quick
		}
	}
}

// WithTurnOptions passes options through to the orchestrator.
func WithTurnOptions(opts ...OrchestratorOption) Option {
	return func(e *Engine) {
		e.turnOpts = append(e.turnOpts, opts...)
	}
}

func New(cfg config.Config, client LLMClient, opts ...Option) (*Engine, error) {
	e := &Engine{logger: logging.Nop(), sessions: make(map[string]*Session)}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = tools.NewRegistry(e.logger.With("component", "tools"))
	if err := e.registry.Rebuild(tools.Builtins(cfg.Tools.Disabled)); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	turnOpts := append([]OrchestratorOption{WithOrchestratorLogger(e.logger)}, e.turnOpts...)
	e.orchestrator = NewOrchestrator(client, e.registry, settingsFromConfig(cfg), turnOpts...)
	e.session = sessionOptionsFromConfig(cfg, e.logger)
	e.disabled = append([]string(nil), cfg.Tools.Disabled...)
	e.logger.Debug("engine.init", "model", cfg.Model.ChatModel, "tools", e.registry.Names())
	return e, nil
}

func settingsFromConfig(cfg config.Config) Settings {
	return Settings{
		Model:              cfg.Model.ChatModel,
		Temperature:        cfg.Model.Temperature,
		MaxOutputTokens:    cfg.Model.MaxOutputTokens,
		MaxAttempts:        cfg.Agent.MaxAttempts,
		RetryBackoff:       cfg.Agent.RetryBackoff,
		MaxToolRounds:      cfg.Agent.MaxToolRounds,
		MaxToolOutputChars: cfg.Agent.MaxToolOutputChars,
	}
}

func sessionOptionsFromConfig(cfg config.Config, logger *slog.Logger) SessionOptions {
	return SessionOptions{
		SystemPrompt: cfg.Agent.SystemPrompt,
		MemoryBudget: cfg.MemoryBudget(),
		Policy:       sandbox.DefaultPolicy(),
		Logger:       logger,
	}
}

// Reconfigure applies a new configuration. The tool table and turn settings
// are swapped atomically; existing sessions keep their memory and root.
// A nil client keeps the current one.
func (e *Engine) Reconfigure(cfg config.Config, client LLMClient) error {
	if err := e.registry.Rebuild(tools.Builtins(cfg.Tools.Disabled)); err != nil {
		e.logger.Warn("engine.reconfigure_failed", "error", err.Error())
		return err
	}
	e.orchestrator.Swap(client, settingsFromConfig(cfg))
	e.mu.Lock()
	e.session = sessionOptionsFromConfig(cfg, e.logger)
	e.disabled = append([]string(nil), cfg.Tools.Disabled...)
	e.mu.Unlock()
	e.logger.Info("engine.reconfigured", "model", cfg.Model.ChatModel, "tools", e.registry.Names())
	return nil
}

func (e *Engine) Registry() *tools.Registry {
	return e.registry
}

func (e *Engine) Orchestrator() *Orchestrator {
	return e.orchestrator
}

// Session returns the session with id, creating it on first use.
func (e *Engine) Session(id string) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultSessionID
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[id]; ok {
		return s
	}
	s := NewSession(id, e.session)
	e.sessions[id] = s
	e.logger.Info("engine.session_created", "session_id", id)
	return s
}

type sessionData struct {
	SessionID string `json:"session_id"`
}

func decode(phase string, data json.RawMessage, dst any) *errinfo.ErrorInfo {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errinfo.ValidationFailed(phase, "invalid data: "+err.Error())
	}
	return nil
}

func (e *Engine) Initialize(_ context.Context, data json.RawMessage) (map[string]any, *errinfo.ErrorInfo) {
	var in struct {
		sessionData
		Root string `json:"root"`
	}
	if info := decode(errinfo.PhaseInitialize, data, &in); info != nil {
		return nil, info
	}
	if strings.TrimSpace(in.Root) == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseInitialize, "root is required")
	}
	s := e.Session(in.SessionID)
	root, err := s.Sandbox.SetRoot(in.Root)
	if err != nil {
		e.logger.Warn("engine.initialize_failed", "session_id", s.ID, "root", in.Root, "error", err.Error())
		var info *errinfo.ErrorInfo
		if errors.Is(err, fs.ErrNotExist) {
			info = errinfo.FileNotFound(errinfo.PhaseInitialize, err.Error())
		} else {
			info = errinfo.ValidationFailed(errinfo.PhaseInitialize, err.Error())
		}
		info.SessionID = s.ID
		return nil, info
	}
	e.logger.Info("engine.initialized", "session_id", s.ID, "root", root)
	return map[string]any{"status": "ok", "root": root, "session_id": s.ID}, nil
}

func (e *Engine) InlineCompletion(ctx context.Context, data json.RawMessage) (map[string]any, *errinfo.ErrorInfo) {
	var in struct {
		Code       string `json:"code"`
		CursorLine int    `json:"cursor_line"`
		Language   string `json:"language"`
	}
	if info := decode(errinfo.PhaseInline, data, &in); info != nil {
		return nil, info
	}
	if in.Language == "" {
		in.Language = "python"
	}
	var completion *string
	if e.quick != nil {
		completion = e.quick.InlineCompletion(ctx, in.Code, in.CursorLine, in.Language)
	}
	return map[string]any{"completion": completion}, nil
}

func (e *Engine) Hover(ctx context.Context, data json.RawMessage) (map[string]any, *errinfo.ErrorInfo) {
	var in struct {
		Symbol  string `json:"symbol"`
		Context string `json:"context"`
	}
	if info := decode(errinfo.PhaseHover, data, &in); info != nil {
		return nil, info
	}
	if e.quick == nil {
		return map[string]any{"tooltip": "Axiom could not explain this symbol."}, nil
	}
	return map[string]any{"tooltip": e.quick.Hover(ctx, in.Symbol, in.Context)}, nil
}

// Chat runs one full turn and folds its events into a single reply.
func (e *Engine) Chat(ctx context.Context, data json.RawMessage) (map[string]any, *errinfo.ErrorInfo) {
	var in struct {
		sessionData
		Prompt string `json:"prompt"`
	}
	if info := decode(errinfo.PhaseChat, data, &in); info != nil {
		return nil, info
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseChat, "prompt is required")
	}
	s := e.Session(in.SessionID)
	reply := Collect(e.orchestrator.Turn(ctx, s, in.Prompt))

	out := map[string]any{
		"response":   reply.Response,
		"components": reply.Components,
	}
	if reply.Error != nil {
		if reply.Response == "" {
			out["response"] = "Error: " + reply.Error.Error()
		}
		out["error"] = reply.Error.ErrorCode
		out["error_info"] = reply.Error
	}
	return out, nil
}

func (e *Engine) ReloadTools(_ context.Context, _ json.RawMessage) (map[string]any, *errinfo.ErrorInfo) {
	e.mu.Lock()
	disabled := append([]string(nil), e.disabled...)
	e.mu.Unlock()
	if err := e.registry.Rebuild(tools.Builtins(disabled)); err != nil {
		return nil, errinfo.Internal(errinfo.PhaseTools, err.Error())
	}
	return map[string]any{"status": "ok", "tools": e.registry.Names()}, nil
}

func (e *Engine) Plan(_ context.Context, data json.RawMessage) (map[string]any, *errinfo.ErrorInfo) {
	var in sessionData
	if info := decode(errinfo.PhaseTools, data, &in); info != nil {
		return nil, info
	}
	state, ok := e.Session(in.SessionID).Plan.Current()
	if !ok {
		return map[string]any{"plan": nil}, nil
	}
	return map[string]any{"plan": state}, nil
}
