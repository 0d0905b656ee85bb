package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"axiom/engine/internal/logging"
	"axiom/engine/internal/memory"
	"axiom/engine/internal/plan"
	"axiom/engine/internal/sandbox"
	"axiom/engine/internal/tools"
)

const DefaultSessionID = "default"

type SessionOptions struct {
	SystemPrompt string
	// MemoryBudget is the history token ceiling, already net of the tokens
	// reserved for the model's output.
	MemoryBudget int
	Policy       sandbox.Policy
	Logger       *slog.Logger
}

// Session is everything one conversation owns. Sessions never share memory,
// sandbox root or plan.
type Session struct {
	ID        string
	Memory    *memory.Memory
	Sandbox   *sandbox.Gatekeeper
	Plan      *plan.Tracker
	CreatedAt time.Time

	logger *slog.Logger
	// turnMu serializes turns; tool calls of one session never overlap.
	turnMu sync.Mutex
}

// NewSession creates a session. An empty id gets a random one.
func NewSession(id string, opts SessionOptions) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("session_id", id)
	policy := opts.Policy
	if policy.BlockedFiles == nil && policy.BlockedDirs == nil {
		policy = sandbox.DefaultPolicy()
	}
	return &Session{
		ID:        id,
		Memory:    memory.New(opts.SystemPrompt, opts.MemoryBudget, 0, memory.WithLogger(logger)),
		Sandbox:   sandbox.New(policy),
		Plan:      plan.NewTracker(),
		CreatedAt: time.Now().UTC(),
		logger:    logger,
	}
}

func (s *Session) toolEnv() *tools.Env {
	return &tools.Env{Sandbox: s.Sandbox, Plan: s.Plan, Logger: s.logger}
}
