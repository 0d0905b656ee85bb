package memory

import (
	"log/slog"
	"sync"

	"axiom/engine/internal/llm"
	"axiom/engine/internal/logging"
)

const (
	messageOverhead  = 4
	toolCallOverhead = 4
	bytesPerToken    = 3
)

// Estimator returns the token cost of one message. It must be monotonic in
// the message's content length.
type Estimator func(llm.ChatMessage) int

// EstimateTokens is a conservative proxy: one token per three bytes, rounded
// up, plus a fixed framing cost per message and per tool call.
func EstimateTokens(msg llm.ChatMessage) int {
	total := messageOverhead + ceilDiv(len(msg.Content), bytesPerToken)
	total += ceilDiv(len(msg.ToolCallID), bytesPerToken)
	for _, call := range msg.ToolCalls {
		total += toolCallOverhead
		total += ceilDiv(len(call.ID)+len(call.Function.Name)+len(call.Function.Arguments), bytesPerToken)
	}
	return total
}

// Stats describes the state after the most recent append.
type Stats struct {
	Used      int
	Budget    int
	Messages  int
	Evicted   int
	Truncated bool
}

// Memory is the conversation history of one session. The system message is
// pinned at the front; everything else is subject to eviction.
type Memory struct {
	mu       sync.Mutex
	system   llm.ChatMessage
	messages []llm.ChatMessage
	budget   int
	estimate Estimator
	logger   *slog.Logger
	stats    Stats
}

type Option func(*Memory)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithEstimator(fn Estimator) Option {
	return func(m *Memory) {
		if fn != nil {
			m.estimate = fn
		}
	}
}

// New creates a memory whose budget is the model context limit minus the
// tokens reserved for the model's output.
func New(systemPrompt string, contextLimit, maxOutput int, opts ...Option) *Memory {
	budget := contextLimit - maxOutput
	if budget <= 0 {
		budget = contextLimit
	}
	m := &Memory{
		system:   llm.ChatMessage{Role: llm.RoleSystem, Content: systemPrompt},
		budget:   budget,
		estimate: EstimateTokens,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stats = Stats{Used: m.estimate(m.system), Budget: m.budget}
	return m
}

// Append adds messages to the tail and evicts until the budget holds. An
// assistant tool-call message should be appended together with its results
// so that no intermediate state leaves intents unanswered.
func (m *Memory) Append(msgs ...llm.ChatMessage) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.messages = append(m.messages, cloneMessage(msg))
	}
	m.enforceBudget()
	return m.stats
}

// Snapshot returns a copy of the history, pinned system message first.
func (m *Memory) Snapshot() []llm.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.ChatMessage, 0, len(m.messages)+1)
	out = append(out, cloneMessage(m.system))
	for _, msg := range m.messages {
		out = append(out, cloneMessage(msg))
	}
	return out
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Memory) Budget() int {
	return m.budget
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *Memory) enforceBudget() {
	used := m.usage()
	evicted := 0
	for used > m.budget {
		start, end, ok := m.nextUnit()
		if !ok {
			break
		}
		for _, msg := range m.messages[start:end] {
			used -= m.estimate(msg)
		}
		evicted += end - start
		m.messages = append(m.messages[:start], m.messages[end:]...)
	}
	if evicted > 0 {
		m.logger.Debug("memory.evicted", "messages", evicted, "used", used, "budget", m.budget)
	}
	truncated := false
	if used > m.budget {
		used, truncated = m.truncateLatestUser(used)
	}
	m.stats = Stats{
		Used:      used,
		Budget:    m.budget,
		Messages:  len(m.messages),
		Evicted:   evicted,
		Truncated: truncated,
	}
}

// nextUnit finds the oldest evictable unit: an assistant message with all of
// its tool results, or a single message. The latest user message is skipped.
func (m *Memory) nextUnit() (int, int, bool) {
	latest := m.latestUser()
	for i := 0; i < len(m.messages); i++ {
		if i == latest {
			continue
		}
		msg := m.messages[i]
		end := i + 1
		if msg.Role == llm.RoleAssistant && len(msg.ToolCalls) > 0 {
			ids := make(map[string]bool, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				ids[call.ID] = true
			}
			for end < len(m.messages) && m.messages[end].Role == llm.RoleTool && ids[m.messages[end].ToolCallID] {
				end++
			}
		}
		return i, end, true
	}
	return 0, 0, false
}

func (m *Memory) latestUser() int {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == llm.RoleUser {
			return i
		}
	}
	return -1
}

func (m *Memory) truncateLatestUser(used int) (int, bool) {
	idx := m.latestUser()
	if idx < 0 {
		m.logger.Warn("memory.over_budget", "used", used, "budget", m.budget)
		return used, false
	}
	msg := m.messages[idx]
	before := m.estimate(msg)
	allowed := m.budget - (used - before)

	runes := []rune(msg.Content)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		candidate := msg
		candidate.Content = string(runes[:mid])
		if m.estimate(candidate) <= allowed {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	msg.Content = string(runes[:lo])
	m.messages[idx] = msg
	after := m.estimate(msg)
	used = used - before + after
	m.logger.Warn("memory.user_truncated",
		"original_chars", len(runes),
		"kept_chars", lo,
		"used", used,
		"budget", m.budget,
	)
	return used, true
}

func (m *Memory) usage() int {
	total := m.estimate(m.system)
	for _, msg := range m.messages {
		total += m.estimate(msg)
	}
	return total
}

func cloneMessage(msg llm.ChatMessage) llm.ChatMessage {
	if len(msg.ToolCalls) > 0 {
		calls := make([]llm.ToolCall, len(msg.ToolCalls))
		copy(calls, msg.ToolCalls)
		msg.ToolCalls = calls
	}
	return msg
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
