// Package quick serves the stateless single-shot model calls used by the
// editor: inline completion and symbol hover. Neither touches session memory.
package quick

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"axiom/engine/internal/llm"
	"axiom/engine/internal/logging"
)

const (
	InlineSystemPrompt = "Complete the code. Output ONLY the completion code. No markdown. No repetition."
	HoverSystemPrompt  = "You are a coding assistant. Explain the symbol in 1 sentence."

	InlineMaxTokens   = 50
	InlineTemperature = 0.1
	HoverMaxTokens    = 150
	HoverTemperature  = 0.2

	NoExplanation    = "No explanation generated."
	HoverUnavailable = "Axiom could not explain this symbol."
)

var openingFence = regexp.MustCompile("^```\\w*\\s*")

type Service struct {
	inline Generator
	hover  Generator
	logger *slog.Logger
}

func New(inline, hover Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{inline: inline, hover: hover, logger: logger}
}

// NewOllama builds both generators against one Ollama server.
func NewOllama(baseURL, inlineModel, hoverModel string, logger *slog.Logger) (*Service, error) {
	inline, err := NewGollmGenerator(GeneratorOptions{
		Endpoint:    baseURL,
		Model:       inlineModel,
		MaxTokens:   InlineMaxTokens,
		Temperature: InlineTemperature,
		Stop:        []string{"\n"},
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	hover, err := NewGollmGenerator(GeneratorOptions{
		Endpoint:    baseURL,
		Model:       hoverModel,
		MaxTokens:   HoverMaxTokens,
		Temperature: HoverTemperature,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return New(inline, hover, logger), nil
}

// InlineCompletion continues the line at cursorLine. It returns nil when the
// model has nothing useful to add or the call fails.
func (s *Service) InlineCompletion(ctx context.Context, code string, cursorLine int, language string) *string {
	lines := strings.Split(code, "\n")
	prefix := ""
	if cursorLine >= 0 && cursorLine < len(lines) {
		prefix = lines[cursorLine]
	}
	if s.inline == nil {
		return nil
	}
	ctx = llm.WithRequestProfile(ctx, llm.RequestProfile{Purpose: llm.PurposeInline})
	raw, err := s.inline.Generate(ctx, InlineSystemPrompt, prefix)
	if err != nil {
		s.logger.Warn("quick.inline_failed", "language", language, "error", err.Error())
		return nil
	}
	completion, ok := cleanCompletion(raw, prefix)
	s.logger.Debug("quick.inline", "language", language, "raw_len", len(raw), "accepted", ok)
	if !ok {
		return nil
	}
	return &completion
}

func cleanCompletion(raw, prefix string) (string, bool) {
	if raw == "" {
		return "", false
	}
	clean := openingFence.ReplaceAllString(raw, "")
	clean = strings.ReplaceAll(clean, "```", "")
	completion := strings.TrimRight(strings.SplitN(clean, "\n", 2)[0], " \t\r")

	switch {
	case completion == prefix:
		return "", false
	case prefix != "" && strings.HasPrefix(completion, prefix):
		completion = completion[len(prefix):]
	}
	if strings.TrimSpace(completion) == "" {
		return "", false
	}
	return completion, true
}

// Hover explains symbol in one sentence. It always returns display text.
func (s *Service) Hover(ctx context.Context, symbol, snippet string) string {
	if s.hover == nil {
		return HoverUnavailable
	}
	ctx = llm.WithRequestProfile(ctx, llm.RequestProfile{Purpose: llm.PurposeHover})
	text, err := s.hover.Generate(ctx, HoverSystemPrompt, fmt.Sprintf("Symbol: %s\nContext:\n%s", symbol, snippet))
	if err != nil {
		s.logger.Warn("quick.hover_failed", "symbol", symbol, "error", err.Error())
		return HoverUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return NoExplanation
	}
	return text
}
