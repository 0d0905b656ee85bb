package engine

import (
	"crypto/sha256"
	"encoding/hex"

	"axiom/engine/internal/llm"
)

const (
	maxToolCallsPerRound = 16
	loopDetectionWindow  = 10 // sliding window of recent tool calls
	loopDetectionWarning = 3  // identical calls in window to trigger warning
	loopDetectionStop    = 5  // identical calls in window to hard-stop
)

type loopVerdict int

const (
	loopOK loopVerdict = iota
	loopWarn
	loopStop
)

// loopGuard watches one turn for a model repeating the same call.
type loopGuard struct {
	window []string
}

func (g *loopGuard) observe(call llm.ToolCall) loopVerdict {
	g.window = append(g.window, toolCallHash(call))
	if len(g.window) > loopDetectionWindow {
		g.window = g.window[len(g.window)-loopDetectionWindow:]
	}
	counts := make(map[string]int, len(g.window))
	verdict := loopOK
	for _, h := range g.window {
		counts[h]++
		switch {
		case counts[h] >= loopDetectionStop:
			return loopStop
		case counts[h] >= loopDetectionWarning:
			verdict = loopWarn
		}
	}
	return verdict
}

func toolCallHash(call llm.ToolCall) string {
	key := call.Function.Name + ":" + compactArgs(call.Function.Arguments)
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:8])
}
