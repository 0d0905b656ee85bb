package engine

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"axiom/engine/internal/llm"
)

var (
	fencePattern    = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\n?```$")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// recoverToolCall turns a reply that is nothing but a JSON tool invocation,
// a known habit of small local models, into a structured call.
func recoverToolCall(content string) (llm.ToolCall, bool) {
	text := strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return llm.ToolCall{}, false
	}
	raw, ok := decodeSingleObject(text)
	if !ok {
		raw, ok = decodeSingleObject(trailingCommaRe.ReplaceAllString(text, "$1"))
		if !ok {
			return llm.ToolCall{}, false
		}
	}

	var nameField string
	if err := json.Unmarshal(raw["name"], &nameField); err != nil || strings.TrimSpace(nameField) == "" {
		return llm.ToolCall{}, false
	}
	args, hasArgs := raw["arguments"]
	if !hasArgs {
		args, hasArgs = raw["parameters"]
	}
	if !hasArgs {
		return llm.ToolCall{}, false
	}
	arguments := strings.TrimSpace(string(args))
	var encoded string
	if err := json.Unmarshal(args, &encoded); err == nil {
		arguments = encoded
	}
	if arguments == "" || arguments == "null" {
		arguments = "{}"
	}
	return llm.ToolCall{
		ID:   "call_" + uuid.NewString(),
		Type: "function",
		Function: llm.ToolCallFunction{
			Name:      strings.TrimSpace(nameField),
			Arguments: arguments,
		},
	}, true
}

func decodeSingleObject(text string) (map[string]json.RawMessage, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return obj, true
}

// compactArgs gives a canonical form of tool arguments for loop detection.
func compactArgs(arguments string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(arguments)); err != nil {
		return strings.TrimSpace(arguments)
	}
	return buf.String()
}
