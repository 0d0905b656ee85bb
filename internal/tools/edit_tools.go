package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"axiom/engine/internal/diff"
)

const diffSummary = "Diff generated and displayed to user."

var errSearchNotFound = errors.New("Search block not found. Please ensure the 'search_text' matches the file content exactly.")

// proposeEdit computes a search/replace edit without writing it and hands
// the diff to the editor for review.
type proposeEdit struct{}

func (proposeEdit) Name() string { return "propose_edit" }

func (proposeEdit) Description() string {
	return "Propose an edit to a file by replacing one exact block of text. The resulting diff is shown to the user for review; the file is not modified."
}

func (proposeEdit) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "File path relative to the workspace root"},
			"search_text": {"type": "string", "description": "The exact text block to find and replace"},
			"replace_text": {"type": "string", "description": "The new text to insert"}
		},
		"required": ["file_path", "search_text", "replace_text"]
	}`)
}

func (proposeEdit) Invoke(_ context.Context, env *Env, args json.RawMessage) (Output, error) {
	var in struct {
		FilePath    string `json:"file_path"`
		SearchText  string `json:"search_text"`
		ReplaceText string `json:"replace_text"`
	}
	if err := bind(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FilePath) == "" {
		return nil, &ArgumentError{Err: errors.New("file_path is required")}
	}
	if in.SearchText == "" {
		return nil, &ArgumentError{Err: errors.New("search_text must not be empty")}
	}
	p, err := env.resolve(in.FilePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", in.FilePath, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("edit failed: %w", err)
	}

	content := normalizeNewlines(string(data))
	search := normalizeNewlines(in.SearchText)
	if !strings.Contains(content, search) {
		return nil, errSearchNotFound
	}
	updated := strings.Replace(content, search, in.ReplaceText, 1)

	rendered, skipped := diff.UnifiedWithLimit(in.FilePath, content, updated, diff.MaxDiffLines)
	if skipped {
		return nil, fmt.Errorf("edit failed: %s is too large to diff", in.FilePath)
	}
	return Artifact{
		Kind:    ArtifactDiff,
		Summary: diffSummary,
		Payload: map[string]any{
			"file":    in.FilePath,
			"diff":    rendered,
			"search":  in.SearchText,
			"replace": in.ReplaceText,
		},
	}, nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
