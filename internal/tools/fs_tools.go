package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	ignore "github.com/sabhiram/go-gitignore"

	"axiom/engine/internal/sandbox"
)

const (
	maxListEntries = 500
	maxReadBytes   = 1 << 20
)

func (e *Env) gatekeeper() (*sandbox.Gatekeeper, error) {
	if e == nil || e.Sandbox == nil {
		return nil, sandbox.ErrNotInitialized
	}
	return e.Sandbox, nil
}

func (e *Env) resolve(p string) (string, error) {
	g, err := e.gatekeeper()
	if err != nil {
		return "", err
	}
	return g.Resolve(p)
}

type listFiles struct{}

func (listFiles) Name() string { return "list_files" }

func (listFiles) Description() string {
	return "List files and directories in the workspace. Paths are relative to the workspace root. Directories end with '/'."
}

func (listFiles) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory relative to the workspace root (default: root)"},
			"recursive": {"type": "boolean", "description": "Descend into subdirectories (default: true)"}
		},
		"required": []
	}`)
}

func (listFiles) Invoke(_ context.Context, env *Env, args json.RawMessage) (Output, error) {
	var in struct {
		Path      string `json:"path"`
		Recursive *bool  `json:"recursive"`
	}
	if err := bind(args, &in); err != nil {
		return nil, err
	}
	recursive := in.Recursive == nil || *in.Recursive

	g, err := env.gatekeeper()
	if err != nil {
		return nil, err
	}
	dir, err := g.Resolve(in.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", in.Path, fs.ErrNotExist)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", in.Path)
	}
	matcher := loadIgnore(g)
	policy := g.Policy()

	var entries []string
	truncated := false
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == dir {
				return walkErr
			}
			return nil
		}
		if p == dir {
			return nil
		}
		if blocked, _ := policy.Blocked(d.Name()); blocked {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel := g.Rel(p)
		if matcher != nil && (matcher.MatchesPath(rel) || (d.IsDir() && matcher.MatchesPath(rel+"/"))) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if len(entries) >= maxListEntries {
			truncated = true
			return filepath.SkipAll
		}
		if d.IsDir() {
			entries = append(entries, rel+"/")
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return Text("(empty directory)"), nil
	}
	sort.Strings(entries)
	out := strings.Join(entries, "\n")
	if truncated {
		out += fmt.Sprintf("\n... (truncated after %d entries)", maxListEntries)
	}
	return Text(out), nil
}

// loadIgnore compiles the workspace .gitignore, if any.
func loadIgnore(g *sandbox.Gatekeeper) *ignore.GitIgnore {
	data, err := g.ReadMetadata(".gitignore")
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}

type readFile struct{}

func (readFile) Name() string { return "read_file" }

func (readFile) Description() string {
	return "Read the full text content of a file in the workspace."
}

func (readFile) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "File path relative to the workspace root"}
		},
		"required": ["file_path"]
	}`)
}

func (readFile) Invoke(_ context.Context, env *Env, args json.RawMessage) (Output, error) {
	var in struct {
		FilePath string `json:"file_path"`
	}
	if err := bind(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FilePath) == "" {
		return nil, &ArgumentError{Err: errors.New("file_path is required")}
	}
	p, err := env.resolve(in.FilePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", in.FilePath, fs.ErrNotExist)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, use list_files", in.FilePath)
	}
	if info.Size() > maxReadBytes {
		return nil, fmt.Errorf("%s is too large to read (%d bytes)", in.FilePath, info.Size())
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not a text file", in.FilePath)
	}
	return Text(string(data)), nil
}

type editFile struct{}

func (editFile) Name() string { return "edit_file" }

func (editFile) Description() string {
	return "Overwrite a file with the provided content, creating it and its parent directories if needed."
}

func (editFile) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "Path of the file to write, relative to workdir or the workspace root"},
			"content": {"type": "string", "description": "The complete new content of the file"},
			"workdir": {"type": "string", "description": "Optional directory, relative to the workspace root"}
		},
		"required": ["file_path", "content"]
	}`)
}

func (editFile) Invoke(_ context.Context, env *Env, args json.RawMessage) (Output, error) {
	var in struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
		Workdir  string `json:"workdir"`
	}
	if err := bind(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FilePath) == "" {
		return nil, &ArgumentError{Err: errors.New("file_path is required")}
	}
	target := in.FilePath
	if in.Workdir != "" {
		target = path.Join(in.Workdir, in.FilePath)
	}
	p, err := env.resolve(target)
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(p); statErr == nil && info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", in.FilePath)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.WriteFile(p, []byte(in.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	return Text(fmt.Sprintf("Successfully wrote %d characters to %s", utf8.RuneCountInString(in.Content), in.FilePath)), nil
}
