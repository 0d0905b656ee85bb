package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNotInitialized is returned by Resolve before SetRoot succeeded.
	ErrNotInitialized = errors.New("sandbox not initialized: workspace root not set")
	// ErrSecurity marks every policy denial. It is never used for missing files.
	ErrSecurity           = errors.New("sandbox violation")
	ErrAlreadyInitialized = errors.New("sandbox root already set")
)

// Policy lists the names a resolved path may never traverse.
type Policy struct {
	BlockedFiles map[string]bool
	BlockedDirs  map[string]bool
	HiddenPrefix string
	// MetadataFiles are root-level files the engine itself may read even
	// though tools cannot reach them.
	MetadataFiles map[string]bool
}

func DefaultPolicy() Policy {
	return Policy{
		BlockedFiles:  setOf(".env", ".env.local", "secrets.json", "id_rsa", ".DS_Store"),
		BlockedDirs:   setOf(".git", ".vscode", ".idea", "__pycache__", "env", "venv", "node_modules"),
		HiddenPrefix:  ".",
		MetadataFiles: setOf(".gitignore"),
	}
}

// Blocked reports whether a single path segment is denied by the policy.
func (p Policy) Blocked(segment string) (bool, string) {
	if p.BlockedFiles[segment] || p.BlockedDirs[segment] {
		return true, fmt.Sprintf("'%s' is restricted", segment)
	}
	if p.HiddenPrefix != "" && strings.HasPrefix(segment, p.HiddenPrefix) {
		return true, fmt.Sprintf("hidden item '%s' is protected", segment)
	}
	return false, ""
}

// Gatekeeper owns the workspace root of one session.
type Gatekeeper struct {
	mu     sync.RWMutex
	root   string
	policy Policy
}

func New(policy Policy) *Gatekeeper {
	return &Gatekeeper{policy: policy}
}

// SetRoot canonicalizes path and stores it. It may succeed only once; repeating
// the call with the same canonical root is accepted.
func (g *Gatekeeper) SetRoot(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("workspace path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to set workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("workspace path does not exist: %s: %w", path, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("workspace path does not exist: %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace path is not a directory: %s", path)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.root != "" {
		if g.root == resolved {
			return g.root, nil
		}
		return "", fmt.Errorf("%w: %s", ErrAlreadyInitialized, g.root)
	}
	g.root = resolved
	return g.root, nil
}

func (g *Gatekeeper) Root() (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.root == "" {
		return "", ErrNotInitialized
	}
	return g.root, nil
}

func (g *Gatekeeper) Initialized() bool {
	_, err := g.Root()
	return err == nil
}

// Resolve maps a workspace path (relative to the root, or absolute inside it)
// to a canonical absolute path that is safe to read or write.
func (g *Gatekeeper) Resolve(path string) (string, error) {
	root, err := g.Root()
	if err != nil {
		return "", err
	}
	target := path
	if strings.TrimSpace(target) == "" {
		target = "."
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	resolved, err := canonicalize(filepath.Clean(target))
	if err != nil {
		return "", fmt.Errorf("%w: invalid path structure: %s", ErrSecurity, path)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || !isDescendant(rel) {
		return "", fmt.Errorf("%w: access denied, path '%s' is outside the workspace", ErrSecurity, path)
	}
	if rel == "." {
		return resolved, nil
	}
	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if blocked, reason := g.policy.Blocked(segment); blocked {
			return "", fmt.Errorf("%w: access denied, %s", ErrSecurity, reason)
		}
	}
	return resolved, nil
}

// ReadMetadata reads a workspace metadata file such as .gitignore that sits
// directly under the root. Only names listed in Policy.MetadataFiles are
// allowed, and the file must not be a link to anywhere else.
func (g *Gatekeeper) ReadMetadata(name string) ([]byte, error) {
	root, err := g.Root()
	if err != nil {
		return nil, err
	}
	if !g.policy.MetadataFiles[name] || name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: access denied, '%s' is not a workspace metadata file", ErrSecurity, name)
	}
	if g.policy.BlockedFiles[name] {
		return nil, fmt.Errorf("%w: access denied, '%s' is restricted", ErrSecurity, name)
	}
	target := filepath.Join(root, name)
	resolved, err := canonicalize(target)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid path structure: %s", ErrSecurity, name)
	}
	if resolved != target {
		return nil, fmt.Errorf("%w: access denied, '%s' is a link", ErrSecurity, name)
	}
	return os.ReadFile(target)
}

// Rel returns the workspace-relative form of an already resolved path.
func (g *Gatekeeper) Rel(resolved string) string {
	root, err := g.Root()
	if err != nil {
		return resolved
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return resolved
	}
	return filepath.ToSlash(rel)
}

func (g *Gatekeeper) Policy() Policy {
	return g.policy
}

func isDescendant(rel string) bool {
	if filepath.IsAbs(rel) {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

// canonicalize resolves symlinks on the deepest existing ancestor of path so
// that targets which do not exist yet (new files) are still checked against
// their real parent directory.
func canonicalize(path string) (string, error) {
	var missing []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		// A link whose target is missing would be followed on write.
		if _, lerr := os.Lstat(current); lerr == nil {
			return "", fmt.Errorf("dangling symlink: %s", current)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

func setOf(values ...string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
