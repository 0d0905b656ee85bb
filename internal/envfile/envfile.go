package envfile

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// EnvPathVar names a specific env file to load instead of searching.
const EnvPathVar = "AXIOM_ENV_PATH"

type Result struct {
	Path   string
	Loaded bool
	// Keys lists the variables this load actually set, in file order.
	Keys []string
	Err  error
}

// Load reads the nearest .env above the working directory, or the file named
// by AXIOM_ENV_PATH. Variables already set in the environment win.
func Load() Result {
	if override := strings.TrimSpace(os.Getenv(EnvPathVar)); override != "" {
		return LoadPath(override)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Result{Err: err}
	}
	path := findUpwards(cwd, ".env")
	if path == "" {
		return Result{}
	}
	return LoadPath(path)
}

func LoadPath(path string) Result {
	res := Result{Path: path}
	file, err := os.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer file.Close()
	res.Loaded = true

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			res.Err = err
			return res
		}
		res.Keys = append(res.Keys, key)
	}
	if err := scanner.Err(); err != nil {
		res.Err = err
	}
	return res
}

// parseLine accepts KEY=value with an optional export prefix. Unquoted values
// may carry a trailing " # comment".
func parseLine(raw string) (string, string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	value = strings.TrimSpace(value)
	if unquoted, ok := unquote(value); ok {
		return key, unquoted, true
	}
	if idx := strings.Index(value, " #"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return key, value, true
}

func unquote(value string) (string, bool) {
	if len(value) < 2 {
		return "", false
	}
	first, last := value[0], value[len(value)-1]
	if (first == '"' || first == '\'') && first == last {
		return value[1 : len(value)-1], true
	}
	return "", false
}

func findUpwards(start, filename string) string {
	for dir := start; ; {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
