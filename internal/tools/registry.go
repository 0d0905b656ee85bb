package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/armon/go-radix"
	"github.com/sourcegraph/conc/panics"
	"github.com/xeipuuv/gojsonschema"

	"axiom/engine/internal/errinfo"
	"axiom/engine/internal/llm"
	"axiom/engine/internal/logging"
	"axiom/engine/internal/plan"
	"axiom/engine/internal/sandbox"
)

var ErrDuplicateTool = errors.New("tool already registered")

// Provider is one capability the model can call.
type Provider interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Invoke(ctx context.Context, env *Env, args json.RawMessage) (Output, error)
}

// Env is the per-session state a provider may touch.
type Env struct {
	Sandbox *sandbox.Gatekeeper
	Plan    *plan.Tracker
	Logger  *slog.Logger
}

// ArgumentError reports arguments that do not fit a provider's parameters.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string {
	return "invalid arguments: " + e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

type descriptor struct {
	provider Provider
	schema   llm.Tool
	params   *gojsonschema.Schema
}

// table is immutable once published.
type table struct {
	tree *radix.Tree
}

func (t *table) get(name string) (*descriptor, bool) {
	v, ok := t.tree.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*descriptor), true
}

func (t *table) clone() *table {
	tree := radix.New()
	t.tree.Walk(func(k string, v interface{}) bool {
		tree.Insert(k, v)
		return false
	})
	return &table{tree: tree}
}

// Registry maps tool names to providers. Lookups read an immutable table;
// writers build a new table and swap it in.
type Registry struct {
	mu     sync.Mutex
	table  atomic.Pointer[table]
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &Registry{logger: logger}
	r.table.Store(&table{tree: radix.New()})
	return r
}

// Register adds a provider. A second provider with the same name is rejected.
func (r *Registry) Register(p Provider) error {
	d, err := describe(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.table.Load().clone()
	if _, exists := next.tree.Get(d.schema.Function.Name); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.schema.Function.Name)
	}
	next.tree.Insert(d.schema.Function.Name, d)
	r.table.Store(next)
	return nil
}

// Override registers p, replacing any provider with the same name.
func (r *Registry) Override(p Provider) error {
	d, err := describe(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.table.Load().clone()
	if _, replaced := next.tree.Insert(d.schema.Function.Name, d); replaced {
		r.logger.Info("tools.overridden", "tool", d.schema.Function.Name)
	}
	r.table.Store(next)
	return nil
}

// Rebuild replaces the whole table. On any error the current table is kept.
func (r *Registry) Rebuild(providers []Provider) error {
	next := &table{tree: radix.New()}
	for _, p := range providers {
		d, err := describe(p)
		if err != nil {
			return err
		}
		if _, exists := next.tree.Get(d.schema.Function.Name); exists {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, d.schema.Function.Name)
		}
		next.tree.Insert(d.schema.Function.Name, d)
	}
	r.mu.Lock()
	r.table.Store(next)
	r.mu.Unlock()
	r.logger.Info("tools.rebuilt", "tools", next.tree.Len())
	return nil
}

// Schemas returns the advertised tool definitions ordered by name.
func (r *Registry) Schemas() []llm.Tool {
	t := r.table.Load()
	out := make([]llm.Tool, 0, t.tree.Len())
	t.tree.Walk(func(_ string, v interface{}) bool {
		out = append(out, v.(*descriptor).schema)
		return false
	})
	return out
}

func (r *Registry) Names() []string {
	t := r.table.Load()
	out := make([]string, 0, t.tree.Len())
	t.tree.Walk(func(k string, _ interface{}) bool {
		out = append(out, k)
		return false
	})
	return out
}

func (r *Registry) Has(name string) bool {
	_, ok := r.table.Load().get(name)
	return ok
}

// Dispatch runs the named tool. It never panics and never returns an error:
// every failure becomes a Result with StatusError.
func (r *Registry) Dispatch(ctx context.Context, env *Env, name string, args json.RawMessage) Result {
	start := time.Now()
	res := r.dispatch(ctx, env, name, args)
	attrs := []any{"tool", name, "status", string(res.Status), "duration_ms", time.Since(start).Milliseconds()}
	if res.Error != nil {
		attrs = append(attrs, "error_code", res.Error.ErrorCode)
	}
	r.logger.Info("tools.dispatch", attrs...)
	return res
}

func (r *Registry) dispatch(ctx context.Context, env *Env, name string, args json.RawMessage) Result {
	d, ok := r.table.Load().get(name)
	if !ok {
		return errorResult(fmt.Sprintf("Error: Tool '%s' not found.", name), errinfo.ToolNotFound(errinfo.PhaseTools, name))
	}
	args = normalizeArgs(args)
	if !json.Valid(args) {
		detail := fmt.Sprintf("arguments for '%s' are not valid JSON", name)
		return errorResult("Error: "+detail+".", toolValidation(name, detail))
	}
	if d.params != nil {
		verdict, err := d.params.Validate(gojsonschema.NewBytesLoader(args))
		if err != nil {
			detail := fmt.Sprintf("arguments for '%s' could not be checked: %v", name, err)
			return errorResult("Error: "+detail, toolValidation(name, detail))
		}
		if !verdict.Valid() {
			problems := make([]string, 0, len(verdict.Errors()))
			for _, e := range verdict.Errors() {
				problems = append(problems, e.String())
			}
			detail := fmt.Sprintf("invalid arguments for '%s': %s", name, strings.Join(problems, "; "))
			return errorResult("Error: "+detail, toolValidation(name, detail))
		}
	}

	var (
		out Output
		err error
	)
	var pc panics.Catcher
	pc.Try(func() {
		out, err = d.provider.Invoke(ctx, env, args)
	})
	if recovered := pc.Recovered(); recovered != nil {
		r.logger.Error("tools.panic", "tool", name, "panic", fmt.Sprint(recovered.Value), "stack", string(recovered.Stack))
		detail := fmt.Sprintf("panic: %v", recovered.Value)
		return errorResult(fmt.Sprintf("Error inside tool '%s': %s", name, detail), errinfo.ToolFailed(errinfo.PhaseTools, name, detail))
	}
	if err != nil {
		return classify(name, err)
	}

	switch o := out.(type) {
	case Artifact:
		return Result{Status: StatusOK, Output: o.SummaryText(), Artifact: &o}
	case *Artifact:
		if o == nil {
			return Result{Status: StatusOK, Output: NoOutput}
		}
		return Result{Status: StatusOK, Output: o.SummaryText(), Artifact: o}
	case Text:
		return Result{Status: StatusOK, Output: string(o)}
	default:
		return Result{Status: StatusOK, Output: NoOutput}
	}
}

// classify maps provider errors so callers can tell a security denial from a
// missing file.
func classify(name string, err error) Result {
	var argErr *ArgumentError
	switch {
	case errors.As(err, &argErr):
		return errorResult(fmt.Sprintf("Error executing '%s': %v", name, err), toolValidation(name, err.Error()))
	case errors.Is(err, sandbox.ErrNotInitialized):
		info := errinfo.SandboxNotInitialized(errinfo.PhaseTools, err.Error())
		info.ToolName = name
		return errorResult("Security check failed: "+err.Error(), info)
	case errors.Is(err, sandbox.ErrSecurity):
		info := errinfo.SandboxViolation(errinfo.PhaseTools, err.Error())
		info.ToolName = name
		return errorResult("Security check failed: "+err.Error(), info)
	case errors.Is(err, fs.ErrNotExist):
		info := errinfo.FileNotFound(errinfo.PhaseTools, err.Error())
		info.ToolName = name
		return errorResult("File not found: "+err.Error(), info)
	default:
		return errorResult(fmt.Sprintf("Error inside tool '%s': %v", name, err), errinfo.ToolFailed(errinfo.PhaseTools, name, err.Error()))
	}
}

func toolValidation(name, detail string) *errinfo.ErrorInfo {
	info := errinfo.ValidationFailed(errinfo.PhaseTools, detail)
	info.ToolName = name
	return info
}

func describe(p Provider) (*descriptor, error) {
	if p == nil {
		return nil, errors.New("nil tool provider")
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return nil, errors.New("tool provider has no name")
	}
	params := p.Parameters()
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(params))
	if err != nil {
		return nil, fmt.Errorf("tool %s: invalid parameter schema: %w", name, err)
	}
	return &descriptor{
		provider: p,
		params:   compiled,
		schema: llm.Tool{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        name,
				Description: p.Description(),
				Parameters:  params,
			},
		},
	}, nil
}

// normalizeArgs treats missing or null arguments as an empty object and
// unwraps arguments that arrive as a JSON-encoded string.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage(`{}`)
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			return normalizeArgs(json.RawMessage(inner))
		}
	}
	return json.RawMessage(trimmed)
}

// bind decodes args into dst, reporting shape mismatches as ArgumentError.
func bind(args json.RawMessage, dst any) error {
	if err := json.Unmarshal(args, dst); err != nil {
		return &ArgumentError{Err: err}
	}
	return nil
}
