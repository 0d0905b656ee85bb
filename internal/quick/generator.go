package quick

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/teilomillet/gollm"

	"axiom/engine/internal/llm"
	"axiom/engine/internal/logging"
)

// Generator produces one completion for a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type GeneratorOptions struct {
	// Endpoint is the Ollama server root, without the /v1 suffix.
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float64
	Stop        []string
	Logger      *slog.Logger
}

// GollmGenerator sends single-shot prompts through gollm's ollama provider.
// The gollm client is created on first use; gollm checks the server when it
// is built, so a generator made while Ollama is still starting recovers on a
// later call.
type GollmGenerator struct {
	opts   GeneratorOptions
	logger *slog.Logger

	mu     sync.Mutex
	llm    gollm.LLM
	system string
}

func NewGollmGenerator(opts GeneratorOptions) (*GollmGenerator, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("generator model is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &GollmGenerator{opts: opts, logger: logger.With("model", opts.Model)}, nil
}

// requestOptions is the Ollama "options" object. /api/generate ignores
// sampling fields outside of it.
func (g *GollmGenerator) requestOptions() map[string]any {
	options := map[string]any{
		"temperature": g.opts.Temperature,
	}
	if g.opts.MaxTokens > 0 {
		options["num_predict"] = g.opts.MaxTokens
	}
	if len(g.opts.Stop) > 0 {
		options["stop"] = g.opts.Stop
	}
	return options
}

func (g *GollmGenerator) client() (gollm.LLM, error) {
	if g.llm != nil {
		return g.llm, nil
	}
	cfg := []gollm.ConfigOption{
		gollm.SetProvider("ollama"),
		gollm.SetModel(g.opts.Model),
		gollm.SetMaxTokens(g.opts.MaxTokens),
		gollm.SetTemperature(g.opts.Temperature),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if endpoint := OllamaEndpoint(g.opts.Endpoint); endpoint != "" {
		cfg = append(cfg, gollm.SetOllamaEndpoint(endpoint))
	}
	client, err := gollm.NewLLM(cfg...)
	if err != nil {
		return nil, fmt.Errorf("create %s generator: %w", g.opts.Model, err)
	}
	client.SetOption("options", g.requestOptions())
	client.SetOption("stream", false)
	g.llm = client
	return client, nil
}

// Generate sends user as the whole prompt and system as Ollama's system
// field. Calls on one generator are serialized.
func (g *GollmGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	client, err := g.client()
	if err != nil {
		return "", err
	}
	if system != g.system {
		client.SetOption("system", system)
		g.system = system
	}
	purpose := ""
	if profile, ok := llm.RequestProfileFromContext(ctx); ok {
		purpose = profile.Purpose
	}
	g.logger.Debug("quick.generate", "purpose", purpose, "prompt_chars", len(user))
	return client.Generate(ctx, &gollm.Prompt{Input: user})
}

// OllamaEndpoint turns an OpenAI-compatible base URL into the server root.
func OllamaEndpoint(baseURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return strings.TrimSuffix(trimmed, "/v1")
}
