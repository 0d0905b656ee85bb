package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"axiom/engine/internal/logging"
)

const (
	EnvPrefix      = "AXIOM"
	configName     = "config"
	configType     = "yaml"
	DefaultSystem  = "You are Axiom, a coding assistant working inside the user's workspace. Inspect files with the available tools before answering. Propose changes with propose_edit and only write files with edit_file when the user asks you to apply them. Keep answers short and concrete."
	defaultBaseURL = "http://localhost:11434/v1"
)

// Config stores all configuration of the engine.
type Config struct {
	Model ModelConfig `mapstructure:"model"`
	Agent AgentConfig `mapstructure:"agent"`
	Tools ToolsConfig `mapstructure:"tools"`
	Trace TraceConfig `mapstructure:"trace"`
}

type ModelConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	ChatModel       string        `mapstructure:"chat_model"`
	InlineModel     string        `mapstructure:"inline_model"`
	ContextLimit    int           `mapstructure:"context_limit"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	AllowedHosts    []string      `mapstructure:"allowed_hosts"`
}

type AgentConfig struct {
	MaxAttempts        int           `mapstructure:"max_attempts"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	MaxToolRounds      int           `mapstructure:"max_tool_rounds"`
	MaxToolOutputChars int           `mapstructure:"max_tool_output_chars"`
	SystemPrompt       string        `mapstructure:"system_prompt"`
}

type ToolsConfig struct {
	Disabled []string `mapstructure:"disabled"`
}

type TraceConfig struct {
	Level string `mapstructure:"level"`
}

// Loader owns one viper instance so tests and sessions never share globals.
type Loader struct {
	v      *viper.Viper
	logger *slog.Logger
}

// Load reads config.yaml from path, or searches dirs in order. A missing
// file is not an error; defaults and AXIOM_* variables still apply.
func Load(path string, dirs []string, logger *slog.Logger) (*Loader, Config, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		for _, dir := range dirs {
			if strings.TrimSpace(dir) != "" {
				v.AddConfigPath(dir)
			}
		}
		v.SetConfigName(configName)
		v.SetConfigType(configType)
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	l := &Loader{v: v, logger: logger}
	cfg, err := l.Config()
	if err != nil {
		return nil, Config{}, err
	}
	return l, cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.base_url", defaultBaseURL)
	v.SetDefault("model.api_key", "ollama")
	v.SetDefault("model.chat_model", "qwen2.5-coder:1.5b")
	v.SetDefault("model.inline_model", "qwen2.5-coder:0.5b")
	v.SetDefault("model.context_limit", 32768)
	v.SetDefault("model.max_output_tokens", 4096)
	v.SetDefault("model.temperature", 0.1)
	v.SetDefault("model.request_timeout", 120*time.Second)
	v.SetDefault("model.allowed_hosts", []string{"localhost", "127.0.0.1", "::1"})

	v.SetDefault("agent.max_attempts", 3)
	v.SetDefault("agent.retry_backoff", time.Second)
	v.SetDefault("agent.max_tool_rounds", 20)
	v.SetDefault("agent.max_tool_output_chars", 16000)
	v.SetDefault("agent.system_prompt", DefaultSystem)

	v.SetDefault("tools.disabled", []string{})
	v.SetDefault("trace.level", "disabled")
}

// Config decodes and validates the current values.
func (l *Loader) Config() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// File reports the config file in use, or "" when running on defaults.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls fn with the new configuration whenever the config file changes.
// Invalid edits are logged and skipped.
func (l *Loader) Watch(fn func(Config)) bool {
	if l.File() == "" {
		return false
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.Config()
		if err != nil {
			l.logger.Warn("config.reload_failed", "file", e.Name, "error", err.Error())
			return
		}
		l.logger.Info("config.reloaded", "file", e.Name, "op", e.Op.String())
		fn(cfg)
	})
	l.v.WatchConfig()
	return true
}

func (c Config) Validate() error {
	if c.Model.ContextLimit <= 0 {
		return errors.New("model.context_limit must be positive")
	}
	if c.Model.MaxOutputTokens < 0 || c.Model.MaxOutputTokens >= c.Model.ContextLimit {
		return fmt.Errorf("model.max_output_tokens must be below model.context_limit (%d)", c.Model.ContextLimit)
	}
	if c.Agent.MaxAttempts < 1 {
		return errors.New("agent.max_attempts must be at least 1")
	}
	if c.Agent.RetryBackoff < 0 {
		return errors.New("agent.retry_backoff must not be negative")
	}
	if c.Agent.MaxToolRounds < 1 {
		return errors.New("agent.max_tool_rounds must be at least 1")
	}
	if strings.TrimSpace(c.Model.ChatModel) == "" {
		return errors.New("model.chat_model is required")
	}
	return nil
}

// MemoryBudget is the token ceiling for conversation history.
func (c Config) MemoryBudget() int {
	return c.Model.ContextLimit - c.Model.MaxOutputTokens
}
