package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"axiom/engine/internal/appdirs"
	"axiom/engine/internal/config"
	"axiom/engine/internal/engine"
	"axiom/engine/internal/envfile"
	"axiom/engine/internal/envutil"
	"axiom/engine/internal/errinfo"
	"axiom/engine/internal/logging"
	"axiom/engine/internal/ollama"
	"axiom/engine/internal/quick"
	"axiom/engine/internal/rpc"
	"axiom/engine/internal/trace"
)

func main() {
	envResult := envfile.Load()
	debug := envutil.Bool("AXIOM_DEBUG")
	dataDir, err := appdirs.DataDir()
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}
	logSetup, logErr := logging.NewFileLogger(dataDir, debug)
	logger := logSetup.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("component", "engine", "version", engine.EngineVersion)
	if logSetup.Enabled {
		logger.Info("engine.logging_enabled", "path", logSetup.Path)
	}
	if envResult.Loaded {
		logger.Debug("engine.env_loaded", "path", envResult.Path, "keys", envResult.Keys)
	}
	if envResult.Err != nil {
		logger.Warn("engine.env_load_failed", "path", envResult.Path, "error", envResult.Err.Error())
	}
	if logErr != nil {
		logger.Warn("engine.log_setup_failed", "error", logErr.Error())
	}
	if logSetup.Close != nil {
		defer logSetup.Close()
	}

	loader, cfg, err := config.Load(envutil.String("AXIOM_CONFIG", ""), appdirs.ConfigSearchPath(dataDir), logger)
	if err != nil {
		logger.Error("engine.config_failed", "error", err.Error())
		log.Fatalf("engine config failed: %v", err)
	}
	if file := loader.File(); file != "" {
		logger.Info("engine.config_loaded", "path", file)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newChatClient(ctx, cfg, logger)
	quickSvc, err := quick.NewOllama(cfg.Model.BaseURL, cfg.Model.InlineModel, cfg.Model.ChatModel, logger.With("component", "quick"))
	if err != nil {
		// Editor features degrade to empty answers; chat still works.
		logger.Warn("engine.quick_unavailable", "error", err.Error())
	}
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithTurnOptions(engine.WithTracer(trace.New(os.Stderr, cfg.Trace.Level))),
	}
	if quickSvc != nil {
		opts = append(opts, engine.WithQuick(quickSvc))
	}
	eng, err := engine.New(cfg, client, opts...)
	if err != nil {
		logger.Error("engine.init_failed", "error", err.Error())
		log.Fatalf("engine init failed: %v", err)
	}

	if loader.Watch(func(next config.Config) {
		if err := eng.Reconfigure(next, newChatClient(ctx, next, logger)); err != nil {
			logger.Warn("engine.reload_rejected", "error", err.Error())
		}
	}) {
		logger.Info("engine.config_watching", "path", loader.File())
	}

	server := rpc.NewServer(os.Stdin, os.Stdout, logger)
	register := func(command string, fn func(context.Context, json.RawMessage) (map[string]any, *errinfo.ErrorInfo)) {
		server.Register(command, func(ctx context.Context, data json.RawMessage) (rpc.Result, *rpc.Error) {
			result, errInfo := fn(ctx, data)
			if errInfo != nil {
				msg := errInfo.ErrorCode
				if errInfo.Detail != "" {
					msg = errInfo.Detail
				}
				return nil, &rpc.Error{Message: msg, Info: errInfo}
			}
			return result, nil
		})
	}

	register("initialize", eng.Initialize)
	register("inline_completion", eng.InlineCompletion)
	register("chat", eng.Chat)
	register("hover", eng.Hover)
	register("reload_tools", eng.ReloadTools)
	register("plan", eng.Plan)

	if err := server.Serve(ctx); err != nil {
		logger.Error("rpc.server_error", "error", err.Error())
		log.Fatalf("rpc server error: %v", err)
	}
}

func newChatClient(ctx context.Context, cfg config.Config, logger *slog.Logger) *ollama.Client {
	client := ollama.NewClient(ollama.Options{
		BaseURL:      cfg.Model.BaseURL,
		APIKey:       cfg.Model.APIKey,
		Timeout:      cfg.Model.RequestTimeout,
		AllowedHosts: cfg.Model.AllowedHosts,
		Logger:       logger.With("component", "ollama"),
	})
	pingCtx, cancel := context.WithTimeout(ctx, envutil.Duration("AXIOM_PING_TIMEOUT", 3*time.Second))
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("engine.model_server_unreachable", "base_url", cfg.Model.BaseURL, "error", err.Error())
	}
	return client
}
