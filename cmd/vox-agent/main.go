package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"voxscene/internal/backend"
	"voxscene/internal/config"
	"voxscene/internal/nlu"
	"voxscene/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	configFile := cli.StringP("config", "c", "", "Project config path (default project.toml)")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	listen := cli.String("listen", "", "Listen address, overrides agent.listen")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy for the OpenAI API, overrides backend.proxy")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[*logLevel],
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up")

	if err := config.LoadEnv(*envFile); err != nil {
		log.Warn("Failed to load env", "err", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Agent.Listen = *listen
	}
	if *proxyAddr != "" {
		cfg.Backend.Proxy = *proxyAddr
	}

	apiKey := cfg.GetAPIKey()
	if apiKey == "" {
		log.Error("API key not set", "variable", cfg.Agent.APIKeyEnvironmentVariable)
		os.Exit(1)
	}

	log.Debug("Loaded API Key")

	httpClient, err := backend.NewHTTPClient(cfg.Backend.Proxy, cfg.BackendTimeout())
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Backend.Proxy, "err", err)
		os.Exit(1)
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	)

	whisper, err := stt.NewTranscriber(cfg.Agent.WhisperModel, stt.Options{Language: cfg.Agent.Language})
	if err != nil {
		log.Error("Failed to init whisper", "err", err)
		os.Exit(1)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper", "model", cfg.Agent.WhisperModel)

	a := &agent{
		stt:     whisper,
		nlu:     nlu.NewAnalyzer(client, cfg.Agent.Model),
		timeout: cfg.BackendTimeout(),
	}

	srv := &http.Server{
		Addr:              cfg.Agent.Listen,
		Handler:           otelhttp.NewHandler(a.routes(), "vox-agent"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Boot up - successful", "listen", cfg.Agent.Listen)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Agent server failed", "err", err)
		os.Exit(1)
	}

	log.Info("Shutting down")
}
