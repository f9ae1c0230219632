package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"voxscene/internal/audio"
	"voxscene/internal/backend"
	"voxscene/internal/config"
	"voxscene/internal/dispatch"
	"voxscene/internal/ipc"
	"voxscene/internal/notify"
	"voxscene/internal/scene"
	"voxscene/internal/session"
	"voxscene/internal/tts"
	"voxscene/pkg/protocol"
	"voxscene/pkg/scenelink"
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
	url := cli.StringP("url", "u", "", "Backend endpoint, overrides backend.url")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address, overrides backend.proxy")
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
	if *url != "" {
		cfg.Backend.URL = *url
	}
	if *proxyAddr != "" {
		cfg.Backend.Proxy = *proxyAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := backend.NewHTTPClient(cfg.Backend.Proxy, cfg.BackendTimeout())
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Backend.Proxy, "err", err)
		os.Exit(1)
	}
	gateway, err := backend.NewGateway(cfg.Backend.URL, httpClient)
	if err != nil {
		log.Error("Failed to init backend", "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded backend", "url", gateway.Endpoint(), "proxy", cfg.Backend.Proxy)

	sink := scene.LogSink
	if cfg.Link.URL != "" {
		link, err := scenelink.Dial(ctx, scenelink.Config{
			URL:       cfg.Link.URL,
			Reconnect: cfg.LinkReconnect(),
		})
		if err != nil {
			log.Error("Failed to connect scene link", "url", cfg.Link.URL, "err", err)
			os.Exit(1)
		}
		defer link.Close()
		go func() {
			if err := link.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("Scene link stopped", "err", err)
			}
		}()
		sink = link
		log.Debug("Loaded scene link", "url", cfg.Link.URL)
	}

	table := dispatch.NewTable(dispatch.Controllers{
		Lighting: scene.NewLights(cfg.AreaNames(config.ControllerLights), sink),
		Walls:    scene.NewWalls(cfg.AreaNames(config.ControllerWalls), sink),
		Plants:   scene.NewPlants(cfg.AreaNames(config.ControllerPlants), sink),
	})

	log.Debug("Loaded dispatch table", "events", table.Names())

	rec := audio.NewRecorder(audio.Options{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		MaxLength:  cfg.MaxRecording(),
	})
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	indicator := notify.NewIndicator(cfg.Notify.Beep, cfg.Notify.Desktop)
	if cfg.Audio.Duck {
		indicator.Ducker = audio.NewDucker(nil, audio.DuckOptions{
			SkipApps: cfg.Audio.DuckSkip,
			Factor:   cfg.Audio.DuckFactor,
			Fade:     150 * time.Millisecond,
		})
	}
	if cfg.TTS.Enabled {
		indicator.Speak = tts.NewSpeaker(cfg.TTS.Voice).Speak
	}
	go indicator.Run(ctx)

	sess, err := session.New(session.Config{
		Recorder:     rec,
		Backend:      gateway,
		Dispatcher:   table,
		SceneContext: cfg.Scene.Context,
		Catalog:      protocol.DefaultCatalog(),
		OnStatus:     indicator.Observe,
	})
	if err != nil {
		log.Error("Failed to init session", "err", err)
		os.Exit(1)
	}
	go func() {
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Session stopped", "err", err)
		}
	}()

	srv, err := ipc.Listen(cfg.IPC.Socket)
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful", "socket", srv.Path())

	control := &controller{
		session:     sess,
		maxDuration: cfg.MaxRecording(),
	}
	if err := srv.Serve(ctx, control.handle); err != nil && ctx.Err() == nil {
		log.Error("Control socket failed", "err", err)
		os.Exit(1)
	}

	log.Info("Shutting down")
}
