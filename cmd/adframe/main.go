package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chalupamike/adframe/internal/capture"
	"github.com/chalupamike/adframe/internal/config"
	"github.com/chalupamike/adframe/internal/httpd"
	"github.com/chalupamike/adframe/internal/meta"
	"github.com/chalupamike/adframe/internal/playback"
	"github.com/chalupamike/adframe/internal/player"
	"github.com/chalupamike/adframe/internal/scene"
	"github.com/chalupamike/adframe/internal/system"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		listen     = flag.String("listen", "", "listen address (overrides config)")
		staticRoot = flag.String("root", "", "static file root (overrides config)")
		logLevel   = flag.String("log-level", "", "log level (overrides config)")
		presetPath = flag.String("preset", "", "scene preset file (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *staticRoot != "" {
		cfg.StaticRoot = *staticRoot
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *presetPath != "" {
		cfg.ScenePreset = *presetPath
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if err := run(log, cfg); err != nil {
		log.Fatal().Err(err).Msg("daemon exited")
	}
}

func run(log zerolog.Logger, cfg *config.Config) error {
	system.InitResourceLimits(log)

	scenes := scene.Default()
	if cfg.ScenePreset != "" {
		loaded, err := scene.ReadPreset(cfg.ScenePreset)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("preset load failed: %w", err)
			}
			log.Info().Str("path", cfg.ScenePreset).Msg("no preset yet, starting with defaults")
		} else {
			scenes = loaded
		}
	}

	ctrl := playback.NewController(log, scenes)
	sup := player.NewSupervisor(log, ctrl, player.SimFactory(), cfg.PollInterval())
	defer sup.Close()
	sup.Sync()

	newRecorder := func(opts capture.Options) *capture.Recorder {
		opts.FPS = cfg.Capture.FPS
		return capture.NewRecorder(log,
			capture.DisplayFactory(cfg.Capture.Display, cfg.Capture.Width, cfg.Capture.Height),
			func() capture.Encoder { return &capture.FFmpegEncoder{Quality: cfg.Capture.Quality} },
			opts)
	}

	srv := httpd.NewServer(log, ctrl, sup, meta.NewClient(log, ""),
		newRecorder, cfg.Capture.OutDir, cfg.ScenePreset, cfg.StaticRoot)

	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Listen).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	})
	return g.Wait()
}
