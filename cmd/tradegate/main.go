package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/marqetfi/tradegate/cmd/tradegate/internal/config"
	tglog "github.com/marqetfi/tradegate/log"
)

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}

func main() {
	cfg := config.DefaultConfig()
	fs := config.NewConfigFlagSet(&cfg)

	if err := fs.Parse(os.Args[1:]); err != nil {
		fatal("parsing flags failed", err)
	}

	if err := config.ApplyEnvDefaults(fs, &cfg); err != nil {
		fatal("invalid parameters", err)
	}

	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			fatal("loading env file failed", err)
		}
	} else {
		// Best effort: a missing default .env is not an error.
		_ = godotenv.Load()
	}

	if err := config.ValidateConfig(cfg); err != nil {
		fatal("invalid configuration", err)
	}

	handler, closeLogs := config.GetLogHandler(cfg)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	log.SetOutput(slog.NewLogLogger(logger.Handler(), slog.LevelDebug).Writer())
	defer func() { _ = closeLogs() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = tglog.ContextWithLogger(ctx, logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		fatal("startup failed", err)
	}

	app.Start()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err, ok := <-app.ServerErrors():
		if ok && err != nil {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}

	if err := app.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown incomplete", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
