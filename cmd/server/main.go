// Command server runs the tether auth API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/lborres/tether"
	fiberadapter "github.com/lborres/tether/adapters/fiber"
	"github.com/lborres/tether/config"
	"github.com/lborres/tether/pkg/logger"
)

const (
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logger.New(
		logger.WithLevel(level),
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithAttr(slog.String("service", "tether")),
	)

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sessionCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	rec, registry := newMetrics(cfg)

	app := fiber.New(fiber.Config{AppName: "tether"})
	app.Use(recover.New())

	opts := []fiberadapter.Option{
		fiberadapter.WithLogger(log),
		fiberadapter.WithAppleRedirects(cfg.AppleRedirectURL, cfg.AppleErrorURL),
	}
	if registry != nil {
		opts = append(opts, fiberadapter.WithMetrics(registry))
	}

	if _, err := tether.New(tether.Config{
		Database:       store,
		HTTP:           fiberadapter.New(app, opts...),
		CacheAdapter:   sessionCache,
		DisableCache:   sessionCache == nil,
		PasswordHasher: newHasher(cfg),
		Verifiers:      newVerifiers(cfg, rec),
		BasePath:       cfg.BasePath,
		Logger:         log,
		Metrics:        rec,
	}); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("driver", cfg.DatabaseDriver))
		errCh <- app.Listen(cfg.HTTPAddr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
