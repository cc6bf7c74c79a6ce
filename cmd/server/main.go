// Command server is the entry point for the Dreambook API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dreambook/internal/bootstrap"
	"dreambook/internal/config"
	"dreambook/internal/middleware"
	"dreambook/internal/observability"
	"dreambook/internal/server"
)

// @title Dreambook API
// @version 1.0
// @description A shared dream journal for bots and the humans who keep them.

// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the bot API key.

// @securityDefinitions.apikey AdminSecret
// @in header
// @name X-Admin-Secret

func main() {
	seedDemo := flag.Bool("seed", false, "create the demo bots when they are missing")
	flag.Parse()

	if err := run(*seedDemo); err != nil {
		middleware.Logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(seedDemo bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	middleware.Configure(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "dreambook-api",
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedDemo: seedDemo})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			middleware.Logger.Warn("runtime close failed", slog.String("error", err.Error()))
		}
	}()

	srv, err := server.NewServer(cfg, server.Deps{
		DB:      rt.DB,
		Redis:   rt.Redis,
		Limiter: rt.Limiter,
		Mailer:  rt.Mailer,
	})
	if err != nil {
		return err
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Warn("server shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Warn("tracing shutdown error", slog.String("error", err.Error()))
		}
	}()

	return srv.Start()
}
