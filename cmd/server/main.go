// Command server is the entry point for the eventsocial backend.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventsocial/internal/config"
	"eventsocial/internal/middleware"
	"eventsocial/internal/observability"
	"eventsocial/internal/server"
)

// @title eventsocial API
// @version 1.0
// @description Social events API: posts and events, interest and attendance, follows, comments, notifications and per-event group chat.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@eventsocial.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		middleware.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	middleware.InitLogger(middleware.LogOptions{
		Env:        cfg.Env,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "eventsocial-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExport,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   1.0,
	})
	if err != nil {
		middleware.Logger.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		middleware.Logger.Fatal().Err(err).Msg("Failed to create server")
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info().Msg("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error().Err(err).Msg("Server shutdown error")
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Error().Err(err).Msg("Tracing shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		middleware.Logger.Fatal().Err(err).Msg("Server stopped")
	}
}
