// Command migrate runs schema operations for the backend. The server only
// auto-migrates outside production, so deployments run `migrate up` first.
package main

import (
	"flag"
	"fmt"
	"strings"

	"eventsocial/internal/config"
	"eventsocial/internal/database"
	"eventsocial/internal/middleware"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.Fatal().Err(err).Msg("migrate failed")
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.InitLogger(middleware.LogOptions{Env: cfg.Env, Level: cfg.LogLevel})

	db, err := gorm.Open(database.Dialector(cfg), &gorm.Config{
		Logger: database.NewGormLogger().LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}
		middleware.Logger.Info().Msg("automigrations applied")
	case "status":
		status, err := database.SchemaStatus(db)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		missing := 0
		for _, s := range status {
			if !s.Exists {
				missing++
			}
			middleware.Logger.Info().Str("table", s.Table).Bool("exists", s.Exists).Msg("table")
		}
		middleware.Logger.Info().Str("env", cfg.Env).Int("tables", len(status)).Int("missing", missing).Msg("schema status")
	default:
		return usage()
	}
	return nil
}
