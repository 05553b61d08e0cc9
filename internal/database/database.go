// Package database handles database connections and migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventsocial/internal/config"
	"eventsocial/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database connection instance.
var DB *gorm.DB

// ReadDB is the read replica connection. It equals DB when no replica is configured.
var ReadDB *gorm.DB

// GormLogger routes GORM logs through the zerolog logger, keeping the request
// fields carried by the query context.
type GormLogger struct {
	Config logger.Config
}

// NewGormLogger returns a GORM logger with the default thresholds.
func NewGormLogger() *GormLogger {
	return &GormLogger{
		Config: logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	}
}

// LogMode sets the logging level and returns a new interface instance.
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newlogger := *l
	newlogger.Config.LogLevel = level
	return &newlogger
}

// Info logs an informational message with context.
func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Info {
		middleware.Ctx(ctx).Info().Msgf(msg, data...)
	}
}

// Warn logs a warning message with context.
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Warn {
		middleware.Ctx(ctx).Warn().Msgf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Error {
		middleware.Ctx(ctx).Error().Msgf(msg, data...)
	}
}

// Trace logs trace-level information including SQL queries and execution time.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	log := middleware.Ctx(ctx)

	switch {
	case err != nil && l.Config.LogLevel >= logger.Error &&
		!(l.Config.IgnoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		sql, rows := fc()
		log.Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("GORM query error")
	case elapsed > l.Config.SlowThreshold && l.Config.SlowThreshold != 0 && l.Config.LogLevel >= logger.Warn:
		sql, rows := fc()
		log.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("GORM slow query")
	case l.Config.LogLevel >= logger.Info:
		sql, rows := fc()
		log.Info().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("GORM query")
	}
}

func dsn(cfg *config.Config, host, port string) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host,
		port,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		sslMode,
	)
}

// Dialector returns the postgres dialector for the primary host.
func Dialector(cfg *config.Config) gorm.Dialector {
	return postgres.Open(dsn(cfg, cfg.DBHost, cfg.DBPort))
}

// Connect opens the primary connection and, when DB_READ_HOST is set, a read
// replica. Outside production the schema is migrated on connect.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dbInstance, err := gorm.Open(Dialector(cfg), &gorm.Config{
		Logger: NewGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	middleware.Logger.Info().Str("host", cfg.DBHost).Msg("Database connected successfully")

	if !cfg.IsProduction() {
		if err := Migrate(dbInstance); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		middleware.Logger.Info().Msg("Database migration completed")
	}

	if err := configurePool(dbInstance, 25, 5); err != nil {
		return nil, err
	}

	DB = dbInstance
	ReadDB = dbInstance

	if cfg.DBReadHost != "" {
		readInstance, err := gorm.Open(postgres.Open(dsn(cfg, cfg.DBReadHost, cfg.DBReadPort)), &gorm.Config{
			Logger: NewGormLogger(),
		})
		if err != nil {
			middleware.Logger.Warn().Err(err).Str("host", cfg.DBReadHost).Msg("Read replica unavailable, using primary")
		} else if err := configurePool(readInstance, 25, 5); err == nil {
			ReadDB = readInstance
			middleware.Logger.Info().Str("host", cfg.DBReadHost).Msg("Read replica connected")
		}
	}

	return DB, nil
}

// GetReadDB returns the replica connection, falling back to the primary.
func GetReadDB() *gorm.DB {
	if ReadDB != nil {
		return ReadDB
	}
	return DB
}

func configurePool(db *gorm.DB, maxOpen, maxIdle int) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

// Ping checks the primary connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
