package middleware

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global structured logger instance used throughout the application.
var Logger zerolog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// LogOptions configures the global logger.
type LogOptions struct {
	Env        string
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func init() {
	InitLogger(LogOptions{Env: os.Getenv("APP_ENV"), Level: os.Getenv("LOG_LEVEL")})
}

// InitLogger replaces the global logger. Production writes JSON; other
// environments get a console writer. When File is set, output is also
// written to a size-rotated file.
func InitLogger(opts LogOptions) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if opts.Env != "production" && opts.Env != "prod" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, rotating)
	}

	Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Ctx returns the global logger enriched with the request id, user id and
// trace id carried by ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &Logger
	}
	lc := Logger.With()
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		lc = lc.Str("request_id", rid)
	}
	if uid, ok := ctx.Value(UserIDKey).(uint); ok {
		lc = lc.Uint("user_id", uid)
	}
	if tid, ok := ctx.Value(TraceIDKey).(string); ok {
		lc = lc.Str("trace_id", tid)
	}
	l := lc.Logger()
	return &l
}

// ContextMiddleware injects request ID and user ID from Fiber locals into the request context.
// This allows these values to be picked up by the context-aware logger even in deep service layers.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(WithLocals(c))
		return c.Next()
	}
}

// WithLocals copies request id, user id and trace id from fiber locals into
// the user context and returns it.
func WithLocals(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()

	if rid, ok := c.Locals("requestid").(string); ok {
		ctx = context.WithValue(ctx, RequestIDKey, rid)
	}
	if uid, ok := c.Locals("userID").(uint); ok {
		ctx = context.WithValue(ctx, UserIDKey, uid)
	}
	if tid, ok := c.Locals("traceID").(string); ok {
		ctx = context.WithValue(ctx, TraceIDKey, tid)
	}
	return ctx
}

// StructuredLogger returns a Fiber middleware for logging requests
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		log := Ctx(c.UserContext())

		var event *zerolog.Event
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			event = log.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}

		event.
			Int("status", status).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Dur("latency", time.Since(start)).
			Str("user_agent", c.Get(fiber.HeaderUserAgent)).
			Msg("request processed")

		return err
	}
}
