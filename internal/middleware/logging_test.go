package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Logger
	buf := &bytes.Buffer{}
	Logger = zerolog.New(buf)
	t.Cleanup(func() { Logger = prev })
	return buf
}

func TestCtx_AddsContextFields(t *testing.T) {
	buf := captureLogger(t)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, uint(42))
	Ctx(ctx).Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.EqualValues(t, 42, entry["user_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestStructuredLogger_LogsRequest(t *testing.T) {
	buf := captureLogger(t)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.Next()
	})
	app.Use(ContextMiddleware())
	app.Use(StructuredLogger())
	app.Get("/missing", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.EqualValues(t, 404, entry["status"])
	assert.Equal(t, "/missing", entry["path"])
	assert.EqualValues(t, 7, entry["user_id"])
	assert.NotEmpty(t, entry["request_id"])
}
