package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics registers the prometheus scrape endpoint on app at path. The
// HTTP collectors live in the default registry, so they are created once per
// process and shared by every app.
func InitMetrics(app *fiber.App, serviceName, path string) {
	promOnce.Do(func() {
		prom = fiberprometheus.NewWith(serviceName, "eventsocial", "http")
	})
	prom.RegisterAt(app, path)
}

// MetricsMiddleware records request count, latency and in-flight requests.
// InitMetrics must be called first.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if prom == nil {
			return c.Next()
		}
		return prom.Middleware(c)
	}
}
