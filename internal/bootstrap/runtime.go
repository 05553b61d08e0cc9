// Package bootstrap wires the process-wide runtime shared by the server and
// the command line tools.
package bootstrap

import (
	"fmt"

	"eventsocial/internal/cache"
	"eventsocial/internal/config"
	"eventsocial/internal/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis. The Redis client is nil
// when the server is unreachable; callers then run without cache, rate limit
// state or cross-instance fan-out.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	return db, cache.InitRedis(cfg.RedisURL), nil
}
