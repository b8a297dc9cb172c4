package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/fightr/fightr-core/internal/cache"
	"github.com/fightr/fightr-core/internal/stream"
)

// AppContext holds shared dependencies (DB, Redis, stream broker, Logger)
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Broker     *stream.Broker
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, broker *stream.Broker, logger *slog.Logger) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Broker:     broker,
		Logger:     logger,
	}
}
