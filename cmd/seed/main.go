package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/fightr/fightr-core/internal/config"
	"github.com/fightr/fightr-core/internal/db"
	"github.com/fightr/fightr-core/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.New()
	logger.InitFromConfig(cfg)

	database, err := db.NewDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}

	if err := db.SeedTestData(database); err != nil {
		logger.Error("seeding failed", "err", err)
		os.Exit(1)
	}
	logger.Info("demo roster seeded")
}
