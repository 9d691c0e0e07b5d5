package main

import (
	"context"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logging"
	"storefront/internal/migrate"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New(cfg.LogLevel).WithField("cmd", "migrate")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{MaxConns: 2})
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	version, err := migrate.ApplyVersion(ctx, pool)
	if err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}

	logger.WithField("version", version).Info("migrations applied")
}
