package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/pmo-suite/change-request-service/internal/config"
	"github.com/pmo-suite/change-request-service/internal/db"
	"github.com/pmo-suite/change-request-service/internal/storage"
)

// openStore connects the configured driver and makes sure the schema exists.
func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Store, func(), error) {
	log := logger.WithField("driver", cfg.DBDriver)

	switch cfg.DBDriver {
	case config.DriverSQLite:
		database, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open sqlite")
		}
		log.WithField("path", cfg.SQLitePath).Info("using embedded sqlite store")
		return storage.NewSQLiteRepository(database), func() { _ = database.Close() }, nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL(), db.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, nil, errors.Wrap(err, "init database pool")
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "ensure schema")
		}
		log.WithField("host", cfg.DBHost).Info("using postgres store")
		return storage.NewRepository(pool), pool.Close, nil
	}
}
