// Package storage opens the market.Storage selected by the configuration.
package storage

import (
	"context"
	"fmt"
	"time"

	"marketchart/config"
	"marketchart/internal/chart"
	"marketchart/internal/market"
	"marketchart/pkg/storage/memory"
	"marketchart/pkg/storage/mongodb"
	"marketchart/pkg/storage/postgres"

	"go.uber.org/zap"
)

// seedDays is the length of the series generated for the memory store.
const seedDays = 120

// Open connects to cfg.Storage as user. The memory store ignores the
// credentials and is seeded with generated values for seedTickers, or the
// default chart symbols when empty.
func Open(ctx context.Context, cfg *config.Config, user, password string, seedTickers []string, logger *zap.Logger) (market.Storage, error) {
	switch cfg.Storage {
	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Mongo, user, password)
		if err != nil {
			return nil, err
		}
		return mongodb.NewStore(client, cfg.Mongo.Database, logger), nil

	case "postgres":
		client, err := postgres.NewClientWithConfig(cfg.Postgres.WithCredentials(user, password))
		if err != nil {
			return nil, err
		}
		if !client.IsHealthy(ctx) {
			_ = client.Close()
			return nil, fmt.Errorf("postgres %s:%d is not reachable", cfg.Postgres.Host, cfg.Postgres.Port)
		}
		return postgres.NewStore(client, logger), nil

	case "memory":
		if len(seedTickers) == 0 {
			seedTickers = chart.DefaultSymbols
		}
		store := memory.NewStore()
		store.Seed(seedTickers, seedDays, time.Now())
		logger.Info("memory storage seeded", zap.Strings("tickers", seedTickers), zap.Int("values", store.CountAll()))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}
