package mongodb

import (
	"context"
	"fmt"
	"time"

	"marketchart/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultTimeout = 10 * time.Second

// Connect opens a client for the given credentials and pings the primary.
func Connect(ctx context.Context, cfg config.MongoConfig, user, password string) (*mongo.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.ConnectionURI(user, password)).
		SetServerSelectionTimeout(timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("could not ping mongodb: %w", err)
	}

	return client, nil
}
