package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"conference-webapp/config"
	"conference-webapp/database"
)

// openStore connects to MongoDB when configured and falls back to the local
// JSON database otherwise. The returned func releases the store.
func openStore(ctx context.Context, cfg *config.Store, log *zap.Logger) (database.Store, func(context.Context) error, error) {
	if !cfg.UsesMongo() {
		log.Info("using local database", zap.String("path", cfg.LocalDBPath))
		store, err := database.NewLocalStore(cfg.LocalDBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func(context.Context) error { return nil }, nil
	}

	var (
		client *mongo.Client
		store  *database.MongoStore
	)
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		client, store, err = database.Connect(ctx, cfg.MongoConnString, cfg.MongoDBName)
		if err != nil {
			log.Warn("database not reachable, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Info("connected to mongodb", zap.String("db", cfg.MongoDBName))
	return store, client.Disconnect, nil
}
