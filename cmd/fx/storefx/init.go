package storefx

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/jacentio/salestrack/internal/config"
	"github.com/jacentio/salestrack/store"
	"github.com/jacentio/salestrack/store/memstore"
)

var Module = fx.Provide(provideStore)

func provideStore(cfg config.Config, logger *slog.Logger) (store.Keyed, error) {
	return NewStore(context.Background(), cfg, logger)
}

// NewStore builds the configured backend. The memory backend keeps nothing
// across restarts and is meant for local runs.
func NewStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Keyed, error) {
	storeCfg := store.DefaultConfig()
	storeCfg.TableName = cfg.TableName

	if cfg.Backend == config.BackendMemory {
		logger.Warn("using in-memory store", "table", storeCfg.TableName)
		return memstore.New(storeCfg), nil
	}

	client, err := cfg.DynamoDB(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("using dynamodb store", "table", storeCfg.TableName, "endpoint", cfg.DynamoDBEndpoint)
	return store.New(client, storeCfg), nil
}
