package store

import (
	"context"
	"fmt"

	"github.com/agustogpt/research-gateway/internal/config"
)

// Open returns the ChatStore selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (ChatStore, error) {
	switch cfg.Backend {
	case config.StorageSQLite:
		return NewSQLite(cfg.DBPath)
	case config.StorageAzure:
		return NewAzure(ctx, AzureConfig{
			ConnectionString: cfg.AzureConnectionString,
			Container:        cfg.BlobContainer,
			Table:            cfg.TableName,
		})
	case config.StorageNone, "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
