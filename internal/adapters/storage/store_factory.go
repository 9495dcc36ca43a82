package storage

import (
	"fmt"

	"github.com/harborapp/telemetry/internal/domain/providers"
	redisclient "github.com/harborapp/telemetry/internal/infrastructure/clients/redis"
	"github.com/harborapp/telemetry/pkg/config"
)

// NewStateStore creates the configured StateStore backend.
func NewStateStore(cfg *config.Config) (providers.StateStore, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendFile:
		return NewFileStore(cfg.Store.Path)
	case config.StoreBackendSQLite:
		path := cfg.Store.Path
		if path == "" {
			return nil, fmt.Errorf("sqlite store backend requires TELEMETRY_STORE_PATH")
		}
		return NewSQLiteStore(path)
	case config.StoreBackendRedis:
		client, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, ""), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
