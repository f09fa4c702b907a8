package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"authbridge/internal/config"
	"authbridge/pkg/client"
	"authbridge/pkg/credentials"
	"authbridge/pkg/storage"
)

// loadConfig loads the effective configuration for the current invocation.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Server.BaseURL == "" {
		return config.Config{}, fmt.Errorf("no auth server configured (set server.baseURL in %s/config.yaml or AUTHBRIDGE_BASE_URL)", configPath)
	}
	return cfg, nil
}

// buildBackend constructs the configured credential storage backend.
func buildBackend(cfg config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemory(), nil

	case "file":
		return storage.NewFile(storage.FileConfig{Dir: cfg.Storage.Dir})

	case "redis":
		return storage.NewRedis(storage.RedisConfig{
			Client: redis.NewClient(&redis.Options{
				Addr:     cfg.Storage.Redis.Addr,
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			}),
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		})

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildClient constructs the intercepting client over the configured
// backend. Extra options layer on top of the configured ones.
func buildClient(cfg config.Config, backend storage.Backend, extra ...client.Option) (*client.Client, error) {
	opts := []client.Option{
		client.WithBaseURL(cfg.Server.BaseURL),
		client.WithScheme(cfg.Server.Scheme),
		client.WithBackend(backend),
		client.WithStoragePrefix(cfg.Auth.StoragePrefix),
		client.WithCookiePrefixes(cfg.Auth.CookiePrefixes),
		client.WithFlowTimeout(cfg.FlowTimeoutDuration()),
	}
	opts = append(opts, extra...)
	return client.New(opts...)
}

// buildCredentials constructs a bare credential store for commands that
// inspect state without talking to the server.
func buildCredentials(cfg config.Config, backend storage.Backend) *credentials.Store {
	return credentials.New(credentials.Config{
		Backend:        backend,
		StoragePrefix:  cfg.Auth.StoragePrefix,
		CookiePrefixes: cfg.Auth.CookiePrefixes,
	})
}
