package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mercator-hq/marquee/pkg/cache"
	"mercator-hq/marquee/pkg/cli"
	"mercator-hq/marquee/pkg/config"
	"mercator-hq/marquee/pkg/proxy/header"
)

// stores holds the response stores opened for a command.
type stores struct {
	byName  map[string]*cache.Store
	durable *cache.Store
}

// all returns every open store.
func (s *stores) all() []*cache.Store {
	out := make([]*cache.Store, 0, len(s.byName))
	for _, st := range s.byName {
		out = append(out, st)
	}
	return out
}

// Close closes every store.
func (s *stores) Close() error {
	var errs []error
	for name, st := range s.byName {
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s store: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// openStores opens the memory store and, when enabled, the durable store.
// rec may be nil.
func openStores(ctx context.Context, cfg *config.CacheConfig, rec cache.Recorder) (*stores, error) {
	mem := cache.NewStore(config.StoreMemory,
		cache.NewMemoryBackend(cache.BackendOptions{
			MaxEntries: cfg.Memory.MaxEntries,
			OnEvict:    cache.EvictionRecorder(config.StoreMemory, rec),
		}),
		cache.WithRecorder(rec),
	)
	s := &stores{byName: map[string]*cache.Store{config.StoreMemory: mem}}

	if !cfg.Durable.Enabled {
		return s, nil
	}

	durable, err := openDurable(ctx, &cfg.Durable, rec)
	if err != nil {
		return nil, err
	}
	s.durable = durable
	s.byName[config.StoreDurable] = durable
	return s, nil
}

// openDurable opens the configured durable backend.
func openDurable(ctx context.Context, cfg *config.DurableCacheConfig, rec cache.Recorder) (*cache.Store, error) {
	opts := cache.BackendOptions{
		MaxEntries: cfg.MaxEntries,
		OnEvict:    cache.EvictionRecorder(config.StoreDurable, rec),
	}

	var backend cache.Backend
	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
		}
		b, err := cache.NewSQLiteBackend(cache.SQLiteBackendConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		}, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		backend = b
	case "redis":
		b, err := cache.NewRedisBackend(ctx, cache.RedisBackendConfig{
			Address:     cfg.Redis.Address,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: cfg.Redis.DialTimeout,
		}, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis cache: %w", err)
		}
		backend = b
	default:
		return nil, fmt.Errorf("unsupported durable cache backend: %s", cfg.Backend)
	}

	return cache.NewStore(config.StoreDurable, backend,
		cache.WithCodec(cache.Codec{Compress: cfg.Compress}),
		cache.WithRecorder(rec),
	), nil
}

// corsPolicy converts the configured CORS headers.
func corsPolicy(cfg config.CORSConfig) header.CORSPolicy {
	return header.CORSPolicy{
		AllowOrigin:  cfg.AllowOrigin,
		AllowMethods: cfg.AllowMethods,
		AllowHeaders: cfg.AllowHeaders,
	}
}

// loadConfig loads the file named by --config with environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

func configError(err error) error {
	return cli.NewConfigError(cfgFile, err.Error())
}
