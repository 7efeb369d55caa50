package config

import (
	"fmt"
	"sync/atomic"
)

// Holder keeps the active configuration and swaps it atomically on reload.
// It is created once at startup and passed to the components that need the
// current configuration, instead of a package-level global.
type Holder struct {
	path    string
	current atomic.Pointer[Config]
}

// NewHolder loads the configuration at path with environment overrides.
func NewHolder(path string) (*Holder, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}
	return NewHolderWith(path, cfg), nil
}

// NewHolderWith wraps an already loaded configuration.
func NewHolderWith(path string, cfg *Config) *Holder {
	h := &Holder{path: path}
	h.current.Store(cfg)
	return h
}

// Get returns the active configuration. Callers must not modify it.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Path returns the file the configuration was loaded from.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the file. The active configuration is replaced only if
// loading and validation succeed; the previous value is returned alongside
// the new one so callers can diff them.
func (h *Holder) Reload() (prev, next *Config, err error) {
	next, err = LoadConfigWithEnvOverrides(h.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload configuration: %w", err)
	}
	prev = h.current.Swap(next)
	return prev, next, nil
}
