package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// current holds the process-wide configuration.
	current atomic.Pointer[Config]

	// loadedFrom is the path Initialize loaded, reused by Reload.
	loadedFrom atomic.Pointer[string]

	// initOnce ensures configuration is initialized only once.
	initOnce sync.Once

	hooksMu sync.Mutex
	hooks   []func(old, updated *Config)
)

// Initialize loads configuration from path with environment variable
// overrides and stores it as the process-wide configuration. Calls after
// the first are ignored.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		loadedFrom.Store(&path)
		current.Store(cfg)
	})

	return initErr
}

// GetConfig returns the process-wide configuration, or nil before
// Initialize succeeded.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig replaces the process-wide configuration without running the
// reload hooks. Intended for tests.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// OnReload registers fn to run after every successful Reload with the
// previous and the new configuration.
func OnReload(fn func(old, updated *Config)) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = append(hooks, fn)
}

// Reload reloads the file Initialize loaded. The running configuration is
// replaced only if loading and validation succeed. Settings consumed at
// startup (listen address, queue size) take effect on restart; hooks apply
// the rest.
func Reload() error {
	path := loadedFrom.Load()
	if path == nil {
		return fmt.Errorf("failed to reload configuration: not initialized")
	}
	return ReloadConfig(*path)
}

// ReloadConfig reloads the configuration from path and runs the reload hooks.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	old := current.Swap(cfg)

	hooksMu.Lock()
	fns := append([]func(old, updated *Config){}, hooks...)
	hooksMu.Unlock()

	for _, fn := range fns {
		fn(old, cfg)
	}
	return nil
}

// MustGetConfig returns the process-wide configuration and panics if
// Initialize has not run.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
