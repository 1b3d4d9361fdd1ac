package credentials

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/providers"
)

// fileFormat is the on-disk layout of the credentials file:
//
//	providers:
//	  openai:
//	    api_key: sk-...
//	  cloudflare:
//	    gateway_url: https://gateway.ai.cloudflare.com/v1/acct/gw
type fileFormat struct {
	Providers map[string]config.ProviderConfig `yaml:"providers"`
}

// FileStore keeps credentials in a YAML file readable only by its owner
// (0600 or 0400). With watching enabled the file is reloaded whenever it
// changes on disk and the change listeners run, which is how a running
// relay picks up rotated keys.
//
// A missing file is an empty store, not an error.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	keys      map[providers.Provider]string
	gateways  map[providers.Provider]string
	listeners []func()

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
}

// NewFileStore loads path and, if watch is set, starts watching it.
func NewFileStore(path string, watch bool, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials path: %w", err)
	}

	s := &FileStore{
		path:     abs,
		logger:   logger,
		keys:     make(map[providers.Provider]string),
		gateways: make(map[providers.Provider]string),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}

	if watch {
		if err := s.startWatching(); err != nil {
			return nil, err
		}
		logger.Info("credentials file loaded with watching", "path", abs)
	} else {
		logger.Info("credentials file loaded without watching", "path", abs)
	}

	return s, nil
}

// Path returns the absolute path of the credentials file.
func (s *FileStore) Path() string {
	return s.path
}

// Credentials implements providers.CredentialStore.
func (s *FileStore) Credentials() map[providers.Provider]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.keys)
}

// GatewayOverrides implements providers.CredentialStore.
func (s *FileStore) GatewayOverrides() map[providers.Provider]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.gateways)
}

// OnChange registers fn to run after the file is reloaded or saved.
func (s *FileStore) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetKey validates key for p and persists it. An empty key removes the
// stored one.
func (s *FileStore) SetKey(p providers.Provider, key string) error {
	key = strings.TrimSpace(key)
	if key != "" {
		if err := providers.ValidateAPIKey(p, key); err != nil {
			return err
		}
	}
	return s.update(func(keys, _ map[providers.Provider]string) {
		if key == "" {
			delete(keys, p)
		} else {
			keys[p] = key
		}
	})
}

// SetGateway validates url and persists it as the gateway override for p.
// An empty url removes the override.
func (s *FileStore) SetGateway(p providers.Provider, url string) error {
	url = strings.TrimSpace(url)
	if err := providers.ValidateGatewayURL(url); err != nil {
		return err
	}
	return s.update(func(_, gateways map[providers.Provider]string) {
		if url == "" {
			delete(gateways, p)
		} else {
			gateways[p] = url
		}
	})
}

// Close stops the file watcher.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.stopCh)
	err := s.watcher.Close()
	<-s.done
	return err
}

func (s *FileStore) update(mutate func(keys, gateways map[providers.Provider]string)) error {
	s.mu.Lock()
	keys := copyMap(s.keys)
	gateways := copyMap(s.gateways)
	mutate(keys, gateways)

	if err := s.write(keys, gateways); err != nil {
		s.mu.Unlock()
		return err
	}
	s.keys, s.gateways = keys, gateways
	s.mu.Unlock()

	s.notify()
	return nil
}

// write replaces the file atomically with 0600 permissions. Caller holds mu.
func (s *FileStore) write(keys, gateways map[providers.Provider]string) error {
	doc := fileFormat{Providers: make(map[string]config.ProviderConfig)}
	for p, k := range keys {
		entry := doc.Providers[string(p)]
		entry.APIKey = k
		doc.Providers[string(p)] = entry
	}
	for p, g := range gateways {
		entry := doc.Providers[string(p)]
		entry.GatewayURL = g
		doc.Providers[string(p)] = entry
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary credentials file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set credentials permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// reload re-reads the file. On error the previous credentials are kept.
func (s *FileStore) reload() error {
	keys, gateways, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.keys, s.gateways = keys, gateways
	s.mu.Unlock()
	return nil
}

func (s *FileStore) read() (map[providers.Provider]string, map[providers.Provider]string, error) {
	keys := make(map[providers.Provider]string)
	gateways := make(map[providers.Provider]string)

	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return keys, gateways, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat credentials file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("credentials path is not a regular file: %s", s.path)
	}
	if mode := info.Mode().Perm(); mode != 0600 && mode != 0400 {
		return nil, nil, fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", s.path, mode)
	}

	// #nosec G304 - path comes from configuration
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credentials file %q: %w", s.path, err)
	}

	for name, entry := range doc.Providers {
		p, err := providers.ParseProvider(name)
		if err != nil {
			s.logger.Warn("ignoring credentials for unknown provider", "provider", name)
			continue
		}
		if k := strings.TrimSpace(entry.APIKey); k != "" {
			keys[p] = k
		}
		if g := strings.TrimSpace(entry.GatewayURL); g != "" {
			gateways[p] = g
		}
	}
	return keys, gateways, nil
}

// startWatching watches the parent directory; editors and Save replace the
// file by rename, which a watch on the file itself would lose.
func (s *FileStore) startWatching() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch credentials directory: %w", err)
	}

	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.watchLoop()
	return nil
}

func (s *FileStore) watchLoop() {
	defer close(s.done)

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			s.logger.Debug("credentials file changed, reloading", "op", event.Op.String())
			if err := s.reload(); err != nil {
				s.logger.Error("failed to reload credentials, keeping previous", "error", err)
				continue
			}
			s.notify()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("credentials watcher error", "error", err)

		case <-s.stopCh:
			return
		}
	}
}

func (s *FileStore) notify() {
	s.mu.RLock()
	fns := append([]func(){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Providers returns the providers with a stored key, sorted.
func (s *FileStore) Providers() []providers.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]providers.Provider, 0, len(s.keys))
	for p := range s.keys {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
