// Package auth guards the daemon's state-changing HTTP routes with API keys
// read from a file that is reloaded whenever it changes.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// KeysFileName is the key file looked up in the config directory.
const KeysFileName = "api_keys.yaml"

// Key is one entry of the key file.
type Key struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

type keyFile struct {
	Keys []Key `yaml:"keys"`
}

// Service holds the current key set.
type Service struct {
	mu        sync.RWMutex
	configDir string
	keys      []Key
	watcher   *fsnotify.Watcher
}

// NewService creates a new auth service watching the given config directory.
func NewService(configDir string) (*Service, error) {
	s := &Service{configDir: configDir}

	// A missing file means open mode.
	if err := s.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("auth: could not create fsnotify watcher", "err", err)
		return s, nil
	}
	s.watcher = watcher

	keysPath := s.keysPath()
	if err := watcher.Add(filepath.Dir(keysPath)); err != nil {
		slog.Warn("auth: could not watch config dir", "err", err)
	}

	go s.watchLoop(keysPath)
	return s, nil
}

func (s *Service) keysPath() string {
	return filepath.Join(s.configDir, KeysFileName)
}

// Reload re-reads the key file. A missing file clears every key.
func (s *Service) Reload() error {
	data, err := os.ReadFile(s.keysPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.keys = nil
			s.mu.Unlock()
			return nil
		}
		return err
	}

	var f keyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("auth: parse %s: %w", s.keysPath(), err)
	}
	keys := f.Keys[:0]
	for _, k := range f.Keys {
		if k.Key == "" {
			slog.Warn("auth: ignoring empty key", "name", k.Name)
			continue
		}
		keys = append(keys, k)
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	slog.Debug("auth: reloaded keys", "count", len(keys))
	return nil
}

// IsOpenMode returns true if no keys are configured.
// In open mode, all requests are allowed without authentication.
func (s *Service) IsOpenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys) == 0
}

// Verify returns the name of the key matching key.
// Uses constant-time comparison to prevent timing attacks.
func (s *Service) Verify(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k.Key)) == 1 {
			return k.Name, true
		}
	}
	return "", false
}

// Close stops the file watcher.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Service) watchLoop(keysPath string) {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != keysPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				if err := s.Reload(); err != nil {
					slog.Warn("auth: failed to reload keys", "err", err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("auth: watcher error", "err", err)
		}
	}
}
