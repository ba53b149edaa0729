package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/upm6720d/device.yaml"

// Source supplies the device configuration.
type Source interface {
	// Load reads, normalises and validates the configuration.
	Load() (*DeviceConfig, error)

	// Path identifies where the configuration comes from.
	Path() string
}

// FileSource is a YAML file on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the file path used by this source.
func (s *FileSource) Path() string { return s.path }

// Load reads the file. A missing file is an error: the mandatory fields have
// no defaults.
func (s *FileSource) Load() (*DeviceConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", s.path, err)
	}
	return Parse(data)
}

// Save writes cfg atomically.
func (s *FileSource) Save(cfg *DeviceConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	// Write to temp file, then rename (atomic on Linux)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// Parse decodes, normalises and validates YAML configuration. Unknown keys
// are rejected so typos in threshold names do not silently fall back to
// hardware defaults.
func Parse(data []byte) (*DeviceConfig, error) {
	var cfg DeviceConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MemSource is an in-memory Source for tests.
type MemSource struct {
	mu  sync.Mutex
	cfg *DeviceConfig
}

// NewMemSource returns a source holding a copy of cfg.
func NewMemSource(cfg DeviceConfig) *MemSource {
	return &MemSource{cfg: &cfg}
}

// Load returns a normalised, validated copy of the stored configuration.
func (m *MemSource) Load() (*DeviceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.cfg
	normalize(&cp)
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Save replaces the stored configuration.
func (m *MemSource) Save(cfg *DeviceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.cfg = &cp
	return nil
}

// Path returns ":memory:" to indicate this is an in-memory source.
func (m *MemSource) Path() string { return ":memory:" }

// Ensure both sources implement config.Source
var (
	_ Source = (*FileSource)(nil)
	_ Source = (*MemSource)(nil)
)
