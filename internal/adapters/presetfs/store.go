// Package presetfs is a file-backed preset store. Each active preset lives
// in one YAML file named by its (symbol, interval, regime) key; inactive
// presets are archived alongside so rejected optimizer candidates stay
// auditable.
package presetfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"cascadeBot/internal/domain"
	"cascadeBot/internal/ports"
)

const (
	fileExt    = ".yaml"
	archiveDir = "archive"
)

// Store implements ports.PresetStore on a directory of YAML files.
type Store struct {
	dir    string
	logger ports.Logger

	mu    sync.RWMutex
	cache map[string]*domain.Preset // key -> active preset
}

// New opens (creating if needed) the preset directory and loads the active
// presets into the cache.
func New(dir string, logger ports.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: preset directory is required", ports.ErrInvalidRequest)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrInvalidRequest)
	}
	if err := os.MkdirAll(filepath.Join(dir, archiveDir), 0o755); err != nil {
		return nil, fmt.Errorf("presetfs: create %s: %w", dir, err)
	}
	s := &Store{dir: dir, logger: logger, cache: make(map[string]*domain.Preset)}
	if err := s.reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// reload scans the directory and rebuilds the active cache.
func (s *Store) reload(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("presetfs: read %s: %w", s.dir, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*domain.Preset)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		preset, err := readFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable preset file", map[string]interface{}{
				"file":  entry.Name(),
				"error": err.Error(),
			})
			continue
		}
		if preset.Active {
			s.cache[preset.Key()] = preset
		}
	}
	return nil
}

// GetActive implements ports.PresetStore.
func (s *Store) GetActive(_ context.Context, symbol, interval string, regime domain.Regime) (*domain.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	preset, ok := s.cache[domain.PresetKey(symbol, interval, regime)]
	if !ok {
		return nil, fmt.Errorf("%w: no active preset for %s", ports.ErrNotFound,
			domain.PresetKey(symbol, interval, regime))
	}
	return preset, nil
}

// Save implements ports.PresetStore. An active preset replaces the key's
// file and displaces any previously active preset into the archive; an
// inactive preset goes straight to the archive.
func (s *Store) Save(ctx context.Context, preset *domain.Preset) error {
	if preset == nil {
		return fmt.Errorf("%w: nil preset", ports.ErrInvalidRequest)
	}
	if err := preset.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !preset.Active {
		return s.writeArchive(preset)
	}

	key := preset.Key()
	if old, ok := s.cache[key]; ok && old.ID != preset.ID {
		demoted := *old
		demoted.Active = false
		if err := s.writeArchive(&demoted); err != nil {
			return err
		}
	}
	path := filepath.Join(s.dir, key+fileExt)
	if err := writeFile(path, preset); err != nil {
		return err
	}
	s.cache[key] = preset
	s.logger.Info(ctx, "preset activated", map[string]interface{}{
		"key": key,
		"id":  preset.ID,
	})
	return nil
}

// List implements ports.PresetStore: every stored preset, archived ones
// included.
func (s *Store) List(_ context.Context) ([]*domain.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Preset
	walk := func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
				continue
			}
			preset, err := readFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				continue
			}
			out = append(out, preset)
		}
		return nil
	}
	if err := walk(s.dir); err != nil {
		return nil, fmt.Errorf("presetfs: %w", err)
	}
	if err := walk(filepath.Join(s.dir, archiveDir)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("presetfs: %w", err)
	}
	return out, nil
}

func (s *Store) writeArchive(preset *domain.Preset) error {
	name := fmt.Sprintf("%s_%s%s", preset.Key(), preset.ID, fileExt)
	return writeFile(filepath.Join(s.dir, archiveDir, name), preset)
}

func readFile(path string) (*domain.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var preset domain.Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	preset.NormalizeSizes()
	if err := preset.Validate(); err != nil {
		return nil, err
	}
	return &preset, nil
}

func writeFile(path string, preset *domain.Preset) error {
	data, err := yaml.Marshal(preset)
	if err != nil {
		return fmt.Errorf("presetfs: marshal %s: %w", preset.ID, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("presetfs: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("presetfs: rename %s: %w", path, err)
	}
	return nil
}
