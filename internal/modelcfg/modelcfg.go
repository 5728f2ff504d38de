// Package modelcfg manages the per-provider model configuration file.
// The file maps provider keys to their default model, fallback flag, and
// ordered model list. Writes validate the whole document and replace the
// file atomically; reads serve a short-lived cached snapshot.
package modelcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ProviderModels is one provider's entry in the models file. The models
// list order defines fallback priority after the default model.
type ProviderModels struct {
	Default        string   `json:"default"`
	EnableFallback bool     `json:"enableFallback"`
	Models         []string `json:"models"`
}

// Config is the full document, keyed by provider key.
type Config map[string]ProviderModels

var (
	ErrProviderUnknown = errors.New("provider not found in models config")
	ErrModelUnknown    = errors.New("model not found for provider")
	ErrModelExists     = errors.New("model already present for provider")
	ErrModelIsDefault  = errors.New("cannot remove the default model")
	ErrSoleModel       = errors.New("cannot remove the only model")
	ErrNotPermutation  = errors.New("new order is not a permutation of current models")
)

const cacheTTL = time.Second

// Store reads and mutates the models file. All mutating operations
// re-validate the document and write it atomically.
type Store struct {
	path string

	mu       sync.Mutex
	cached   Config
	cachedAt time.Time
}

// NewStore returns a store over the given file path. The file is not
// required to exist until the first Read.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Read returns a snapshot of the current configuration. Callers own the
// returned value and may mutate it freely. Snapshots may be up to one
// second stale; any successful write invalidates the cache.
func (s *Store) Read() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	return cfg.clone(), nil
}

func (s *Store) readLocked() (Config, error) {
	if s.cached != nil && time.Since(s.cachedAt) < cacheTTL {
		return s.cached, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read models config: %w", err)
	}
	cfg, err := parse(raw)
	if err != nil {
		return nil, err
	}
	s.cached = cfg
	s.cachedAt = time.Now()
	return cfg, nil
}

// Save validates the snapshot and replaces the file atomically via a
// temp file and rename in the same directory.
func (s *Store) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

func (s *Store) saveLocked(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode models config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".models-*.json")
	if err != nil {
		return fmt.Errorf("write models config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write models config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write models config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace models config: %w", err)
	}

	s.cached = cfg.clone()
	s.cachedAt = time.Now()
	return nil
}

// AddModel appends a model to the provider's list.
func (s *Store) AddModel(providerKey, model string) error {
	return s.mutate(providerKey, func(pm *ProviderModels) error {
		for _, m := range pm.Models {
			if m == model {
				return fmt.Errorf("%w: %s", ErrModelExists, model)
			}
		}
		pm.Models = append(pm.Models, model)
		return nil
	})
}

// RemoveModel deletes a model from the provider's list. The default model
// and the last remaining model cannot be removed.
func (s *Store) RemoveModel(providerKey, model string) error {
	return s.mutate(providerKey, func(pm *ProviderModels) error {
		if model == pm.Default {
			return fmt.Errorf("%w: %s", ErrModelIsDefault, model)
		}
		if len(pm.Models) <= 1 {
			return fmt.Errorf("%w: %s", ErrSoleModel, model)
		}
		idx := indexOf(pm.Models, model)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrModelUnknown, model)
		}
		pm.Models = append(pm.Models[:idx], pm.Models[idx+1:]...)
		return nil
	})
}

// SetDefault changes the provider's default model. The model must already
// be in the list.
func (s *Store) SetDefault(providerKey, model string) error {
	return s.mutate(providerKey, func(pm *ProviderModels) error {
		if indexOf(pm.Models, model) < 0 {
			return fmt.Errorf("%w: %s", ErrModelUnknown, model)
		}
		pm.Default = model
		return nil
	})
}

// ToggleFallback sets the fallback flag. A nil desired flips the current
// value. The new value is returned.
func (s *Store) ToggleFallback(providerKey string, desired *bool) (bool, error) {
	var result bool
	err := s.mutate(providerKey, func(pm *ProviderModels) error {
		if desired != nil {
			pm.EnableFallback = *desired
		} else {
			pm.EnableFallback = !pm.EnableFallback
		}
		result = pm.EnableFallback
		return nil
	})
	return result, err
}

// Reorder replaces the provider's model list with newOrder, which must be
// a permutation of the current list. The order defines fallback priority.
func (s *Store) Reorder(providerKey string, newOrder []string) error {
	return s.mutate(providerKey, func(pm *ProviderModels) error {
		if !samePermutation(pm.Models, newOrder) {
			return ErrNotPermutation
		}
		pm.Models = append([]string(nil), newOrder...)
		return nil
	})
}

// Rename replaces a model ID in place, preserving its list position. The
// default follows the rename when it pointed at the old ID.
func (s *Store) Rename(providerKey, oldID, newID string) error {
	return s.mutate(providerKey, func(pm *ProviderModels) error {
		idx := indexOf(pm.Models, oldID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrModelUnknown, oldID)
		}
		if newID != oldID && indexOf(pm.Models, newID) >= 0 {
			return fmt.Errorf("%w: %s", ErrModelExists, newID)
		}
		pm.Models[idx] = newID
		if pm.Default == oldID {
			pm.Default = newID
		}
		return nil
	})
}

// mutate applies fn to the named provider's entry under the lock and
// persists the result.
func (s *Store) mutate(providerKey string, fn func(*ProviderModels) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil {
		return err
	}
	cfg := current.clone()

	pm, ok := cfg[providerKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderUnknown, providerKey)
	}
	if err := fn(&pm); err != nil {
		return err
	}
	cfg[providerKey] = pm
	return s.saveLocked(cfg)
}

func (c Config) clone() Config {
	out := make(Config, len(c))
	for k, pm := range c {
		pm.Models = append([]string(nil), pm.Models...)
		out[k] = pm
	}
	return out
}

func indexOf(models []string, model string) int {
	for i, m := range models {
		if m == model {
			return i
		}
	}
	return -1
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, m := range a {
		counts[m]++
	}
	for _, m := range b {
		counts[m]--
		if counts[m] < 0 {
			return false
		}
	}
	return true
}
