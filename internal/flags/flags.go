// Package flags supplies the boolean capability switches the auth engine
// and catalog pipeline consult. Unknown flags and a missing provider both
// read as enabled.
package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	DynamicCatalog   = "dynamicCatalog"
	StrictAuthGuards = "strictAuthGuards"
)

// Provider reports a flag's value and whether the flag is known at all.
type Provider interface {
	Get(name string) (bool, bool)
}

// Enabled applies the fail-open rule: a nil provider or an unknown flag
// counts as enabled.
func Enabled(p Provider, name string) bool {
	if p == nil {
		return true
	}
	value, ok := p.Get(name)
	if !ok {
		return true
	}
	return value
}

func Defaults() map[string]bool {
	return map[string]bool{
		DynamicCatalog:   true,
		StrictAuthGuards: true,
	}
}

// Static is a fixed flag set, mostly useful in tests.
type Static map[string]bool

func (s Static) Get(name string) (bool, bool) {
	v, ok := s[name]
	return v, ok
}

// FileProvider merges the defaults with overrides persisted as YAML.
// Corrupt override files are logged, removed and ignored.
type FileProvider struct {
	path string

	mu        sync.RWMutex
	overrides map[string]bool
	effective map[string]bool
}

func NewFileProvider(path string) *FileProvider {
	p := &FileProvider{path: path}
	p.Reload()
	return p
}

func (p *FileProvider) Get(name string) (bool, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.effective[name]
	return v, ok
}

// All returns a copy of the effective flag set.
func (p *FileProvider) All() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return maps.Clone(p.effective)
}

// Set persists an override and returns the resulting effective value.
func (p *FileProvider) Set(name string, value bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := maps.Clone(p.overrides)
	next[name] = value
	if err := p.persist(next); err != nil {
		return false, err
	}

	p.apply(next)
	return p.effective[name], nil
}

// Reset drops every override and returns the defaults.
func (p *FileProvider) Reset() (map[string]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.persist(map[string]bool{}); err != nil {
		return nil, err
	}

	p.apply(map[string]bool{})
	return maps.Clone(p.effective), nil
}

// Reload re-reads the override file.
func (p *FileProvider) Reload() {
	overrides := p.readOverrides()

	p.mu.Lock()
	p.apply(overrides)
	p.mu.Unlock()
}

// Watch reloads the overrides whenever the file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are
// picked up too.
func (p *FileProvider) Watch(ctx context.Context) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create flags directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create flags watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch flags directory: %w", err)
	}

	target := filepath.Clean(p.path)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					p.Reload()
					slog.Debug("feature flags reloaded", "path", p.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("feature flag watcher error", "error", err)
			}
		}
	}()

	return nil
}

func (p *FileProvider) apply(overrides map[string]bool) {
	effective := Defaults()
	maps.Copy(effective, overrides)

	p.overrides = overrides
	p.effective = effective
}

func (p *FileProvider) readOverrides() map[string]bool {
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}
	}
	if err != nil {
		slog.Warn("feature flag overrides unreadable", "path", p.path, "error", err)
		return map[string]bool{}
	}

	overrides := map[string]bool{}
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		slog.Warn("feature flag overrides are corrupted, resetting", "path", p.path, "error", err)
		if rmErr := os.Remove(p.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("failed to remove corrupted flag overrides", "path", p.path, "error", rmErr)
		}
		return map[string]bool{}
	}
	if overrides == nil {
		overrides = map[string]bool{}
	}

	return overrides
}

func (p *FileProvider) persist(overrides map[string]bool) error {
	if len(overrides) == 0 {
		if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove flag overrides: %w", err)
		}
		return nil
	}

	data, err := yaml.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("encode flag overrides: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create flags directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".flags-*.tmp")
	if err != nil {
		return fmt.Errorf("write flag overrides: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write flag overrides: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write flag overrides: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write flag overrides: %w", err)
	}

	return nil
}
