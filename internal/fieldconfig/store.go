package fieldconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/tasktracker/internal/eventbus"
)

const reloadDebounce = 100 * time.Millisecond

type overrideFile struct {
	Fields map[FieldName]Field `yaml:"fields"`
}

// Parse builds a config from the defaults and a YAML override document.
// Each field in the document replaces the default entry for that field.
func Parse(data []byte) (*Config, error) {
	var doc overrideFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse field config: %w", err)
	}
	c := Defaults()
	for name, f := range doc.Fields {
		if !name.Valid() {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		def := c.fields[name]
		f.Name = name
		if f.Type == "" {
			f.Type = def.Type
		}
		if f.Label == "" {
			f.Label = def.Label
		}
		if f.Type != FieldTypeText && f.Type != FieldTypeSelect {
			return nil, fmt.Errorf("field %q: unknown type %q", name, f.Type)
		}
		c.fields[name] = &f
	}
	return c, nil
}

// Store holds the current field config and reloads it when the override file
// changes.
type Store struct {
	path    string
	bus     *eventbus.Bus
	current atomic.Pointer[Config]
}

// NewStore loads path, or the defaults when path is empty or missing.
func NewStore(path string, bus *eventbus.Bus) (*Store, error) {
	s := &Store{path: path, bus: bus}
	c, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current.Store(c)
	return s, nil
}

func (s *Store) Config() *Config {
	return s.current.Load()
}

func (s *Store) load() (*Config, error) {
	if s.path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("field config file not found, using defaults", "path", s.path)
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read field config: %w", err)
	}
	return Parse(data)
}

func (s *Store) reload() {
	c, err := s.load()
	if err != nil {
		slog.Error("failed to reload field config, keeping previous", "path", s.path, "error", err)
		return
	}
	s.current.Store(c)
	slog.Info("field config reloaded", "path", s.path)
	if s.bus != nil {
		s.bus.PublishNew(eventbus.FieldConfigReloaded, s.path, "", nil)
	}
}

// Watch reloads the config whenever the override file changes, until ctx is
// done. The parent directory is watched so that atomic replaces are seen.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir, name := filepath.Dir(s.path), filepath.Base(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	slog.Info("watching field config", "path", s.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, s.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("field config watcher error", "error", err)
		}
	}
}
