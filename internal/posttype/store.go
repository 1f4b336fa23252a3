package posttype

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"studio/internal/domain"
	"studio/internal/infra"
)

const reloadDebounce = 500 * time.Millisecond

// Store serves the current catalog. When backed by a file it reloads the
// catalog whenever the file is written; a broken edit keeps the previous one.
type Store struct {
	path   string
	logger infra.Logger

	mu      sync.RWMutex
	catalog *Catalog
	loaded  chan struct{}
}

// NewStore loads path, or the embedded catalog when path is empty.
func NewStore(path string, logger infra.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger, loaded: make(chan struct{}, 1)}
	if path == "" {
		s.catalog = Default()
		return s, nil
	}
	c, err := s.read()
	if err != nil {
		return nil, err
	}
	s.catalog = c
	return s, nil
}

func (s *Store) read() (*Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return Parse(data)
}

// Catalog returns the catalog in effect.
func (s *Store) Catalog() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

func (s *Store) Names() []string { return s.Catalog().Names() }

func (s *Store) Schema(name string) (*domain.FormSchema, error) {
	return s.Catalog().Schema(name)
}

func (s *Store) BuildInstruction(req map[string]string) (string, error) {
	return s.Catalog().BuildInstruction(req)
}

// Reload rereads the file.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	c, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.catalog = c
	s.mu.Unlock()
	select {
	case s.loaded <- struct{}{}:
	default:
	}
	return nil
}

// Watch reloads on writes until ctx is done. The directory is watched so
// editors that replace the file are picked up too.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create templates watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch templates: %w", err)
	}
	go s.watchLoop(ctx, w)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	target := filepath.Clean(s.path)
	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Error().Err(err).Str("path", s.path).Msg("reload templates")
					return
				}
				s.logger.Info().Str("path", s.path).Int("post_types", len(s.Names())).Msg("templates reloaded")
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("templates watcher")
		}
	}
}
