package prefab

import (
	"context"
	"fmt"
	"time"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"github.com/CredenceHamby/mydu-pve-mod/internal/core/snapshot"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store resolves prefab names against the latest successfully loaded
// library. A failed reload keeps the previous library.
type Store struct {
	dir    string
	runner ScriptRunner
	lib    *snapshot.Cell[*Library]
	log    *zap.Logger
}

func NewStore(dir string, runner ScriptRunner, log *zap.Logger) *Store {
	return &Store{
		dir:    dir,
		runner: runner,
		lib:    snapshot.NewCell(&Library{prefabs: map[string]*behavior.Prefab{}}),
		log:    log.With(zap.String("prefab_dir", dir)),
	}
}

// Reload reads the prefab directory and swaps in the new library.
func (s *Store) Reload() error {
	defs, err := LoadDir(s.dir)
	if err != nil {
		return fmt.Errorf("load prefabs: %w", err)
	}
	lib, err := Build(defs, s.runner)
	if err != nil {
		return fmt.Errorf("build prefabs: %w", err)
	}
	s.lib.Store(lib)
	s.log.Info("prefabs loaded", zap.Int("count", lib.Count()))
	return nil
}

// Resolve implements behavior.Resolver.
func (s *Store) Resolve(name string) (*behavior.Prefab, error) {
	p, ok := s.lib.Load().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrefab, name)
	}
	return p, nil
}

func (s *Store) Count() int {
	return s.lib.Load().Count()
}

// reloadDebounce collapses the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

// Watch reloads the library whenever a prefab file changes, until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("prefab watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isPrefabFile(ev.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			if err := s.Reload(); err != nil {
				s.log.Warn("prefab reload failed, keeping previous prefabs", zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("prefab watcher error", zap.Error(err))
		}
	}
}
