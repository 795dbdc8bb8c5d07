package filestore

import (
	"context"
	"path/filepath"

	"fanfan-translator/pkg/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("filestore",
	fx.Provide(Provide),
)

// Provide opens DATA_FILE and keeps it in sync with external edits. It returns
// nil when DATA_FILE is empty, which disables the mirror.
func Provide(lc fx.Lifecycle, cfg *config.Config) (*Store, error) {
	if cfg.DataFile == "" {
		zap.L().Info("[FileStore] Disabled (DATA_FILE is empty)")
		return nil, nil
	}

	store, err := Open(cfg.DataFile)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go store.Watch(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})

	return store, nil
}

// Watch reloads the store whenever the file is rewritten. The directory is
// watched rather than the file because atomic writes replace the inode.
func (s *Store) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		zap.L().Error("[FileStore] failed to create fsnotify watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		zap.L().Error("[FileStore] failed to watch data dir", zap.String("dir", dir), zap.Error(err))
		return
	}

	target := filepath.Clean(s.path)
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
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			changed, err := s.reload()
			if err != nil {
				zap.L().Warn("[FileStore] reload failed, keeping previous snapshot", zap.Error(err))
				continue
			}
			if changed {
				zap.L().Debug("[FileStore] data file reloaded", zap.String("path", s.path))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			zap.L().Error("[FileStore] watcher error", zap.Error(err))
		}
	}
}
