package watcher

import (
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Loader interface {
	Load(path string) error
}

type Watcher struct {
	stop chan struct{}
	done chan error
}

// LoadAndWatch loads path once and reloads it on every write until Close.
func LoadAndWatch(path string, loader Loader, log *zap.Logger) (*Watcher, error) {
	err := loader.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}
	err = watcher.Add(path)
	if err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, "failed to add file to watcher")
	}
	log = log.With(zap.String("path", path))
	stop := make(chan struct{})
	done := make(chan error)
	go func() {
		for {
			select {
			case event := <-watcher.Events:
				if event.Op&fsnotify.Write == fsnotify.Write {
					if err := loader.Load(path); err != nil {
						log.Warn("failed to reload file", zap.Error(err))
					} else {
						log.Debug("file reloaded")
					}
				}
			case err := <-watcher.Errors:
				log.Warn("failed to watch file", zap.Error(err))
			case <-stop:
				done <- watcher.Close()
				return
			}
		}
	}()
	return &Watcher{stop: stop, done: done}, nil
}

func (w *Watcher) Close() error {
	close(w.stop)
	return <-w.done
}
