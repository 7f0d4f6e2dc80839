package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/livewall/engine/core"
)

const reloadDelay = 100 * time.Millisecond

// Watcher reloads a configuration file when it changes. The directory is
// watched rather than the file so editors that replace the file on save
// keep working.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan *Config

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:    abs,
		watcher: fw,
		changes: make(chan *Config, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Changes delivers every successfully reloaded configuration. Only the
// latest one is kept when the reader falls behind.
func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case e, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Coalesce the bursts of writes editors produce.
			timer.Reset(reloadDelay)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("config watcher: %s", err)
		case <-timer.C:
			w.reload()
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		core.LogError("failed to reload the configuration, keeping the current one: %s", err)
		return
	}
	core.LogInfo("Configuration reloaded from %s.", w.path)
	select {
	case <-w.changes:
	default:
	}
	w.changes <- c
}
