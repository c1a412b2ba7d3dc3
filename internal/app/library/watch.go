package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/app/filter"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// Watch imports files created or rewritten in dir and passes the resulting
// tracks to fn. It blocks until ctx is cancelled.
// Each path is imported once it has been quiet for the debounce delay.
func (i *Importer) Watch(ctx context.Context, dir string, fn func([]track.Track)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	zlog.Info().Msgf("library: watching dir: dir=%s", dir)

	changeChan := make(chan string, 16)

	// Debounce rapid writes per path
	var debounceMutex sync.Mutex
	timers := make(map[string]*time.Timer)
	triggerChange := func(path string) {
		debounceMutex.Lock()
		defer debounceMutex.Unlock()

		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(i.debounce, func() {
			debounceMutex.Lock()
			delete(timers, path)
			debounceMutex.Unlock()

			select {
			case changeChan <- path:
			case <-ctx.Done():
			}
		})
	}
	defer func() {
		debounceMutex.Lock()
		defer debounceMutex.Unlock()
		for _, t := range timers {
			t.Stop()
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
			if isHidden(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				triggerChange(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Msgf("library: watcher error: %v", err)

		case path := <-changeChan:
			i.importChanged(ctx, path, fn)
		}
	}
}

// importChanged imports one settled file from the watched directory.
func (i *Importer) importChanged(ctx context.Context, path string, fn func([]track.Track)) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	f, err := readFile(path)
	if err != nil {
		zlog.Warn().Msgf("library: failed to read changed file: path=%s err=%v", path, err)
		return
	}

	tracks, rejections := i.Import(ctx, []File{f}, filter.OriginLibrary)
	for _, r := range rejections {
		zlog.Info().Msgf("library: skipped changed file: name=%s code=%s", r.Filename, r.Code)
	}
	if len(tracks) > 0 {
		fn(tracks)
	}
}
