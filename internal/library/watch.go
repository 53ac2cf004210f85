package library

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay — задержка перед перечитыванием изменённого файла.
// Редакторы пишут файл в несколько приёмов.
const debounceDelay = 200 * time.Millisecond

// Watch отслеживает каталог планов до отмены ctx.
//
// Create и Write перечитывают файл, Remove и Rename удаляют план.
// Ошибки разбора пишутся в лог; прежняя версия плана остаётся.
func (l *Library) Watch(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	l.logger.Info("watching plan library", "dir", abs)
	go l.processEvents(ctx, watcher)
	return nil
}

func (l *Library) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
		watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isPlanFile(event.Name) {
				continue
			}
			path := event.Name

			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				mu.Lock()
				if t, ok := pending[path]; ok {
					t.Stop()
					delete(pending, path)
				}
				mu.Unlock()
				l.unloadFile(path)

			case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
				mu.Lock()
				if t, ok := pending[path]; ok {
					t.Stop()
				}
				pending[path] = time.AfterFunc(debounceDelay, func() {
					mu.Lock()
					delete(pending, path)
					mu.Unlock()
					if ctx.Err() != nil {
						return
					}
					if _, err := l.LoadFile(path); err != nil {
						l.logger.Warn("failed to reload plan file", "path", path, "error", err)
					}
				})
				mu.Unlock()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("plan library watcher error", "error", err)
		}
	}
}
