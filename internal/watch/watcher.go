// Package watch reports changes to document files made outside the
// application.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	// DefaultDebounce coalesces the burst of events editors emit per save.
	DefaultDebounce = 50 * time.Millisecond
	eventBufferSize = 100
)

// Event is delivered once per debounced change of a tracked file.
type Event struct {
	Path      string
	Timestamp time.Time
}

// DocumentWatcher watches individual files by watching their directories.
// Editors commonly save through rename, which drops a watch placed on the
// file itself.
type DocumentWatcher struct {
	watcher  *fsnotify.Watcher
	delay    time.Duration
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	tracked  map[string]bool
	dirs     map[string]int
	subs     map[string][]chan<- Event // pattern -> channels
	debounce map[string]*time.Timer
}

// NewDocumentWatcher starts a watcher. A non-positive delay uses
// DefaultDebounce.
func NewDocumentWatcher(delay time.Duration, logger zerolog.Logger) (*DocumentWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	dw := &DocumentWatcher{
		watcher:  watcher,
		delay:    delay,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		tracked:  make(map[string]bool),
		dirs:     make(map[string]int),
		subs:     make(map[string][]chan<- Event),
		debounce: make(map[string]*time.Timer),
	}

	dw.wg.Add(1)
	go dw.run()

	return dw, nil
}

// Add tracks path. The file does not need to exist yet, but its directory
// does.
func (dw *DocumentWatcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.tracked[abs] {
		return nil
	}
	dir := filepath.Dir(abs)
	if dw.dirs[dir] == 0 {
		if err := dw.watcher.Add(dir); err != nil {
			return err
		}
	}
	dw.dirs[dir]++
	dw.tracked[abs] = true
	return nil
}

// Remove stops tracking path.
func (dw *DocumentWatcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.tracked[abs] {
		return nil
	}
	delete(dw.tracked, abs)
	dir := filepath.Dir(abs)
	dw.dirs[dir]--
	if dw.dirs[dir] > 0 {
		return nil
	}
	delete(dw.dirs, dir)
	return dw.watcher.Remove(dir)
}

// Watch returns a channel receiving events for tracked files whose absolute
// path matches the doublestar pattern. An empty pattern matches everything.
// The channel closes when ctx ends or the watcher closes.
func (dw *DocumentWatcher) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}

	ch := make(chan Event, eventBufferSize)

	dw.mu.Lock()
	dw.subs[pattern] = append(dw.subs[pattern], ch)
	dw.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			dw.unsubscribe(pattern, ch)
		case <-dw.ctx.Done():
		}
	}()

	return ch, nil
}

// Close stops watching and closes all subscriber channels.
func (dw *DocumentWatcher) Close() error {
	dw.cancel()

	dw.mu.Lock()
	for _, timer := range dw.debounce {
		timer.Stop()
	}
	for _, subs := range dw.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	dw.subs = make(map[string][]chan<- Event)
	dw.mu.Unlock()

	err := dw.watcher.Close()
	dw.wg.Wait()
	return err
}

func (dw *DocumentWatcher) unsubscribe(pattern string, ch chan<- Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	subs := dw.subs[pattern]
	for i, sub := range subs {
		if sub == ch {
			dw.subs[pattern] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(dw.subs[pattern]) == 0 {
		delete(dw.subs, pattern)
	}
}

func (dw *DocumentWatcher) run() {
	defer dw.wg.Done()

	for {
		select {
		case <-dw.ctx.Done():
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleEvent(event)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (dw *DocumentWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if isScratchFile(filepath.Base(event.Name)) {
		return
	}

	path, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.tracked[path] || dw.ctx.Err() != nil {
		return
	}
	if timer, exists := dw.debounce[path]; exists {
		timer.Stop()
	}
	dw.debounce[path] = time.AfterFunc(dw.delay, func() {
		dw.notify(path)
	})
}

func (dw *DocumentWatcher) notify(path string) {
	event := Event{Path: path, Timestamp: time.Now()}

	dw.mu.Lock()
	defer dw.mu.Unlock()

	delete(dw.debounce, path)
	if dw.ctx.Err() != nil {
		return
	}

	for pattern, subs := range dw.subs {
		if !matches(pattern, path) {
			continue
		}
		for _, ch := range subs {
			select {
			case ch <- event:
			default:
				dw.logger.Debug().Str("path", path).Msg("watch subscriber full, dropping event")
			}
		}
	}
}

func matches(pattern, path string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, filepath.ToSlash(path))
	return err == nil && ok
}

// isScratchFile reports editor temp, swap and lock files.
func isScratchFile(name string) bool {
	return strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".lock") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, "~") ||
		strings.HasPrefix(name, ".#")
}
