package diffcommit

import (
	"context"
	"fmt"

	"github.com/mindprints/diff-commit/internal/core/logging"
	"github.com/mindprints/diff-commit/internal/watch"
)

// Watch reloads docs whenever their files change on disk and autosaves
// drafts while watching. It blocks until ctx is done.
func (a *App) Watch(ctx context.Context, docs ...*Document) error {
	w, err := watch.NewDocumentWatcher(a.Config.Watch.Debounce, logging.Component("watcher"))
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	byPath := make(map[string]*Document, len(docs))
	for _, d := range docs {
		if err := w.Add(d.Path); err != nil {
			return fmt.Errorf("watch %s: %w", d.Path, err)
		}
		byPath[d.Path] = d
		d.StartAutosave()
	}

	events, err := w.Watch(ctx, "")
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d, ok := byPath[ev.Path]
			if !ok {
				continue
			}
			if _, err := d.Reload(); err != nil {
				d.log.Warn().Err(err).Msg("reload failed")
			}
		}
	}
}
