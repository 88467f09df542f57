package diffcommit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mindprints/diff-commit/internal/core/eventbus"
	"github.com/mindprints/diff-commit/internal/core/logging"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/internal/core/session"
)

// ErrClosed is returned when opening a document on a closed App.
var ErrClosed = errors.New("app closed")

// Document is an open file bound to its session and operation manager. The
// document ID is the file's absolute path, and the file on disk is the
// editor buffer: content that differs from the head commit is the candidate
// under review.
type Document struct {
	*session.Session

	Path string

	app *App
	ops *operation.Manager
	log zerolog.Logger

	mu           sync.Mutex
	transformer  operation.Transformer
	stopAutosave context.CancelFunc
	autosaveDone chan struct{}
}

// Open returns the document at path, opening its session on first use.
func (a *App) Open(ctx context.Context, path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	if d, ok := a.docs[abs]; ok {
		return d, nil
	}

	content, exists, err := readDocument(abs)
	if err != nil {
		return nil, err
	}

	sess, err := session.Open(ctx, session.Options{
		DocumentID: abs,
		Initial:    content,
		Store:      a.storage.store,
		Diff:       a.Config.Diff.Options(),
		Observer:   eventbus.NewSessionPublisher(a.Bus),
		Exporter:   session.ExporterFunc(exportFile),
		Logger:     logging.Document("session", abs),
	})
	if err != nil {
		return nil, err
	}

	d := &Document{
		Session: sess,
		Path:    abs,
		app:     a,
		log:     logging.Document("document", abs),
	}

	if exists {
		if head, ok := sess.Head(); ok && head.Content != content {
			sess.ApplyCandidate(content)
		}
		// A draft matching the file holds nothing the file does not.
		if rd, ok := sess.RecoveredDraft(); ok && rd.Content == content {
			if err := sess.DiscardRecoveredDraft(ctx); err != nil {
				d.log.Warn().Err(err).Msg("failed to clear draft matching file")
			}
		}
	}

	reg := prometheus.WrapRegistererWith(prometheus.Labels{"document": abs}, a.Registry)
	d.ops = operation.NewManager(operation.TransformFunc(d.transform), sess, operation.ManagerOptions{
		Observer:   eventbus.NewOperationPublisher(a.Bus, abs),
		Logger:     logging.Document("operation", abs),
		Registerer: reg,
		Diff:       a.Config.Diff.Options(),
		Timeout:    a.Config.Transform.Timeout,
	})

	a.docs[abs] = d
	return d, nil
}

// Operations returns the document's operation manager.
func (d *Document) Operations() *operation.Manager {
	return d.ops
}

// Transform dispatches kind against the current editor text and returns the
// operation ID. Any pending operation on the document is cancelled.
func (d *Document) Transform(kind, instruction string) (string, error) {
	if _, ok := d.app.Config.Transform.Kinds[kind]; !ok {
		return "", fmt.Errorf("%w: unknown transform kind %q", operation.ErrInvalidInput, kind)
	}

	t, err := d.app.Transformer(instruction)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.transformer = t
	d.mu.Unlock()

	return d.ops.Dispatch(kind, d.EditorText())
}

// transform runs the transformer installed by the latest Transform call.
// Earlier operations are cancelled by then, so their results are discarded.
func (d *Document) transform(ctx context.Context, req operation.Request) (string, error) {
	d.mu.Lock()
	t := d.transformer
	d.mu.Unlock()
	if t == nil {
		return "", errors.New("no transformer configured")
	}
	return t.Transform(ctx, req)
}

// Reload reads the file and installs it as the editor text when it differs,
// publishing a document change. It reports whether the text changed.
func (d *Document) Reload() (bool, error) {
	content, exists, err := readDocument(d.Path)
	if err != nil {
		return false, err
	}
	if !exists || content == d.EditorText() {
		return false, nil
	}

	d.SetEditorText(content)
	d.app.Bus.PublishDocumentChanged(eventbus.DocumentChangedPayload{DocumentID: d.Path, Path: d.Path})
	d.log.Debug().Msg("reloaded from disk")
	return true, nil
}

// Write saves the editor text to the document's file.
func (d *Document) Write(ctx context.Context) error {
	if err := exportFile(ctx, d.Path, d.EditorText()); err != nil {
		return fmt.Errorf("write %s: %w", d.Path, err)
	}
	return nil
}

// StartAutosave saves drafts at the configured interval until the document
// closes. It does nothing when autosave is disabled or already running.
func (d *Document) StartAutosave() {
	cfg := d.app.Config.Autosave
	if !cfg.Enabled {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopAutosave != nil {
		return
	}

	ctx, cancel := context.WithCancel(logging.WithDocumentID(context.Background(), d.Path))
	d.stopAutosave = cancel
	d.autosaveDone = make(chan struct{})
	go func() {
		defer close(d.autosaveDone)
		d.Autosave(ctx, cfg.Interval)
	}()
}

func (d *Document) close() {
	d.mu.Lock()
	stop, done := d.stopAutosave, d.autosaveDone
	d.stopAutosave = nil
	d.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	d.ops.Close()
}

// readDocument returns the file content and whether the file exists.
func readDocument(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read document: %w", err)
	}
	return string(data), true, nil
}

// exportFile writes content to the document's file through a temporary file
// and rename, keeping the existing file mode.
func exportFile(_ context.Context, path, content string) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
