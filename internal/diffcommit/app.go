// Package diffcommit is the application layer: it opens documents and binds
// each one to its session, operation manager, stores and the event bus.
// Commands consume App instead of wiring the core themselves.
package diffcommit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/core/doctor"
	"github.com/mindprints/diff-commit/internal/core/eventbus"
	"github.com/mindprints/diff-commit/internal/core/history"
	"github.com/mindprints/diff-commit/internal/core/logging"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/internal/transform"
)

const busSize = 256

// TransformerFunc builds the transformer used for one dispatch.
type TransformerFunc func(instruction string) (operation.Transformer, error)

// Option configures an App.
type Option func(*App)

// WithStore replaces the configured storage backend with store. Document
// listing is only available when store also implements history.Documents.
func WithStore(store history.Store) Option {
	return func(a *App) {
		s := &storage{store: store, info: doctor.StorageInfo{Backend: fmt.Sprintf("%T", store)}}
		if docs, ok := store.(history.Documents); ok {
			s.docs = docs
		}
		a.storage = s
	}
}

// WithTransformer replaces the configured transform provider.
func WithTransformer(fn TransformerFunc) Option {
	return func(a *App) { a.newTransformer = fn }
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.Registry = reg }
}

// App is the central entry point for document operations.
type App struct {
	Config   *config.Config
	Bus      *eventbus.EventBus
	Registry *prometheus.Registry

	storage        *storage
	newTransformer TransformerFunc
	log            zerolog.Logger

	stopBus context.CancelFunc
	busDone chan struct{}

	factoryOnce sync.Once
	factory     *transform.Factory
	factoryErr  error

	mu     sync.Mutex
	docs   map[string]*Document
	closed bool
}

// New opens the configured stores and starts the event bus.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		Config: cfg,
		log:    logging.Component("app"),
		docs:   make(map[string]*Document),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.storage == nil {
		s, err := openStorage(cfg, a.log)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.storage = s
	}

	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	a.Bus = eventbus.New(busSize)
	eventbus.RegisterDebugLogger(a.Bus, logging.Component("eventbus"))
	eventbus.NewNotificationRouter(a.Bus).Register()

	ctx, cancel := context.WithCancel(context.Background())
	a.stopBus = cancel
	a.busDone = make(chan struct{})
	go func() {
		defer close(a.busDone)
		a.Bus.Start(ctx)
	}()

	return a, nil
}

// Store returns the active persistence collaborator.
func (a *App) Store() history.Store {
	return a.storage.store
}

// Documents lists every document with recorded history or a pending draft.
func (a *App) Documents(ctx context.Context) ([]history.DocumentInfo, error) {
	if a.storage.docs == nil {
		return nil, errors.New("document listing is not supported by this store")
	}
	docs, err := a.storage.listDocuments(ctx)
	if err != nil {
		return nil, history.Persistence("list documents", err)
	}
	return docs, nil
}

// StorageInfo describes the active backends and the database schema version.
func (a *App) StorageInfo(ctx context.Context) (doctor.StorageInfo, error) {
	return a.storage.describe(ctx)
}

// Transformer returns the transformer for instruction, building the
// configured provider on first use.
func (a *App) Transformer(instruction string) (operation.Transformer, error) {
	if a.newTransformer != nil {
		return a.newTransformer(instruction)
	}
	a.factoryOnce.Do(func() {
		a.factory, a.factoryErr = transform.NewFactory(a.Config.Transform, logging.Component("transform"))
	})
	if a.factoryErr != nil {
		return nil, a.factoryErr
	}
	return a.factory.For(instruction), nil
}

// Close closes open documents, stops the bus and releases the stores.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	docs := make([]*Document, 0, len(a.docs))
	for _, d := range a.docs {
		docs = append(docs, d)
	}
	a.mu.Unlock()

	for _, d := range docs {
		d.close()
	}

	a.stopBus()
	<-a.busDone

	return a.storage.close()
}
