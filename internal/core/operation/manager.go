package operation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mindprints/diff-commit/internal/core/diff"
	"github.com/mindprints/diff-commit/pkg/randid"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Observer   Observer
	Logger     zerolog.Logger
	Registerer prometheus.Registerer
	// Diff configures stale result previews.
	Diff diff.Options
	// Timeout bounds each transform. Zero means no limit.
	Timeout time.Duration

	NewID func() string
	Now   func() time.Time
}

type entry struct {
	op        Operation
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (e *entry) finish() {
	e.closeOnce.Do(func() { close(e.done) })
}

// Manager tracks dispatched transforms. At most one operation is pending at
// a time: Dispatch cancels any pending operation before starting the new
// one. Terminal handling is serialized so concurrent resolutions are
// reconciled one at a time against the editor text visible at that moment.
type Manager struct {
	transformer Transformer
	target      Target
	observer    Observer
	log         zerolog.Logger
	metrics     *metrics
	diffOpts    diff.Options
	timeout     time.Duration
	newID       func() string
	now         func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	// resolveMu serializes terminal handling and stale decisions.
	resolveMu sync.Mutex

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	active  mapset.Set[string]
	stale   map[string]StaleResult
	closed  bool
}

// NewManager creates a Manager that runs t and reconciles results against
// target.
func NewManager(t Transformer, target Target, opts ManagerOptions) *Manager {
	if opts.NewID == nil {
		opts.NewID = func() string { return randid.Prefixed("op", 8) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Diff.Granularity == "" {
		opts.Diff = diff.DefaultOptions()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		transformer: t,
		target:      target,
		observer:    opts.Observer,
		log:         opts.Logger,
		metrics:     newMetrics(opts.Registerer),
		diffOpts:    opts.Diff,
		timeout:     opts.Timeout,
		newID:       opts.NewID,
		now:         opts.Now,
		baseCtx:     ctx,
		baseCancel:  cancel,
		entries:     make(map[string]*entry),
		active:      mapset.NewThreadUnsafeSet[string](),
		stale:       make(map[string]StaleResult),
	}
}

// Dispatch snapshots input as the operation's issued-against text and starts
// the transform without blocking. Any pending operation is cancelled first.
func (m *Manager) Dispatch(kind, input string) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("%w: operation kind is required", ErrInvalidInput)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}

	var replaced []Operation
	for _, id := range m.order {
		if m.active.Contains(id) {
			replaced = append(replaced, m.cancelLocked(m.entries[id]))
		}
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(m.baseCtx, m.timeout)
	} else {
		ctx, cancel = context.WithCancel(m.baseCtx)
	}

	e := &entry{
		op: Operation{
			ID:            m.newID(),
			Kind:          kind,
			Status:        StatusPending,
			IssuedAgainst: input,
			CreatedAt:     m.now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.entries[e.op.ID] = e
	m.order = append(m.order, e.op.ID)
	m.active.Add(e.op.ID)
	m.metrics.dispatched.WithLabelValues(kind).Inc()
	m.metrics.active.Set(float64(m.active.Cardinality()))
	started := e.op
	m.wg.Add(1)
	m.mu.Unlock()

	for _, op := range replaced {
		m.log.Debug().Str("operation_id", op.ID).Str("replaced_by", started.ID).Msg("operation replaced")
		m.notify(func(o Observer) { o.OperationFinished(op) })
	}
	m.log.Debug().Str("operation_id", started.ID).Str("kind", kind).Msg("operation dispatched")
	m.notify(func(o Observer) { o.OperationStarted(started) })

	go m.run(ctx, e, input)

	return started.ID, nil
}

func (m *Manager) run(ctx context.Context, e *entry, input string) {
	defer m.wg.Done()

	start := time.Now()
	req := Request{
		Kind:     e.op.Kind,
		Text:     input,
		Progress: func(label string) { m.progress(e, label) },
	}

	result, err := m.transformer.Transform(ctx, req)
	m.metrics.duration.WithLabelValues(req.Kind).Observe(time.Since(start).Seconds())
	if err == nil {
		// A transform that ignores cancellation may still return a result.
		err = ctx.Err()
	}
	e.cancel()

	m.resolve(e, result, err)
}

func (m *Manager) progress(e *entry, label string) {
	m.mu.Lock()
	if e.op.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}
	e.op.Progress = label
	op := e.op
	m.mu.Unlock()

	m.notify(func(o Observer) { o.OperationProgress(op) })
}

func (m *Manager) resolve(e *entry, result string, err error) {
	m.resolveMu.Lock()
	defer m.resolveMu.Unlock()
	defer e.finish()

	m.mu.Lock()
	if e.op.Status.IsTerminal() {
		m.mu.Unlock()
		m.metrics.discarded.Inc()
		m.log.Debug().Str("operation_id", e.op.ID).Msg("discarding result of cancelled operation")
		return
	}

	m.active.Remove(e.op.ID)
	m.metrics.active.Set(float64(m.active.Cardinality()))
	e.op.ResolvedAt = m.now()

	if err != nil {
		e.op.Status = StatusError
		e.op.Err = &TransformError{Kind: e.op.Kind, Reason: reason(err), Err: err}
		op := e.op
		m.metrics.finished.WithLabelValues(op.Kind, string(op.Status)).Inc()
		m.mu.Unlock()

		m.log.Warn().Err(err).Str("operation_id", op.ID).Str("kind", op.Kind).Msg("transform failed")
		m.notify(func(o Observer) { o.OperationFinished(op) })
		return
	}

	// Success is terminal before the result touches the document, so a
	// concurrent Cancel can no longer claim the operation.
	e.op.Status = StatusSuccess
	e.op.Result = result
	issued := e.op.IssuedAgainst
	m.metrics.finished.WithLabelValues(e.op.Kind, string(StatusSuccess)).Inc()
	m.mu.Unlock()

	applied, current := m.target.ApplyIfCurrent(issued, result)

	m.mu.Lock()
	var sr StaleResult
	if applied {
		e.op.Resolution = ResolutionApplied
	} else {
		e.op.Resolution = ResolutionStale
		sr = StaleResult{
			Operation: e.op,
			Current:   current,
			Preview:   diff.ComputeWith(current, result, m.diffOpts),
		}
		m.stale[e.op.ID] = sr
	}
	op := e.op
	m.metrics.resolutions.WithLabelValues(string(op.Resolution)).Inc()
	m.mu.Unlock()

	m.log.Debug().Str("operation_id", op.ID).Str("resolution", string(op.Resolution)).Msg("operation resolved")
	m.notify(func(o Observer) { o.OperationFinished(op) })
	if !applied {
		m.notify(func(o Observer) { o.StaleResult(sr) })
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return err.Error()
	}
}

// cancelLocked moves a pending entry to cancelled. Caller holds m.mu.
func (m *Manager) cancelLocked(e *entry) Operation {
	e.op.Status = StatusCancelled
	e.op.ResolvedAt = m.now()
	e.cancel()
	e.finish()
	m.active.Remove(e.op.ID)
	m.metrics.active.Set(float64(m.active.Cardinality()))
	m.metrics.finished.WithLabelValues(e.op.Kind, string(StatusCancelled)).Inc()
	return e.op
}

// Cancel cancels a pending operation. It returns false if the id is unknown
// or the operation already reached a terminal status.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || e.op.Status.IsTerminal() {
		m.mu.Unlock()
		return false
	}
	op := m.cancelLocked(e)
	m.mu.Unlock()

	m.log.Debug().Str("operation_id", id).Msg("operation cancelled")
	m.notify(func(o Observer) { o.OperationFinished(op) })
	return true
}

// CancelAll cancels every pending operation and returns how many it
// cancelled.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	var cancelled []Operation
	for _, id := range m.order {
		if m.active.Contains(id) {
			cancelled = append(cancelled, m.cancelLocked(m.entries[id]))
		}
	}
	m.mu.Unlock()

	for _, op := range cancelled {
		m.notify(func(o Observer) { o.OperationFinished(op) })
	}
	return len(cancelled)
}

// Get returns a snapshot of one operation.
func (m *Manager) Get(id string) (Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Operation{}, false
	}
	return e.op, true
}

// List returns all operations in dispatch order.
func (m *Manager) List() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Operation, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id].op)
	}
	return out
}

// Active returns the pending operations.
func (m *Manager) Active() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Operation
	for _, id := range m.order {
		if m.active.Contains(id) {
			out = append(out, m.entries[id].op)
		}
	}
	return out
}

// Stale returns results awaiting an AcceptStale or DiscardStale decision, in
// dispatch order.
func (m *Manager) Stale() []StaleResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StaleResult
	for _, id := range m.order {
		if sr, ok := m.stale[id]; ok {
			out = append(out, sr)
		}
	}
	return out
}

// Wait blocks until the operation is terminal and, for successes, resolved.
func (m *Manager) Wait(ctx context.Context, id string) (Operation, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return Operation{}, ctx.Err()
	}

	op, _ := m.Get(id)
	return op, nil
}

// AcceptStale applies a stale result as the new candidate against the
// current baseline.
func (m *Manager) AcceptStale(id string) error {
	return m.decideStale(id, ResolutionStaleAccepted)
}

// DiscardStale drops a stale result.
func (m *Manager) DiscardStale(id string) error {
	return m.decideStale(id, ResolutionStaleDiscarded)
}

func (m *Manager) decideStale(id string, res Resolution) error {
	m.resolveMu.Lock()
	defer m.resolveMu.Unlock()

	m.mu.Lock()
	sr, ok := m.stale[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotStale, id)
	}
	delete(m.stale, id)
	e := m.entries[id]
	e.op.Resolution = res
	op := e.op
	m.metrics.resolutions.WithLabelValues(string(res)).Inc()
	m.mu.Unlock()

	if res == ResolutionStaleAccepted {
		m.target.ApplyCandidate(sr.Operation.Result)
	}

	m.log.Debug().Str("operation_id", id).Str("resolution", string(res)).Msg("stale result decided")
	m.notify(func(o Observer) { o.OperationFinished(op) })
	return nil
}

// Close cancels every pending operation, rejects further dispatches and
// waits for transform goroutines to return.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.CancelAll()
	m.baseCancel()
	m.wg.Wait()
}

func (m *Manager) notify(fn func(Observer)) {
	if m.observer != nil {
		fn(m.observer)
	}
}
