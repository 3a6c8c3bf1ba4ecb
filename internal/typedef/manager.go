package typedef

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/solatis/typekeeper/internal/engine"
	"github.com/solatis/typekeeper/internal/fieldset"
	"github.com/solatis/typekeeper/internal/types"
)

// Store persists bound field sets so a restarted server keeps its event
// type names. Implemented by internal/core/db.
type Store interface {
	SaveFieldSet(ctx context.Context, set *fieldset.FieldSet) error
	ListFieldSets(ctx context.Context, target string) ([]*fieldset.FieldSet, error)
	DeleteFieldSets(ctx context.Context, target string) error
}

// Manager owns the Typedef of every open target and keeps the engine in
// step with them. All methods are safe for concurrent use; one mutex
// serializes schema changes across targets.
type Manager struct {
	mu      sync.Mutex
	targets map[string]*Typedef

	registry engine.Registry
	sink     engine.Sink
	store    Store
	metrics  engine.MetricsRecorder
	logger   *slog.Logger
	strict   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists field sets through s.
func WithStore(s Store) Option { return func(m *Manager) { m.store = s } }

// WithMetrics replaces the default no-op recorder.
func WithMetrics(r engine.MetricsRecorder) Option { return func(m *Manager) { m.metrics = r } }

// WithLogger sets the logger; nil means slog.Default().
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithStrict drops record fields that are neither base nor reserved.
func WithStrict(strict bool) Option { return func(m *Manager) { m.strict = strict } }

// NewManager creates a manager registering event types with registry and
// pushing rows to sink.
func NewManager(registry engine.Registry, sink engine.Sink, opts ...Option) (*Manager, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	m := &Manager{
		targets:  make(map[string]*Typedef),
		registry: registry,
		sink:     sink,
		metrics:  engine.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With(slog.String("component", "typedef"))
	return m, nil
}

// Open starts tracking target. Opening an open target again with the same
// base fields returns the existing base set; different fields fail with
// types.ErrTargetExists. Sets persisted for the target are restored and
// re-registered.
func (m *Manager) Open(ctx context.Context, target string, base map[string]fieldset.Spec) (*fieldset.FieldSet, error) {
	td, err := New(target, base)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.targets[target]; ok {
		if existing.base.Equal(td.base) {
			return existing.base, nil
		}
		return nil, fmt.Errorf("%w: %s", types.ErrTargetExists, target)
	}

	if err := m.register(ctx, td.base); err != nil {
		return nil, err
	}
	if err := m.load(ctx, td); err != nil {
		return nil, err
	}
	m.targets[target] = td
	m.logger.Info("target opened",
		slog.String("target", target),
		slog.String("event_type", td.base.EventTypeName()),
		slog.Int("data_sets", len(td.dataSets)),
		slog.Int("query_sets", len(td.querySets)))
	return td.base, nil
}

// load restores persisted sets into td, or saves its base set when the
// target has never been stored.
func (m *Manager) load(ctx context.Context, td *Typedef) error {
	if m.store == nil {
		return nil
	}
	sets, err := m.store.ListFieldSets(ctx, td.target)
	if err != nil {
		return fmt.Errorf("load target %s: %w", td.target, err)
	}

	hasBase := false
	for _, set := range sets {
		if set.Level() == fieldset.LevelBase {
			hasBase = hasBase || set.EventTypeName() == td.base.EventTypeName()
			continue
		}
		if err := td.restore(set); err != nil {
			m.logger.Warn("skipping stored field set",
				slog.String("target", td.target),
				slog.String("event_type", set.EventTypeName()),
				slog.String("error", err.Error()))
			continue
		}
		if err := m.register(ctx, set); err != nil {
			return err
		}
	}
	if !hasBase {
		return m.store.SaveFieldSet(ctx, td.base)
	}
	return nil
}

// Close stops tracking target and forgets its persisted sets.
func (m *Manager) Close(ctx context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.targets[target]; !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownTarget, target)
	}
	delete(m.targets, target)
	if m.store != nil {
		if err := m.store.DeleteFieldSets(ctx, target); err != nil {
			return fmt.Errorf("close target %s: %w", target, err)
		}
	}
	m.logger.Info("target closed", slog.String("target", target))
	return nil
}

// Targets lists open targets in ascending order.
func (m *Manager) Targets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.targets))
	for name := range m.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields lists every known field of target.
func (m *Manager) Fields(target string) ([]fieldset.Field, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.lookup(target)
	if err != nil {
		return nil, err
	}
	return td.Fields(), nil
}

// DataSets lists the observed data sets of target.
func (m *Manager) DataSets(target string) ([]*fieldset.FieldSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.lookup(target)
	if err != nil {
		return nil, err
	}
	return td.DataSets(), nil
}

// Reserve registers an optional field on target.
func (m *Manager) Reserve(target, name, alias string, nullable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.lookup(target)
	if err != nil {
		return err
	}
	return td.Reserve(name, alias, nullable)
}

// AddQuery registers a query's fields on target and declares the query
// set, plus any data set it widened, to the engine.
func (m *Manager) AddQuery(ctx context.Context, target, name string, group *string, specs map[string]fieldset.Spec) (*fieldset.FieldSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.lookup(target)
	if err != nil {
		return nil, err
	}
	plan, err := td.planQuery(name, group, specs)
	if err != nil {
		return nil, err
	}
	// the target changes only once the engine and store hold every set
	for _, set := range plan.sets() {
		if err := m.register(ctx, set); err != nil {
			return nil, err
		}
		if err := m.save(ctx, set); err != nil {
			return nil, err
		}
	}
	td.commitQuery(plan)
	m.logger.Info("query registered",
		slog.String("target", target),
		slog.String("query", name),
		slog.String("event_type", plan.query.EventTypeName()),
		slog.Int("widened", len(plan.widened)))
	return plan.query, nil
}

// IngestResult summarizes one Ingest call.
type IngestResult struct {
	Accepted int
	// FormatErrors counts accepted records with at least one field that
	// failed coercion; those fields are nil in the pushed row.
	FormatErrors int
	// EventTypes maps each event type name rows were pushed to onto the
	// number of rows.
	EventTypes map[string]int
}

// Ingest routes records of target to their data sets, registering new
// event types as shapes appear, and pushes the formatted rows to the sink.
func (m *Manager) Ingest(ctx context.Context, target string, records []map[string]any) (IngestResult, error) {
	result := IngestResult{EventTypes: make(map[string]int)}
	batches, err := m.route(ctx, target, records, &result)
	if err != nil {
		return result, err
	}

	names := make([]string, 0, len(batches))
	for name := range batches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.sink.Push(ctx, name, batches[name]); err != nil {
			return result, fmt.Errorf("push %s: %w", name, err)
		}
	}
	m.metrics.RecordFormatted(ctx, target, result.Accepted, result.FormatErrors)
	return result, nil
}

func (m *Manager) route(ctx context.Context, target string, records []map[string]any, result *IngestResult) (map[string][]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.lookup(target)
	if err != nil {
		return nil, err
	}

	batches := make(map[string][]map[string]any)
	for _, record := range records {
		key, ds, created, err := td.match(record, m.strict)
		if err != nil {
			return nil, err
		}
		if created {
			if err := m.register(ctx, ds); err != nil {
				return nil, err
			}
			if err := m.save(ctx, ds); err != nil {
				return nil, err
			}
			td.dataSets[key] = ds
			m.logger.Debug("data set created",
				slog.String("target", target),
				slog.String("event_type", ds.EventTypeName()),
				slog.String("summary", ds.Summary()))
		}

		row, err := ds.Format(record)
		if err != nil {
			result.FormatErrors++
			m.logger.Debug("record formatted with errors",
				slog.String("target", target),
				slog.String("event_type", ds.EventTypeName()),
				slog.String("error", err.Error()))
		}
		name := ds.EventTypeName()
		batches[name] = append(batches[name], row)
		result.EventTypes[name]++
		result.Accepted++
	}
	return batches, nil
}

func (m *Manager) lookup(target string) (*Typedef, error) {
	td, ok := m.targets[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownTarget, target)
	}
	return td, nil
}

func (m *Manager) register(ctx context.Context, set *fieldset.FieldSet) error {
	if err := m.registry.RegisterEventType(ctx, set.EventTypeName(), set.Definition()); err != nil {
		return fmt.Errorf("register %s: %w", set.EventTypeName(), err)
	}
	m.metrics.RecordEventType(ctx, set.Target(), set.Level().String())
	return nil
}

func (m *Manager) save(ctx context.Context, set *fieldset.FieldSet) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.SaveFieldSet(ctx, set); err != nil {
		return fmt.Errorf("save %s: %w", set.EventTypeName(), err)
	}
	return nil
}

// IsClientError reports whether err is caused by the request rather than
// by the engine or the store.
func IsClientError(err error) bool {
	for _, target := range []error{
		types.ErrUnknownType, types.ErrInvalidFieldName, types.ErrPathTooDeep,
		types.ErrTypeConflict, types.ErrEmptyName, types.ErrTargetExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
