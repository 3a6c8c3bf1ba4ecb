package typedef

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/solatis/typekeeper/internal/engine"
	"github.com/solatis/typekeeper/internal/fieldset"
)

var errInjected = errors.New("injected failure")

// failingRegistry is a Catalog whose next n registrations of event type
// names starting with prefix fail.
type failingRegistry struct {
	*engine.Catalog
	mu     sync.Mutex
	prefix string
	fails  int
}

func (r *failingRegistry) failNext(prefix string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefix, r.fails = prefix, n
}

func (r *failingRegistry) RegisterEventType(ctx context.Context, name string, definition map[string]string) error {
	r.mu.Lock()
	if r.fails > 0 && strings.HasPrefix(name, r.prefix) {
		r.fails--
		r.mu.Unlock()
		return errInjected
	}
	r.mu.Unlock()
	return r.Catalog.RegisterEventType(ctx, name, definition)
}

// failingStore is a memStore whose next n saves fail.
type failingStore struct {
	*memStore
	fails int
}

func (s *failingStore) SaveFieldSet(ctx context.Context, set *fieldset.FieldSet) error {
	s.mu.Lock()
	if s.fails > 0 {
		s.fails--
		s.mu.Unlock()
		return errInjected
	}
	s.mu.Unlock()
	return s.memStore.SaveFieldSet(ctx, set)
}

func openWeb(t *testing.T, registry engine.Registry, opts ...Option) (*Manager, *recordingSink) {
	t.Helper()
	sink := newRecordingSink()
	m, err := NewManager(registry, sink, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Open(context.Background(), "web", webBase); err != nil {
		t.Fatal(err)
	}
	return m, sink
}

// assertRowsRegistered fails for any event type that received rows
// without being registered.
func assertRowsRegistered(t *testing.T, catalog *engine.Catalog, sink *recordingSink) {
	t.Helper()
	for name := range sink.rows {
		if _, ok := catalog.Definition(name); !ok {
			t.Errorf("rows pushed to %s, which is not registered", name)
		}
	}
}

func TestManager_IngestRetriesFailedRegistration(t *testing.T) {
	registry := &failingRegistry{Catalog: engine.NewCatalog()}
	m, sink := openWeb(t, registry)
	ctx := context.Background()
	records := []map[string]any{{"host": "a", "status": 1}}

	registry.failNext("e_", 1)
	if _, err := m.Ingest(ctx, "web", records); !errors.Is(err, errInjected) {
		t.Fatalf("Ingest() error = %v, want injected failure", err)
	}
	if sets, _ := m.DataSets("web"); len(sets) != 0 {
		t.Errorf("failed registration left %d data sets", len(sets))
	}
	if len(sink.rows) != 0 {
		t.Errorf("failed Ingest pushed rows: %v", sink.rows)
	}

	result, err := m.Ingest(ctx, "web", records)
	if err != nil {
		t.Fatalf("retry Ingest() error = %v", err)
	}
	if result.Accepted != 1 {
		t.Errorf("retry Ingest() = %+v", result)
	}
	assertRowsRegistered(t, registry.Catalog, sink)
}

func TestManager_IngestRetriesFailedSave(t *testing.T) {
	catalog := engine.NewCatalog()
	store := &failingStore{memStore: newMemStore()}
	m, sink := openWeb(t, catalog, WithStore(store))
	ctx := context.Background()
	records := []map[string]any{{"host": "a", "status": 1, "bytes": 3}}

	store.fails = 1
	if _, err := m.Ingest(ctx, "web", records); !errors.Is(err, errInjected) {
		t.Fatalf("Ingest() error = %v, want injected failure", err)
	}
	if sets, _ := m.DataSets("web"); len(sets) != 0 {
		t.Errorf("failed save left %d data sets", len(sets))
	}

	if _, err := m.Ingest(ctx, "web", records); err != nil {
		t.Fatalf("retry Ingest() error = %v", err)
	}
	sets, _ := m.DataSets("web")
	if len(sets) != 1 {
		t.Fatalf("DataSets() = %d, want 1", len(sets))
	}
	if _, ok := store.saved["web"][sets[0].EventTypeName()]; !ok {
		t.Errorf("data set %s not stored after retry", sets[0].EventTypeName())
	}
	assertRowsRegistered(t, catalog, sink)
}

func TestManager_AddQueryFailureLeavesTargetUnchanged(t *testing.T) {
	registry := &failingRegistry{Catalog: engine.NewCatalog()}
	m, sink := openWeb(t, registry)
	ctx := context.Background()
	if _, err := m.Ingest(ctx, "web", []map[string]any{{"host": "a", "status": 1}}); err != nil {
		t.Fatal(err)
	}
	before, _ := m.DataSets("web")
	specs := map[string]fieldset.Spec{
		"status": fieldset.SpecOf("int"),
		"reason": fieldset.SpecWith("string", true, true),
	}

	tests := []struct {
		name   string
		prefix string
	}{
		{name: "query set registration fails", prefix: "q_"},
		{name: "widened data set registration fails", prefix: "e_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry.failNext(tt.prefix, 1)
			if _, err := m.AddQuery(ctx, "web", "errors", nil, specs); !errors.Is(err, errInjected) {
				t.Fatalf("AddQuery() error = %v, want injected failure", err)
			}
			fields, _ := m.Fields("web")
			for _, f := range fields {
				if f.Name() == "reason" {
					t.Errorf("failed AddQuery reserved %s", f.Name())
				}
			}
			after, _ := m.DataSets("web")
			if len(after) != len(before) || after[0].EventTypeName() != before[0].EventTypeName() {
				t.Errorf("failed AddQuery changed data sets: %v", after)
			}
		})
	}

	registry.failNext("", 0)
	if _, err := m.AddQuery(ctx, "web", "errors", nil, specs); err != nil {
		t.Fatalf("retry AddQuery() error = %v", err)
	}
	after, _ := m.DataSets("web")
	if len(after) != 1 || after[0].EventTypeName() == before[0].EventTypeName() {
		t.Fatalf("retry AddQuery did not widen the data set: %v", after)
	}
	if _, err := m.Ingest(ctx, "web", []map[string]any{{"host": "b", "status": 2}}); err != nil {
		t.Fatal(err)
	}
	assertRowsRegistered(t, registry.Catalog, sink)
}
