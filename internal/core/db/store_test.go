package db

import (
	"context"
	"testing"

	"github.com/solatis/typekeeper/internal/engine"
	"github.com/solatis/typekeeper/internal/fieldset"
	"github.com/solatis/typekeeper/internal/typedef"
)

var _ typedef.Store = (*FieldSetStore)(nil)

func newTestStore(t *testing.T) *FieldSetStore {
	t.Helper()
	database := openTestDB(t)
	if _, err := MigrateUp(context.Background(), database); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	queries, err := LoadQueries(database)
	if err != nil {
		t.Fatalf("LoadQueries() error = %v", err)
	}
	return NewFieldSetStore(queries)
}

func strPtr(s string) *string { return &s }

func TestFieldSetStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	specs := map[string]fieldset.Spec{
		"host":     fieldset.SpecOf("string"),
		"req.$0":   fieldset.SpecOf("long"),
		"optional": fieldset.SpecWith("boolean", true, true),
	}
	base, err := fieldset.New(specs)
	if err != nil {
		t.Fatal(err)
	}
	base.Bind("web", fieldset.LevelBase)
	grouped, _ := fieldset.New(specs, fieldset.WithQuery("q1", strPtr("")))
	grouped.Bind("web", fieldset.LevelQuery)
	ungrouped, _ := fieldset.New(specs, fieldset.WithQuery("q1", nil))
	ungrouped.Bind("web", fieldset.LevelQuery)
	data := base.Dup().Bind("web", fieldset.LevelData).Rebind(true)
	other, _ := fieldset.New(specs)
	other.Bind("api", fieldset.LevelBase)

	for _, set := range []*fieldset.FieldSet{base, grouped, ungrouped, data, other, base} {
		if err := store.SaveFieldSet(ctx, set); err != nil {
			t.Fatalf("SaveFieldSet(%s) error = %v", set.EventTypeName(), err)
		}
	}

	if n, err := store.Count(ctx); err != nil || n != 5 {
		t.Errorf("Count() = %d, %v, want 5", n, err)
	}

	sets, err := store.ListFieldSets(ctx, "web")
	if err != nil {
		t.Fatalf("ListFieldSets() error = %v", err)
	}
	want := []*fieldset.FieldSet{base, grouped, ungrouped, data}
	if len(sets) != len(want) {
		t.Fatalf("ListFieldSets() returned %d sets, want %d", len(sets), len(want))
	}
	for i, got := range sets {
		w := want[i]
		if got.EventTypeName() != w.EventTypeName() || !got.Equal(w) {
			t.Errorf("set %d = %s (%s), want %s (%s)", i, got.EventTypeName(), got, w.EventTypeName(), w)
		}
		if got.Level() != w.Level() || got.Rebounds() != w.Rebounds() {
			t.Errorf("set %d identity = %s/%d, want %s/%d", i, got.Level(), got.Rebounds(), w.Level(), w.Rebounds())
		}
	}
	if sets[1].QueryGroup() == nil || sets[2].QueryGroup() != nil {
		t.Errorf("query group nil/empty distinction lost")
	}

	if err := store.DeleteFieldSets(ctx, "web"); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count() after delete = %d, want 1", n)
	}
}

func TestFieldSetStore_RejectsUnbound(t *testing.T) {
	store := newTestStore(t)
	set, _ := fieldset.New(map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})
	if err := store.SaveFieldSet(context.Background(), set); err == nil {
		t.Error("SaveFieldSet() accepted an unbound set")
	}
}

func TestFieldSetStore_WithManager(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	records := []map[string]any{{"host": "a", "bytes": 1}}
	base := map[string]fieldset.Spec{"host": fieldset.SpecOf("string")}

	var names []string
	for i := 0; i < 2; i++ {
		m, err := typedef.NewManager(engineCatalog(), discardSink{}, typedef.WithStore(store))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Open(ctx, "web", base); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		result, err := m.Ingest(ctx, "web", records)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		for name := range result.EventTypes {
			names = append(names, name)
		}
	}
	if len(names) != 2 || names[0] != names[1] {
		t.Errorf("event types across restarts = %v", names)
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("Count() = %d, want base + data", n)
	}
}

type discardSink struct{}

func (discardSink) Push(context.Context, string, []map[string]any) error { return nil }

func engineCatalog() *engine.Catalog { return engine.NewCatalog() }
