package typedef

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/solatis/typekeeper/internal/fieldset"
	"github.com/solatis/typekeeper/internal/types"
)

func newTypedef(t *testing.T, base map[string]fieldset.Spec) *Typedef {
	t.Helper()
	td, err := New("web", base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return td
}

func summaryOf(set *fieldset.FieldSet) string { return set.Summary() }

func TestNew(t *testing.T) {
	td := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string"), "b": fieldset.SpecOf("int")})

	if td.Base().Level() != fieldset.LevelBase || !strings.HasPrefix(td.Base().EventTypeName(), "b_") {
		t.Errorf("base bound as %s/%s", td.Base().Level(), td.Base().EventTypeName())
	}
	if got := td.Base().FieldNamesKey(); got != "a,b" {
		t.Errorf("base FieldNamesKey() = %q", got)
	}
	for _, f := range td.Fields() {
		if f.Optional() {
			t.Errorf("base field %s is optional", f.Name())
		}
	}

	if _, err := New("", nil); !errors.Is(err, types.ErrEmptyName) {
		t.Errorf("New(\"\") error = %v, want ErrEmptyName", err)
	}
	if _, err := New("web", map[string]fieldset.Spec{"a": fieldset.SpecOf("blob")}); !errors.Is(err, types.ErrUnknownType) {
		t.Errorf("New() error = %v, want ErrUnknownType", err)
	}
}

func TestReserve(t *testing.T) {
	td := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})

	tests := []struct {
		name    string
		field   string
		alias   string
		wantErr error
	}{
		{"same type again", "a", "String", nil},
		{"conflicting type", "a", "long", types.ErrTypeConflict},
		{"new chained field", "z.x1", "int", nil},
		{"bad alias", "q", "blob", types.ErrUnknownType},
		{"bad chain", "z.$x", "int", types.ErrInvalidFieldName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := td.Reserve(tt.field, tt.alias, false)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Reserve() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Reserve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	var names []string
	for _, f := range td.Fields() {
		names = append(names, f.Name())
	}
	if got := strings.Join(names, ","); got != "a,z.x1" {
		t.Errorf("Fields() = %s", got)
	}
}

func TestGuess(t *testing.T) {
	record := map[string]any{
		"a": "x", "b": true, "c": 1, "d": 1.5, "e": "s", "f": float64(2),
		"z": map[string]any{"x1": 1},
	}

	tests := []struct {
		name    string
		reserve []string
		strict  bool
		want    string
	}{
		{
			name: "kinds from values",
			want: "a:string,b:boolean,c:integer,d:double,e:string,f:integer",
		},
		{
			name:    "reserved chain keeps declared kind",
			reserve: []string{"z.x1"},
			want:    "a:string,b:boolean,c:integer,d:double,e:string,f:integer,z.x1:string",
		},
		{
			name:   "strict keeps base only",
			strict: true,
			want:   "a:string",
		},
		{
			name:    "strict with reserved chain",
			reserve: []string{"z.x1"},
			strict:  true,
			want:    "a:string,z.x1:string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})
			for _, name := range tt.reserve {
				if err := td.Reserve(name, "string", false); err != nil {
					t.Fatal(err)
				}
			}
			set, err := td.Guess(record, tt.strict)
			if err != nil {
				t.Fatalf("Guess() error = %v", err)
			}
			if got := summaryOf(set); got != tt.want {
				t.Errorf("Guess() = %s, want %s", got, tt.want)
			}
			if set.Bound() {
				t.Errorf("Guess() returned a bound set")
			}
		})
	}
}

func TestRefer(t *testing.T) {
	td := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})

	first, created, err := td.Refer(map[string]any{"a": "x", "b": 1}, false)
	if err != nil || !created {
		t.Fatalf("Refer() = %v, %t, %v", first, created, err)
	}
	if first.Level() != fieldset.LevelData || !strings.HasPrefix(first.EventTypeName(), "e_") {
		t.Errorf("data set bound as %s/%s", first.Level(), first.EventTypeName())
	}

	again, created, err := td.Refer(map[string]any{"a": "y", "b": 99}, false)
	if err != nil || created || again != first {
		t.Errorf("same shape should return the existing data set")
	}

	other, created, err := td.Refer(map[string]any{"a": "y", "c": true}, false)
	if err != nil || !created || other.EventTypeName() == first.EventTypeName() {
		t.Errorf("new shape should create a new data set")
	}

	if got := len(td.DataSets()); got != 2 {
		t.Errorf("DataSets() has %d sets, want 2", got)
	}
}

func TestRefer_RegulatesRecordKeys(t *testing.T) {
	td := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})
	if err := td.Reserve("z.foo_bar", "long", false); err != nil {
		t.Fatal(err)
	}

	record := map[string]any{"a": "x", "p-q": 2, "z": map[string]any{"foo-bar": 7}}
	ds, created, err := td.Refer(record, false)
	if err != nil || !created {
		t.Fatalf("Refer() = %v, %t, %v", ds, created, err)
	}
	if got := ds.FieldNamesKey(); got != "a,p_q,z.foo_bar" {
		t.Errorf("data set key = %q", got)
	}

	row, err := ds.Format(record)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if row["p_q"] != int64(2) || row["z$foo_bar"] != int64(7) {
		t.Errorf("row = %v", row)
	}

	again, created, _ := td.Refer(map[string]any{"a": "y", "p_q": 3, "z": map[string]any{"foo_bar": 1}}, false)
	if created || again != ds {
		t.Errorf("regulated and literal keys should share a data set")
	}
}

func TestRefer_WidensForQueries(t *testing.T) {
	td := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})
	_, widened, err := td.AddQuery("q1", nil, map[string]fieldset.Spec{
		"a": fieldset.SpecOf("string"),
		"n": fieldset.SpecWith("long", true, true),
	})
	if err != nil || len(widened) != 0 {
		t.Fatalf("AddQuery() = %v, %v", widened, err)
	}

	ds, _, err := td.Refer(map[string]any{"a": "x"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.Summary(); got != "a:string,n:integer:nullable" {
		t.Errorf("Summary() = %s", got)
	}
	if got := ds.FieldNamesKey(); got != "a" {
		t.Errorf("FieldNamesKey() = %s", got)
	}

	unrelated, _, err := td.Refer(map[string]any{"a": 1.5}, false)
	if err != nil || unrelated != ds {
		t.Errorf("record with the same names should reuse the data set")
	}
}

func TestAddQuery_WidensExistingDataSets(t *testing.T) {
	td := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})
	before, _, err := td.Refer(map[string]any{"a": "x", "b": 1}, false)
	if err != nil {
		t.Fatal(err)
	}

	query, widened, err := td.AddQuery("q1", strPtr("g"), map[string]fieldset.Spec{
		"b": fieldset.SpecOf("int"),
		"m": fieldset.SpecWith("string", true, true),
	})
	if err != nil {
		t.Fatalf("AddQuery() error = %v", err)
	}
	if query.Level() != fieldset.LevelQuery || query.QueryName() != "q1" {
		t.Errorf("query bound as %s/%s", query.Level(), query.QueryName())
	}
	if len(widened) != 1 {
		t.Fatalf("widened %d sets, want 1", len(widened))
	}
	after := widened[0]
	if after.EventTypeName() == before.EventTypeName() {
		t.Errorf("widened set kept its event type name")
	}
	if got := after.Summary(); got != "a:string,b:integer,m:string:nullable" {
		t.Errorf("widened Summary() = %s", got)
	}
	if before.Summary() != "a:string,b:integer" {
		t.Errorf("original set mutated: %s", before.Summary())
	}

	current, created, err := td.Refer(map[string]any{"a": "y", "b": 2}, false)
	if err != nil || created || current != after {
		t.Errorf("Refer() should return the widened set")
	}

	if _, _, err := td.AddQuery("q2", nil, map[string]fieldset.Spec{"a": fieldset.SpecOf("long")}); !errors.Is(err, types.ErrTypeConflict) {
		t.Errorf("AddQuery() error = %v, want ErrTypeConflict", err)
	}
	if got := len(td.QuerySets()); got != 1 {
		t.Errorf("QuerySets() = %d, want 1", got)
	}

	if !td.RemoveQuery("q1", strPtr("g")) || len(td.QuerySets()) != 0 {
		t.Errorf("RemoveQuery() did not remove q1")
	}
}

func TestRestore(t *testing.T) {
	src := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})
	if err := src.Reserve("z.x1", "int", false); err != nil {
		t.Fatal(err)
	}
	query, _, err := src.AddQuery("q1", nil, map[string]fieldset.Spec{"a": fieldset.SpecOf("string"), "n": fieldset.SpecWith("long", true, true)})
	if err != nil {
		t.Fatal(err)
	}
	ds, _, err := src.Refer(map[string]any{"a": "x", "z": map[string]any{"x1": 3}}, false)
	if err != nil {
		t.Fatal(err)
	}

	dst := newTypedef(t, map[string]fieldset.Spec{"a": fieldset.SpecOf("string")})
	for _, set := range []*fieldset.FieldSet{query, ds} {
		restored, err := fieldset.Restore(set.Snapshot())
		if err != nil {
			t.Fatal(err)
		}
		if err := dst.restore(restored); err != nil {
			t.Fatalf("restore() error = %v", err)
		}
	}

	got, created, err := dst.Refer(map[string]any{"a": "y", "z": map[string]any{"x1": 4}}, false)
	if err != nil || created {
		t.Fatalf("Refer() after restore created a new set")
	}
	if got.EventTypeName() != ds.EventTypeName() {
		t.Errorf("EventTypeName() = %s, want %s", got.EventTypeName(), ds.EventTypeName())
	}
	if len(dst.QuerySets()) != 1 {
		t.Errorf("query set not restored")
	}

	if err := dst.restore(dst.Base()); err == nil {
		t.Errorf("restore() accepted a base set")
	}
}

func TestGuessKind(t *testing.T) {
	tests := []struct {
		value any
		want  fieldset.Kind
	}{
		{true, fieldset.KindBoolean},
		{1, fieldset.KindInteger},
		{int64(-3), fieldset.KindInteger},
		{uint8(2), fieldset.KindInteger},
		{2.0, fieldset.KindInteger},
		{2.5, fieldset.KindDouble},
		{float32(0.25), fieldset.KindDouble},
		{math.Inf(1), fieldset.KindDouble},
		{1e300, fieldset.KindDouble},
		{json.Number("12"), fieldset.KindInteger},
		{json.Number("1.2"), fieldset.KindDouble},
		{"12", fieldset.KindString},
		{nil, fieldset.KindString},
	}
	for _, tt := range tests {
		if got := GuessKind(tt.value); got != tt.want {
			t.Errorf("GuessKind(%#v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func strPtr(s string) *string { return &s }
