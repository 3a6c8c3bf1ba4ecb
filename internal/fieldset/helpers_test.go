package fieldset

import "testing"

func mustNew(t *testing.T, specs map[string]Spec, opts ...Option) *FieldSet {
	t.Helper()
	s, err := New(specs, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }

// baseSet is {x:string, y:long, a:Boolean}.
func baseSet(t *testing.T) *FieldSet {
	return mustNew(t, map[string]Spec{"x": SpecOf("string"), "y": SpecOf("long"), "a": SpecOf("Boolean")})
}

// partialSet has optional d (nullable) and e (non-nullable).
func partialSet(t *testing.T, eNullable bool) *FieldSet {
	return mustNew(t, map[string]Spec{
		"a": SpecOf("string"), "b": SpecOf("int"), "c": SpecOf("float"),
		"d": SpecWith("bool", true, true),
		"e": SpecWith("long", true, eNullable),
	})
}
