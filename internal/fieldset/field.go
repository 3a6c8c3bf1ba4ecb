// internal/fieldset/field.go
package fieldset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solatis/typekeeper/internal/types"
	"gopkg.in/yaml.v3"
)

// Optionality is the tri-state optional flag of a field.
// Unspecified behaves like Required for queries but lets Update and
// FieldSet defaults decide.
type Optionality int

const (
	OptionalUnspecified Optionality = iota
	OptionalRequired
	OptionalYes
)

// OptionalityOf converts a nullable bool (as found in field specs) to Optionality.
func OptionalityOf(b *bool) Optionality {
	switch {
	case b == nil:
		return OptionalUnspecified
	case *b:
		return OptionalYes
	default:
		return OptionalRequired
	}
}

// Bool returns nil for unspecified, otherwise the explicit flag.
func (o Optionality) Bool() *bool {
	switch o {
	case OptionalYes:
		t := true
		return &t
	case OptionalRequired:
		f := false
		return &f
	}
	return nil
}

func (o Optionality) String() string {
	switch o {
	case OptionalRequired:
		return "required"
	case OptionalYes:
		return "optional"
	default:
		return "unspecified"
	}
}

// Field is one named schema entry. Values are immutable and safe to share
// between FieldSets.
type Field struct {
	name     string
	kind     Kind
	optional Optionality
	nullable bool
}

// NewField normalizes alias and builds a Field.
func NewField(name, alias string, optional Optionality, nullable bool) (Field, error) {
	if name == "" {
		return Field{}, types.ErrEmptyName
	}
	kind, err := ParseKind(alias)
	if err != nil {
		return Field{}, fmt.Errorf("field %s: %w", name, err)
	}
	// simple names are a single regulated segment
	if _, err := ParsePath(name); err != nil {
		return Field{}, fmt.Errorf("field %s: %w", name, err)
	}
	return Field{name: name, kind: kind, optional: optional, nullable: nullable}, nil
}

// MustField is NewField that panics on error. Intended for literals in tests
// and static definitions.
func MustField(name, alias string, optional Optionality, nullable bool) Field {
	f, err := NewField(name, alias, optional, nullable)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Field) Name() string             { return f.name }
func (f Field) Kind() Kind               { return f.kind }
func (f Field) Optionality() Optionality { return f.optional }
func (f Field) Nullable() bool           { return f.nullable }

// Optional reports whether the field is explicitly optional.
func (f Field) Optional() bool {
	return f.optional == OptionalYes
}

// WithOptional returns a copy with optionality replaced, unless o is unspecified.
func (f Field) WithOptional(o Optionality) Field {
	if o != OptionalUnspecified {
		f.optional = o
	}
	return f
}

// Equal compares all four attributes.
func (f Field) Equal(other Field) bool {
	return f == other
}

// Chained reports whether the name addresses a nested leaf.
func (f Field) Chained() bool {
	return strings.Contains(f.name, ".")
}

// Path decodes the field name into access segments.
func (f Field) Path() ([]types.PathSegment, error) {
	return ParsePath(f.name)
}

// EscapedName is the flat identifier used as definition and row key.
func (f Field) EscapedName() string {
	return EscapeName(f.name)
}

// summary renders the field's contribution to FieldSet.Summary.
func (f Field) summary() string {
	if f.nullable {
		return f.name + ":" + string(f.kind) + ":nullable"
	}
	return f.name + ":" + string(f.kind)
}

func (f Field) String() string {
	return fmt.Sprintf("%s(%s,%s,nullable=%t)", f.name, f.kind, f.optional, f.nullable)
}

// Spec is a field declaration as supplied by callers: either a bare type
// alias or an alias with explicit optional/nullable flags. Nil flags mean
// "not specified".
type Spec struct {
	Type     string `json:"type" yaml:"type"`
	Optional *bool  `json:"optional,omitempty" yaml:"optional,omitempty"`
	Nullable *bool  `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// SpecOf returns a bare-alias spec.
func SpecOf(alias string) Spec {
	return Spec{Type: alias}
}

// SpecWith returns a spec with explicit flags.
func SpecWith(alias string, optional, nullable bool) Spec {
	return Spec{Type: alias, Optional: &optional, Nullable: &nullable}
}

// field resolves the spec into a Field, applying defaultOptional when the
// spec does not specify optionality.
func (s Spec) field(name string, defaultOptional Optionality) (Field, error) {
	optional := OptionalityOf(s.Optional)
	if optional == OptionalUnspecified {
		optional = defaultOptional
	}
	nullable := s.Nullable != nil && *s.Nullable
	return NewField(name, s.Type, optional, nullable)
}

type specObject Spec

// UnmarshalJSON accepts "long" or {"type":"long","optional":true}.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var alias string
	if err := json.Unmarshal(data, &alias); err == nil {
		*s = Spec{Type: alias}
		return nil
	}
	var obj specObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("field spec must be a type name or an object: %w", err)
	}
	*s = Spec(obj)
	return nil
}

// MarshalJSON emits the bare alias when no flags are set.
func (s Spec) MarshalJSON() ([]byte, error) {
	if s.Optional == nil && s.Nullable == nil {
		return json.Marshal(s.Type)
	}
	return json.Marshal(specObject(s))
}

// UnmarshalYAML accepts a scalar alias or a mapping with type/optional/nullable.
func (s *Spec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = Spec{Type: value.Value}
		return nil
	}
	var obj specObject
	if err := value.Decode(&obj); err != nil {
		return fmt.Errorf("field spec must be a type name or a mapping: %w", err)
	}
	*s = Spec(obj)
	return nil
}
