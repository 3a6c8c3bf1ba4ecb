// Package fieldset infers, merges and identifies flat event schemas.
//
// A FieldSet is the schema of one record shape: named, typed fields plus the
// coordinates (target, level, query keys) that scope it. The package also
// flattens nested records into leaves, builds the field-names key used to
// group record shapes, binds content-addressed event type names, and formats
// raw records into typed rows keyed like Definition.
//
// A FieldSet is a mutable aggregate with a single owner. Share snapshots via
// Dup or Rebind rather than locking.
package fieldset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Level says which role a bound FieldSet plays for its target.
type Level int

const (
	LevelUnbound Level = iota
	LevelBase
	LevelQuery
	LevelData
)

func (l Level) String() string {
	switch l {
	case LevelBase:
		return "base"
	case LevelQuery:
		return "query"
	case LevelData:
		return "data"
	default:
		return "unbound"
	}
}

// prefix is the event type name prefix for the level.
func (l Level) prefix() string {
	switch l {
	case LevelBase:
		return "b_"
	case LevelData:
		return "e_"
	default:
		return "q_"
	}
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "base":
		return LevelBase, nil
	case "query":
		return LevelQuery, nil
	case "data":
		return LevelData, nil
	case "unbound", "":
		return LevelUnbound, nil
	}
	return LevelUnbound, fmt.Errorf("unknown level %q", s)
}

// queryKeys scopes a FieldSet to one query. A nil group differs from "".
type queryKeys struct {
	name  string
	group *string
}

func (q *queryKeys) equal(other *queryKeys) bool {
	if q == nil || other == nil {
		return q == other
	}
	if q.name != other.name {
		return false
	}
	if q.group == nil || other.group == nil {
		return q.group == other.group
	}
	return *q.group == *other.group
}

func (q *queryKeys) clone() *queryKeys {
	if q == nil {
		return nil
	}
	c := &queryKeys{name: q.name}
	if q.group != nil {
		g := *q.group
		c.group = &g
	}
	return c
}

// FieldSet is a named collection of fields plus the identity state that
// scopes it.
type FieldSet struct {
	fields          map[string]Field
	defaultOptional Optionality
	summary         string

	target        string
	level         Level
	rebounds      int
	query         *queryKeys
	eventTypeName string
}

// Option configures New and FromFields.
type Option func(*FieldSet)

// WithDefaultOptional sets the optionality applied to specs that do not
// specify one.
func WithDefaultOptional(o Optionality) Option {
	return func(s *FieldSet) { s.defaultOptional = o }
}

// WithQuery scopes the set to a query. group may be nil.
func WithQuery(name string, group *string) Option {
	return func(s *FieldSet) {
		q := &queryKeys{name: name}
		if group != nil {
			g := *group
			q.group = &g
		}
		s.query = q
	}
}

// New builds a FieldSet from name -> spec declarations. Every spec is
// validated before the set is built.
func New(specs map[string]Spec, opts ...Option) (*FieldSet, error) {
	s := newEmpty(opts)
	fields := make([]Field, 0, len(specs))
	var errs []error
	for _, name := range sortedSpecNames(specs) {
		f, err := specs[name].field(name, s.defaultOptional)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fields = append(fields, f)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, f := range fields {
		s.fields[f.name] = f
	}
	s.UpdateSummary()
	return s, nil
}

// FromFields builds a FieldSet from already normalized fields. Later
// duplicates replace earlier ones.
func FromFields(fields []Field, opts ...Option) *FieldSet {
	s := newEmpty(opts)
	for _, f := range fields {
		s.fields[f.name] = f
	}
	s.UpdateSummary()
	return s
}

func newEmpty(opts []Option) *FieldSet {
	s := &FieldSet{fields: make(map[string]Field)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Field looks up a field by name.
func (s *FieldSet) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the fields sorted by name. The slice is a copy.
func (s *FieldSet) Fields() []Field {
	out := make([]Field, 0, len(s.fields))
	for _, name := range s.Names() {
		out = append(out, s.fields[name])
	}
	return out
}

// Names returns the field names in ascending order.
func (s *FieldSet) Names() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len is the number of fields.
func (s *FieldSet) Len() int {
	return len(s.fields)
}

func (s *FieldSet) Target() string { return s.target }
func (s *FieldSet) Level() Level   { return s.level }
func (s *FieldSet) Rebounds() int  { return s.rebounds }

// QueryName returns the query name, or "" for sets not scoped to a query.
func (s *FieldSet) QueryName() string {
	if s.query == nil {
		return ""
	}
	return s.query.name
}

// QueryGroup returns a copy of the query group; nil when unset.
func (s *FieldSet) QueryGroup() *string {
	if s.query == nil || s.query.group == nil {
		return nil
	}
	g := *s.query.group
	return &g
}

// IsQuerySet reports whether the set was built with WithQuery.
func (s *FieldSet) IsQuerySet() bool {
	return s.query != nil
}

// Summary is the canonical name:type[:nullable] listing as of the last
// UpdateSummary.
func (s *FieldSet) Summary() string {
	return s.summary
}

// UpdateSummary recomputes Summary from the current fields.
func (s *FieldSet) UpdateSummary() {
	parts := make([]string, 0, len(s.fields))
	for _, name := range s.Names() {
		parts = append(parts, s.fields[name].summary())
	}
	s.summary = strings.Join(parts, ",")
}

// SetField inserts or replaces a field without touching the summary.
// Call UpdateSummary after a batch of SetField calls.
func (s *FieldSet) SetField(f Field) {
	s.fields[f.name] = f
}

// Update inserts or replaces each field by name and recomputes the summary.
// A specified optional overrides the optionality of every incoming field.
// Returns s for chaining.
func (s *FieldSet) Update(fields []Field, optional Optionality) *FieldSet {
	for _, f := range fields {
		s.fields[f.name] = f.WithOptional(optional)
	}
	s.UpdateSummary()
	return s
}

// Subset reports whether every field of s exists in other with the same
// kind. Nullable fields of s may be absent from other.
func (s *FieldSet) Subset(other *FieldSet) bool {
	for name, f := range s.fields {
		o, ok := other.fields[name]
		if !ok {
			if !f.nullable {
				return false
			}
			continue
		}
		if o.kind != f.kind {
			return false
		}
	}
	return true
}

// NullableDiff lists the nullable fields of query that s lacks, sorted by
// name. These are the fields s must gain before query can run against it.
func (s *FieldSet) NullableDiff(query *FieldSet) []Field {
	var diff []Field
	for _, f := range query.Fields() {
		if !f.nullable {
			continue
		}
		if _, ok := s.fields[f.name]; !ok {
			diff = append(diff, f)
		}
	}
	return diff
}

// Definition maps escaped field names to engine type names, the shape the
// query engine declares an event type with.
func (s *FieldSet) Definition() map[string]string {
	d := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		d[f.EscapedName()] = f.kind.EngineType()
	}
	return d
}

// FieldNamesKey is the sorted, comma-joined list of non-nullable field names.
func (s *FieldSet) FieldNamesKey() string {
	names := make([]string, 0, len(s.fields))
	for _, name := range s.Names() {
		if !s.fields[name].nullable {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

// Dup returns an independent copy: new field map, same identity state.
func (s *FieldSet) Dup() *FieldSet {
	c := &FieldSet{
		fields:          make(map[string]Field, len(s.fields)),
		defaultOptional: s.defaultOptional,
		summary:         s.summary,
		target:          s.target,
		level:           s.level,
		rebounds:        s.rebounds,
		query:           s.query.clone(),
		eventTypeName:   s.eventTypeName,
	}
	for name, f := range s.fields {
		c.fields[name] = f
	}
	return c
}

// Equal reports same schema content and same query scope.
func (s *FieldSet) Equal(other *FieldSet) bool {
	if other == nil {
		return false
	}
	return s.summary == other.summary && s.query.equal(other.query)
}

func (s *FieldSet) String() string {
	return fmt.Sprintf("FieldSet(%s)", s.summary)
}

func sortedSpecNames(specs map[string]Spec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
