// Package typedef tracks the schemas of one or more targets: the base
// fields declared when a target is opened, fields reserved for later
// use, the field sets queries need, and the data sets actually observed
// in incoming records.
package typedef

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/solatis/typekeeper/internal/fieldset"
	"github.com/solatis/typekeeper/internal/types"
)

// Typedef is the schema state of one target. Not safe for concurrent use;
// Manager serializes access.
type Typedef struct {
	target string
	base   *fieldset.FieldSet

	// fields is every field known for the target: base, reserved and
	// query fields.
	fields map[string]fieldset.Field

	querySets []*fieldset.FieldSet

	// dataSets is keyed by the record field-names key that produced them.
	dataSets map[string]*fieldset.FieldSet
}

// New opens a target. Base fields are required in every record.
func New(target string, base map[string]fieldset.Spec) (*Typedef, error) {
	if target == "" {
		return nil, types.ErrEmptyName
	}
	set, err := fieldset.New(base, fieldset.WithDefaultOptional(fieldset.OptionalRequired))
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target, err)
	}
	set.Bind(target, fieldset.LevelBase)

	t := &Typedef{
		target:   target,
		base:     set,
		fields:   make(map[string]fieldset.Field, set.Len()),
		dataSets: make(map[string]*fieldset.FieldSet),
	}
	for _, f := range set.Fields() {
		t.fields[f.Name()] = f
	}
	return t, nil
}

func (t *Typedef) Target() string { return t.target }

// Base is the set bound at LevelBase.
func (t *Typedef) Base() *fieldset.FieldSet { return t.base }

// Reserve registers an optional field. Reserving a known name again is a
// no-op when the type matches.
func (t *Typedef) Reserve(name, alias string, nullable bool) error {
	f, err := fieldset.NewField(name, alias, fieldset.OptionalYes, nullable)
	if err != nil {
		return err
	}
	return t.reserve(f)
}

func (t *Typedef) reserve(f fieldset.Field) error {
	if known, ok := t.fields[f.Name()]; ok {
		if known.Kind() != f.Kind() {
			return fmt.Errorf("%w: %s is %s, not %s", types.ErrTypeConflict, f.Name(), known.Kind(), f.Kind())
		}
		return nil
	}
	t.fields[f.Name()] = f.WithOptional(fieldset.OptionalYes)
	return nil
}

// AddQuery registers the fields a query reads. The query's fields are
// reserved on the target. Existing data sets that can serve the query but
// lack some of its nullable fields are widened and rebound; those are
// returned alongside the query set.
func (t *Typedef) AddQuery(name string, group *string, specs map[string]fieldset.Spec) (*fieldset.FieldSet, []*fieldset.FieldSet, error) {
	plan, err := t.planQuery(name, group, specs)
	if err != nil {
		return nil, nil, err
	}
	t.commitQuery(plan)
	return plan.query, plan.widened, nil
}

// queryPlan is an AddQuery computed against the current state but not yet
// applied. widened and keys are parallel.
type queryPlan struct {
	query   *fieldset.FieldSet
	widened []*fieldset.FieldSet
	keys    []string
}

// sets lists the query set followed by the widened data sets.
func (p *queryPlan) sets() []*fieldset.FieldSet {
	return append([]*fieldset.FieldSet{p.query}, p.widened...)
}

func (t *Typedef) planQuery(name string, group *string, specs map[string]fieldset.Spec) (*queryPlan, error) {
	if name == "" {
		return nil, types.ErrEmptyName
	}
	query, err := fieldset.New(specs, fieldset.WithQuery(name, group))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	for _, f := range query.Fields() {
		if known, ok := t.fields[f.Name()]; ok && known.Kind() != f.Kind() {
			return nil, fmt.Errorf("%w: query %s field %s is %s, not %s", types.ErrTypeConflict, name, f.Name(), f.Kind(), known.Kind())
		}
	}
	query.Bind(t.target, fieldset.LevelQuery)

	plan := &queryPlan{query: query}
	for _, key := range t.dataSetKeys() {
		ds := t.dataSets[key]
		if !query.Subset(ds) {
			continue
		}
		diff := ds.NullableDiff(query)
		if len(diff) == 0 {
			continue
		}
		plan.widened = append(plan.widened, ds.Dup().Update(diff, fieldset.OptionalYes).Rebind(true))
		plan.keys = append(plan.keys, key)
	}
	return plan, nil
}

func (t *Typedef) commitQuery(plan *queryPlan) {
	for _, f := range plan.query.Fields() {
		_ = t.reserve(f)
	}
	t.RemoveQuery(plan.query.QueryName(), plan.query.QueryGroup())
	t.querySets = append(t.querySets, plan.query)
	for i, key := range plan.keys {
		t.dataSets[key] = plan.widened[i]
	}
}

// RemoveQuery drops a registered query set. Data sets keep their fields.
func (t *Typedef) RemoveQuery(name string, group *string) bool {
	for i, qs := range t.querySets {
		if qs.QueryName() == name && equalGroup(qs.QueryGroup(), group) {
			t.querySets = append(t.querySets[:i], t.querySets[i+1:]...)
			return true
		}
	}
	return false
}

// Key computes the field-names key of a record against the base set and
// every reserved field.
func (t *Typedef) Key(record map[string]any, strict bool) (string, error) {
	reserved := make([]string, 0, len(t.fields))
	for name, f := range t.fields {
		if f.Optional() {
			reserved = append(reserved, name)
		}
	}
	sort.Strings(reserved)
	return fieldset.FieldNamesKey(record, t.base, strict, reserved)
}

// Guess builds an unbound field set for the shape of record. Known fields
// keep their declared kind; other fields get a kind inferred from their
// value. Chained fields appear only once reserved, and strict mode drops
// every field that is not known.
func (t *Typedef) Guess(record map[string]any, strict bool) (*fieldset.FieldSet, error) {
	key, err := t.Key(record, strict)
	if err != nil {
		return nil, err
	}
	return t.guess(key, record)
}

func (t *Typedef) guess(key string, record map[string]any) (*fieldset.FieldSet, error) {
	if key == "" {
		return fieldset.FromFields(nil), nil
	}
	names := strings.Split(key, ",")
	fields := make([]fieldset.Field, 0, len(names))
	for _, name := range names {
		if known, ok := t.fields[name]; ok {
			fields = append(fields, known.WithOptional(fieldset.OptionalRequired))
			continue
		}
		path, err := fieldset.ParsePath(name)
		if err != nil {
			return nil, err
		}
		value, _ := fieldset.Resolve(path, record)
		f, err := fieldset.NewField(name, string(GuessKind(value)), fieldset.OptionalUnspecified, false)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fieldset.FromFields(fields), nil
}

// Refer returns the data set a record belongs to, creating and binding a
// new one the first time a shape is seen. A new data set gains the
// nullable fields of every registered query it can serve.
func (t *Typedef) Refer(record map[string]any, strict bool) (*fieldset.FieldSet, bool, error) {
	key, ds, created, err := t.match(record, strict)
	if err != nil {
		return nil, false, err
	}
	if created {
		t.dataSets[key] = ds
	}
	return ds, created, nil
}

// match is Refer without storing a new data set. created reports that ds
// is new and keyed by key.
func (t *Typedef) match(record map[string]any, strict bool) (string, *fieldset.FieldSet, bool, error) {
	key, err := t.Key(record, strict)
	if err != nil {
		return "", nil, false, err
	}
	if ds, ok := t.dataSets[key]; ok {
		return key, ds, false, nil
	}

	ds, err := t.guess(key, record)
	if err != nil {
		return "", nil, false, err
	}
	for _, qs := range t.querySets {
		if !qs.Subset(ds) {
			continue
		}
		if diff := ds.NullableDiff(qs); len(diff) > 0 {
			ds.Update(diff, fieldset.OptionalYes)
		}
	}
	ds.Bind(t.target, fieldset.LevelData)
	return key, ds, true, nil
}

// DataSets returns the observed data sets ordered by event type name.
func (t *Typedef) DataSets() []*fieldset.FieldSet {
	out := make([]*fieldset.FieldSet, 0, len(t.dataSets))
	for _, ds := range t.dataSets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTypeName() < out[j].EventTypeName() })
	return out
}

// QuerySets returns the registered query sets in registration order.
func (t *Typedef) QuerySets() []*fieldset.FieldSet {
	return append([]*fieldset.FieldSet(nil), t.querySets...)
}

// Fields returns every known field sorted by name.
func (t *Typedef) Fields() []fieldset.Field {
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]fieldset.Field, 0, len(names))
	for _, name := range names {
		out = append(out, t.fields[name])
	}
	return out
}

// restore reinstates a persisted query or data set. Data sets are keyed by
// their required field names, the same key Refer stored them under.
func (t *Typedef) restore(set *fieldset.FieldSet) error {
	for _, f := range set.Fields() {
		if known, ok := t.fields[f.Name()]; ok && known.Kind() != f.Kind() {
			return fmt.Errorf("%w: %s field %s is %s, not %s", types.ErrTypeConflict, set.EventTypeName(), f.Name(), f.Kind(), known.Kind())
		}
	}

	switch set.Level() {
	case fieldset.LevelQuery:
		for _, f := range set.Fields() {
			_ = t.reserve(f)
		}
		t.RemoveQuery(set.QueryName(), set.QueryGroup())
		t.querySets = append(t.querySets, set)
	case fieldset.LevelData:
		names := make([]string, 0, set.Len())
		for _, f := range set.Fields() {
			if !f.Optional() {
				names = append(names, f.Name())
			}
			if f.Chained() {
				_ = t.reserve(f)
			}
		}
		t.dataSets[strings.Join(names, ",")] = set
	default:
		return fmt.Errorf("cannot restore %s set %s", set.Level(), set.EventTypeName())
	}
	return nil
}

func (t *Typedef) dataSetKeys() []string {
	keys := make([]string, 0, len(t.dataSets))
	for key := range t.dataSets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GuessKind infers a field kind from a decoded value.
func GuessKind(value any) fieldset.Kind {
	switch v := value.(type) {
	case bool:
		return fieldset.KindBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fieldset.KindInteger
	case float32:
		return guessFloat(float64(v))
	case float64:
		return guessFloat(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return fieldset.KindInteger
		}
		return fieldset.KindDouble
	}
	return fieldset.KindString
}

func guessFloat(f float64) fieldset.Kind {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return fieldset.KindDouble
	}
	return fieldset.KindInteger
}

func equalGroup(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
