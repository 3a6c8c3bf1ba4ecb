// internal/fieldset/format.go
package fieldset

import (
	"errors"
	"fmt"

	"github.com/solatis/typekeeper/internal/types"
)

// Format coerces a raw record into a flat row keyed by escaped field names.
//
// The row has exactly one entry per field. A field whose value is absent,
// whose chained path does not resolve, or whose value is a container gets
// nil. Values that are present but fail coercion also get nil, and every
// such failure is reported in the returned error (wrapping
// types.ErrCoercionFailed); the row is returned regardless so the caller can
// choose to drop or keep it.
func (s *FieldSet) Format(record map[string]any) (map[string]any, error) {
	row := make(map[string]any, len(s.fields))
	var errs []error
	for _, name := range s.Names() {
		f := s.fields[name]
		key := f.EscapedName()

		value, ok := lookup(f, record)
		if !ok || isContainer(value) {
			row[key] = nil
			continue
		}
		coerced, err := Coerce(value, f.kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", name, err))
			row[key] = nil
			continue
		}
		row[key] = coerced
	}
	return row, errors.Join(errs...)
}

// lookup finds the raw value for f: a top-level key for simple fields, a
// resolved path for chained ones. Keys match exactly or by regulated form.
func lookup(f Field, record map[string]any) (any, bool) {
	if !f.Chained() {
		return step(record, types.KeySegment(f.name))
	}
	path, err := f.Path()
	if err != nil {
		return nil, false
	}
	return Resolve(path, record)
}
