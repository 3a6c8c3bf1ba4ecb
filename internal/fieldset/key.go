// internal/fieldset/key.go
package fieldset

import (
	"sort"
	"strings"

	"github.com/solatis/typekeeper/internal/types"
)

// FieldNamesKey derives the grouping key of a record shape.
//
// Names are regulated (see RegulateChain). Without ref the key is the
// record's sorted top-level names (strict needs a ref). With ref, the key always contains ref's non-optional field names.
// Each leaf of the record then contributes its dotted name when that name is
// one of ref's optional fields or listed in reserved, or, outside strict
// mode, when it is a plain top-level name. Chained names are therefore only
// included once reserved. The result is deduplicated, sorted and
// comma-joined.
func FieldNamesKey(record map[string]any, ref *FieldSet, strict bool, reserved []string) (string, error) {
	if ref == nil {
		if strict {
			return "", types.ErrStrictWithoutReference
		}
		seen := make(map[string]struct{}, len(record))
		for name := range record {
			if key := RegulateKey(name); key != "" {
				seen[key] = struct{}{}
			}
		}
		names := make([]string, 0, len(seen))
		for name := range seen {
			names = append(names, name)
		}
		sort.Strings(names)
		return strings.Join(names, ","), nil
	}

	keys := make(map[string]struct{}, len(ref.fields))
	accepted := make(map[string]struct{}, len(reserved))
	for name, f := range ref.fields {
		if f.Optional() {
			accepted[name] = struct{}{}
		} else {
			keys[name] = struct{}{}
		}
	}
	for _, name := range reserved {
		accepted[name] = struct{}{}
	}

	leaves, err := Leaves(record)
	if err != nil {
		return "", err
	}
	for _, leaf := range leaves {
		name, ok := RegulateChain(leaf.Path)
		if !ok {
			continue
		}
		if _, ok := keys[name]; ok {
			continue
		}
		_, isAccepted := accepted[name]
		if isAccepted || (!strict && len(leaf.Path) == 1) {
			keys[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ","), nil
}
