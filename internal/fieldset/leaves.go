// internal/fieldset/leaves.go
package fieldset

import (
	"fmt"
	"sort"

	"github.com/solatis/typekeeper/internal/types"
)

// Leaf is a terminal (path, value) pair of a flattened record.
// Value is a scalar or nil, never a container.
type Leaf struct {
	Path  []types.PathSegment
	Value any
}

// Leaves flattens a nested container depth-first.
//
// Map keys are visited in ascending order so the result is deterministic;
// sequences in index order. Nil keys drop their whole subtree, nil values are
// kept as leaves, and empty containers contribute nothing.
// Returns an error wrapping types.ErrNotContainer for scalar or nil input,
// and one wrapping types.ErrPathTooDeep when a path would exceed
// types.MaxPathDepth segments.
func Leaves(container any) ([]Leaf, error) {
	if !isContainer(container) {
		return nil, fmt.Errorf("%w: %T", types.ErrNotContainer, container)
	}
	leaves := []Leaf{}
	if err := collect(container, nil, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

// collect appends the leaves below node, each prefixed with prefix.
func collect(node any, prefix []types.PathSegment, out *[]Leaf) error {
	visit := func(seg types.PathSegment, val any) error {
		path := appendSegment(prefix, seg)
		if len(path) > types.MaxPathDepth {
			return fmt.Errorf("%w: more than %d segments", types.ErrPathTooDeep, types.MaxPathDepth)
		}
		if isContainer(val) {
			// empty containers recurse into nothing
			return collect(val, path, out)
		}
		*out = append(*out, Leaf{Path: path, Value: val})
		return nil
	}

	switch v := node.(type) {
	case map[string]any:
		for _, k := range sortedKeys(v) {
			if err := visit(types.KeySegment(k), v[k]); err != nil {
				return err
			}
		}
	case types.Record:
		return collect(map[string]any(v), prefix, out)
	case map[any]any:
		keys := make([]any, 0, len(v))
		for k := range v {
			if k == nil {
				continue
			}
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keyString(keys[i]) < keyString(keys[j]) })
		for _, k := range keys {
			if err := visit(types.KeySegment(keyString(k)), v[k]); err != nil {
				return err
			}
		}
	case []any:
		for i, val := range v {
			if err := visit(types.IndexSegment(i), val); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendSegment copies prefix so sibling leaves never share backing arrays.
func appendSegment(prefix []types.PathSegment, seg types.PathSegment) []types.PathSegment {
	path := make([]types.PathSegment, len(prefix), len(prefix)+1)
	copy(path, prefix)
	return append(path, seg)
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, map[any]any, []any, types.Record:
		return true
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
