// internal/fieldset/path.go
package fieldset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/typekeeper/internal/types"
)

/*
 * Chained field name encoding.
 *
 * Dotted form (what callers declare and what FieldNamesKey emits):
 *   - map key            -> the key itself          "fz1"
 *   - sequence index N   -> "$N"                    "$0"
 *   - all-digit map key  -> "$$N"                   "$$0"  (key "0", not index 0)
 *   segments joined by "."                          "f1.$0.fz1"
 *
 * Escaped form (flat identifier for event type definitions and rows): the
 * dotted form with every "." replaced by "$".
 *   "e.$0"      -> "e$$0"
 *   "f.foo.$$0" -> "f$foo$$$0"
 *
 * Map keys are regulated before they become segments: every rune outside
 * [A-Za-z0-9_] is replaced by "_" ("foo-bar" -> "foo_bar"). Regulated
 * literals never contain "." or "$", so the escaped form decodes back
 * unambiguously (UnescapeName). Resolve matches a record key against a
 * segment by its regulated form when no key matches exactly. Empty keys
 * never become fields.
 */

const (
	chainSeparator = "."
	escapeSigil    = "$"
)

// RegulateChain renders path as a dotted field name, regulating map keys.
// Returns false for an empty path, a leading index or an empty key.
func RegulateChain(path []types.PathSegment) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	parts := make([]string, len(path))
	for i, seg := range path {
		if seg.IsIndex {
			if i == 0 {
				// records are maps at the top level
				return "", false
			}
			parts[i] = escapeSigil + strconv.Itoa(seg.Index)
			continue
		}
		key := RegulateKey(seg.Key)
		if key == "" {
			return "", false
		}
		if i > 0 && isDigits(key) {
			parts[i] = escapeSigil + escapeSigil + key
			continue
		}
		parts[i] = key
	}
	return strings.Join(parts, chainSeparator), true
}

// RegulateKey replaces every rune of key outside [A-Za-z0-9_] with "_".
func RegulateKey(key string) string {
	if isRegulated(key) {
		return key
	}
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if isIdentRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ParsePath decodes a dotted field name into segments.
// The first segment is always a map key. Every literal segment must be
// regulated, and an all-digit key below the first segment must be written
// "$$N" so each path has exactly one name.
func ParsePath(name string) ([]types.PathSegment, error) {
	if name == "" {
		return nil, types.ErrEmptyName
	}
	parts := strings.Split(name, chainSeparator)
	if len(parts) > types.MaxPathDepth {
		return nil, fmt.Errorf("%w: %s", types.ErrPathTooDeep, name)
	}
	path := make([]types.PathSegment, 0, len(parts))
	for i, part := range parts {
		switch {
		case part == "":
			return nil, fmt.Errorf("%w: empty segment in %q", types.ErrInvalidFieldName, name)
		case i == 0:
			if !isRegulated(part) {
				return nil, fmt.Errorf("%w: segment %q in %q", types.ErrInvalidFieldName, part, name)
			}
			path = append(path, types.KeySegment(part))
		case strings.HasPrefix(part, escapeSigil+escapeSigil) && isDigits(part[2:]):
			path = append(path, types.KeySegment(part[2:]))
		case strings.HasPrefix(part, escapeSigil) && isDigits(part[1:]):
			n, err := strconv.Atoi(part[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: index %q in %q", types.ErrInvalidFieldName, part, name)
			}
			path = append(path, types.IndexSegment(n))
		case isDigits(part):
			return nil, fmt.Errorf("%w: digit key %q in %q must be written $$%s", types.ErrInvalidFieldName, part, name, part)
		case !isRegulated(part):
			return nil, fmt.Errorf("%w: segment %q in %q", types.ErrInvalidFieldName, part, name)
		default:
			path = append(path, types.KeySegment(part))
		}
	}
	return path, nil
}

// EscapeName converts a dotted field name to its flat identifier.
func EscapeName(name string) string {
	return strings.ReplaceAll(name, chainSeparator, escapeSigil)
}

// UnescapeName reverses EscapeName.
func UnescapeName(escaped string) (string, error) {
	tokens := strings.Split(escaped, escapeSigil)
	if tokens[0] == "" {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidFieldName, escaped)
	}
	parts := []string{tokens[0]}
	for i := 1; i < len(tokens); {
		switch {
		case tokens[i] != "":
			parts = append(parts, tokens[i])
			i++
		case i+1 < len(tokens) && tokens[i+1] != "" && isDigits(tokens[i+1]):
			parts = append(parts, escapeSigil+tokens[i+1])
			i += 2
		case i+2 < len(tokens) && tokens[i+1] == "" && isDigits(tokens[i+2]):
			parts = append(parts, escapeSigil+escapeSigil+tokens[i+2])
			i += 3
		default:
			return "", fmt.Errorf("%w: %q", types.ErrInvalidFieldName, escaped)
		}
	}
	return strings.Join(parts, chainSeparator), nil
}

// Resolve walks value along path. Missing keys, out-of-range indices and
// shape mismatches (index on a map, key on a sequence, descent into a
// scalar) report not found.
func Resolve(path []types.PathSegment, value any) (any, bool) {
	current := value
	for _, seg := range path {
		next, ok := step(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// step descends one segment.
func step(current any, seg types.PathSegment) (any, bool) {
	switch v := current.(type) {
	case map[string]any:
		if seg.IsIndex {
			return nil, false
		}
		if val, ok := v[seg.Key]; ok {
			return val, true
		}
		for _, k := range sortedKeys(v) {
			if RegulateKey(k) == seg.Key {
				return v[k], true
			}
		}
		return nil, false
	case types.Record:
		return step(map[string]any(v), seg)
	case map[any]any:
		if seg.IsIndex {
			return nil, false
		}
		if val, ok := v[seg.Key]; ok {
			return val, true
		}
		keys := make([]string, 0, len(v))
		byString := make(map[string]any, len(v))
		for k, val := range v {
			if k == nil {
				continue
			}
			ks := keyString(k)
			keys = append(keys, ks)
			byString[ks] = val
		}
		sort.Strings(keys)
		for _, ks := range keys {
			if ks == seg.Key || RegulateKey(ks) == seg.Key {
				return byString[ks], true
			}
		}
		return nil, false
	case []any:
		if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(v) {
			return nil, false
		}
		return v[seg.Index], true
	default:
		return nil, false
	}
}

func isRegulated(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// keyString renders a non-string map key the way flattening reports it.
func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}
