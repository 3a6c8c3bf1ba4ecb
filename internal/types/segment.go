// internal/types/segment.go
package types

import "strconv"

/*
 * Path segments for chained field access.
 *
 * A chained field name such as "f1.$0.fz1" addresses a leaf inside a nested
 * record. Each dotted component decodes to one PathSegment: a map key or a
 * sequence index. internal/fieldset owns the textual encoding; this package
 * only holds the shared value type so flattening, resolution and the
 * typedef layer agree on one representation.
 */

// PathSegment represents one component of a chained field access.
type PathSegment struct {
	Key     string // map key (mutually exclusive with Index)
	Index   int    // sequence index (mutually exclusive with Key)
	IsIndex bool   // disambiguates Index=0 from unset
}

// KeySegment returns a map-key segment.
func KeySegment(key string) PathSegment {
	return PathSegment{Key: key}
}

// IndexSegment returns a sequence-index segment.
func IndexSegment(i int) PathSegment {
	return PathSegment{Index: i, IsIndex: true}
}

// String renders the segment for diagnostics: keys verbatim, indices as [N].
func (s PathSegment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}
