// Package types provides domain values shared across typekeeper components.
// It imports nothing beyond uuid.
package types

// Record is a loosely structured event as decoded from the wire.
// Values are scalars, nil, []any, map[string]any or map[any]any.
type Record map[string]any

// Resource limits enforced while decoding field names and records.
const (
	// MaxPathDepth bounds chained field names and flattening recursion.
	MaxPathDepth = 32

	// MaxBatchSize is the default cap on records per Send call.
	MaxBatchSize = 1000
)
