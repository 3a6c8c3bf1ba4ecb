// Package engine defines the contract with the external query engine and
// ships the two collaborators typekeeper runs with out of the box: an
// in-memory event type catalog and a JSONL row sink.
package engine

import "context"

// Registry declares event types to the query engine. Definitions map
// escaped field names to engine type names.
type Registry interface {
	RegisterEventType(ctx context.Context, name string, definition map[string]string) error
}

// Sink receives formatted rows for a registered event type.
type Sink interface {
	Push(ctx context.Context, eventTypeName string, rows []map[string]any) error
}
