package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/typekeeper/internal/types"
)

// Catalog is an in-memory Registry.
//
// Registering a name again is accepted when the new definition keeps every
// existing field with the same type; added fields extend the entry. Any
// dropped or retyped field fails with types.ErrIncompatibleDefinition.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]map[string]string
}

var _ Registry = (*Catalog)(nil)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{types: make(map[string]map[string]string)}
}

// RegisterEventType implements Registry.
func (c *Catalog) RegisterEventType(ctx context.Context, name string, definition map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return types.ErrEmptyName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.types[name]; ok {
		for field, typ := range existing {
			got, ok := definition[field]
			if !ok {
				return fmt.Errorf("%w: %s drops field %s", types.ErrIncompatibleDefinition, name, field)
			}
			if got != typ {
				return fmt.Errorf("%w: %s field %s is %s, was %s", types.ErrIncompatibleDefinition, name, field, got, typ)
			}
		}
	}

	def := make(map[string]string, len(definition))
	for field, typ := range definition {
		def[field] = typ
	}
	c.types[name] = def
	return nil
}

// Definition returns a copy of the registered definition.
func (c *Catalog) Definition(name string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.types[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(def))
	for field, typ := range def {
		out[field] = typ
	}
	return out, true
}

// Names lists registered event types in ascending order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
