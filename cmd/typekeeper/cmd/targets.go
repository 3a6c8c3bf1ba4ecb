package cmd

import (
	"context"
	"fmt"
	"slices"

	"github.com/solatis/typekeeper/internal/core/config"
	"github.com/solatis/typekeeper/internal/typedef"
)

// openTargets opens every target of tf, then applies its reservations and
// queries in declaration order.
func openTargets(ctx context.Context, manager *typedef.Manager, tf *config.TargetsFile) error {
	for _, name := range tf.Names() {
		def := tf.Targets[name]
		if _, err := manager.Open(ctx, name, def.Fields); err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		for _, field := range sortedKeys(def.Reserve) {
			spec := def.Reserve[field]
			nullable := spec.Nullable != nil && *spec.Nullable
			if err := manager.Reserve(name, field, spec.Type, nullable); err != nil {
				return fmt.Errorf("reserve %s.%s: %w", name, field, err)
			}
		}
		for _, q := range def.Queries {
			if _, err := manager.AddQuery(ctx, name, q.Name, q.Group, q.Fields); err != nil {
				return fmt.Errorf("query %s/%s: %w", name, q.Name, err)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
