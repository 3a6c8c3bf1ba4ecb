package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solatis/typekeeper/internal/fieldset"
	"github.com/solatis/typekeeper/internal/types"
)

// FieldSetStore persists bound field sets in the fieldsets table.
// Implements typedef.Store.
type FieldSetStore struct {
	queries *Queries
}

// NewFieldSetStore wraps loaded queries.
func NewFieldSetStore(queries *Queries) *FieldSetStore {
	return &FieldSetStore{queries: queries}
}

type fieldSetRow struct {
	ID            string         `db:"fieldset_id"`
	EventTypeName string         `db:"event_type_name"`
	Target        string         `db:"target"`
	Level         string         `db:"level"`
	Rebounds      int            `db:"rebounds"`
	QueryName     sql.NullString `db:"query_name"`
	QueryGroup    sql.NullString `db:"query_group"`
	Fields        string         `db:"fields"`
}

// SaveFieldSet inserts set unless a row with its event type name exists.
func (s *FieldSetStore) SaveFieldSet(ctx context.Context, set *fieldset.FieldSet) error {
	if !set.Bound() {
		return fmt.Errorf("cannot store unbound field set %s", set)
	}
	snap := set.Snapshot()
	fields, err := json.Marshal(snap.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	_, err = s.queries.Exec(ctx, "insert-fieldset",
		string(types.NewFieldSetID()),
		snap.EventTypeName,
		snap.Target,
		snap.Level,
		snap.Rebounds,
		nullString(snap.QueryName),
		nullString(snap.QueryGroup),
		string(fields),
		timestamp(s.queries.DriverName(), time.Now()),
	)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

// ListFieldSets restores every stored set of target in insertion order.
func (s *FieldSetStore) ListFieldSets(ctx context.Context, target string) ([]*fieldset.FieldSet, error) {
	var rows []fieldSetRow
	if err := s.queries.Select(ctx, "list-fieldsets-by-target", &rows, target); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	sets := make([]*fieldset.FieldSet, 0, len(rows))
	for _, row := range rows {
		set, err := row.restore()
		if err != nil {
			return nil, fmt.Errorf("fieldset %s: %w", row.ID, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// DeleteFieldSets removes every stored set of target.
func (s *FieldSetStore) DeleteFieldSets(ctx context.Context, target string) error {
	if _, err := s.queries.Exec(ctx, "delete-fieldsets-by-target", target); err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

// Count is the number of stored sets across all targets.
func (s *FieldSetStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.queries.Get(ctx, "count-fieldsets", &n); err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return n, nil
}

func (r fieldSetRow) restore() (*fieldset.FieldSet, error) {
	if _, err := types.ParseFieldSetID(r.ID); err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	snap := fieldset.Snapshot{
		Target:        r.Target,
		Level:         r.Level,
		Rebounds:      r.Rebounds,
		EventTypeName: r.EventTypeName,
	}
	if err := json.Unmarshal([]byte(r.Fields), &snap.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if r.QueryName.Valid {
		name := r.QueryName.String
		snap.QueryName = &name
	}
	if r.QueryGroup.Valid {
		group := r.QueryGroup.String
		snap.QueryGroup = &group
	}
	return fieldset.Restore(snap)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
