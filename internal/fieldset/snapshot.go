// internal/fieldset/snapshot.go
package fieldset

import (
	"fmt"
)

// FieldSnapshot is the serialized form of one Field.
type FieldSnapshot struct {
	Name     string `json:"name"`
	Type     Kind   `json:"type"`
	Optional *bool  `json:"optional,omitempty"`
	Nullable bool   `json:"nullable"`
}

// Snapshot is the serialized form of a FieldSet. Restore(s.Snapshot())
// reproduces the set, including its summary and event type name.
type Snapshot struct {
	Fields        []FieldSnapshot `json:"fields"`
	Target        string          `json:"target,omitempty"`
	Level         string          `json:"level,omitempty"`
	Rebounds      int             `json:"rebounds,omitempty"`
	QueryName     *string         `json:"query_name,omitempty"`
	QueryGroup    *string         `json:"query_group,omitempty"`
	EventTypeName string          `json:"event_type_name,omitempty"`
}

// Snapshot captures fields and identity state verbatim.
func (s *FieldSet) Snapshot() Snapshot {
	snap := Snapshot{
		Fields:        make([]FieldSnapshot, 0, len(s.fields)),
		Target:        s.target,
		Level:         s.level.String(),
		Rebounds:      s.rebounds,
		EventTypeName: s.eventTypeName,
	}
	for _, f := range s.Fields() {
		snap.Fields = append(snap.Fields, FieldSnapshot{
			Name:     f.name,
			Type:     f.kind,
			Optional: f.optional.Bool(),
			Nullable: f.nullable,
		})
	}
	if s.query != nil {
		name := s.query.name
		snap.QueryName = &name
		snap.QueryGroup = s.QueryGroup()
	}
	return snap
}

// Restore rebuilds a FieldSet from a snapshot. The event type name is taken
// verbatim, not recomputed.
func Restore(snap Snapshot) (*FieldSet, error) {
	level, err := ParseLevel(snap.Level)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, len(snap.Fields))
	for _, fs := range snap.Fields {
		f, err := NewField(fs.Name, string(fs.Type), OptionalityOf(fs.Optional), fs.Nullable)
		if err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
		fields = append(fields, f)
	}
	var opts []Option
	if snap.QueryName != nil {
		opts = append(opts, WithQuery(*snap.QueryName, snap.QueryGroup))
	}
	s := FromFields(fields, opts...)
	s.target = snap.Target
	s.level = level
	s.rebounds = snap.Rebounds
	s.eventTypeName = snap.EventTypeName
	return s, nil
}
