package api

import (
	"context"
	"log/slog"

	"google.golang.org/protobuf/types/known/structpb"
)

// Open starts tracking a target.
// Request: {target, fields}. Response: {event_type_name}.
func (s *SchemaService) Open(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	target, err := requiredString(req, "target")
	if err != nil {
		return nil, toStatus(err)
	}
	base, err := specs(req, "fields")
	if err != nil {
		return nil, toStatus(err)
	}
	set, err := s.manager.Open(ctx, target, base)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"event_type_name": set.EventTypeName()})
}

// Close stops tracking a target. Request: {target}.
func (s *SchemaService) Close(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	target, err := requiredString(req, "target")
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.manager.Close(ctx, target); err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{})
}

// Reserve registers an optional field.
// Request: {target, field, type, nullable?}.
func (s *SchemaService) Reserve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	target, err := requiredString(req, "target")
	if err != nil {
		return nil, toStatus(err)
	}
	field, err := requiredString(req, "field")
	if err != nil {
		return nil, toStatus(err)
	}
	alias, err := requiredString(req, "type")
	if err != nil {
		return nil, toStatus(err)
	}
	nullable, err := optionalBool(req, "nullable")
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.manager.Reserve(target, field, alias, nullable); err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{})
}

// RegisterQuery declares the fields a query reads.
// Request: {target, name, group?, fields}. Response: {event_type_name}.
func (s *SchemaService) RegisterQuery(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	target, err := requiredString(req, "target")
	if err != nil {
		return nil, toStatus(err)
	}
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, toStatus(err)
	}
	group, err := optionalString(req, "group")
	if err != nil {
		return nil, toStatus(err)
	}
	fields, err := specs(req, "fields")
	if err != nil {
		return nil, toStatus(err)
	}
	if len(fields) == 0 {
		return nil, toStatus(invalid("fields required"))
	}
	set, err := s.manager.AddQuery(ctx, target, name, group, fields)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"event_type_name": set.EventTypeName()})
}

// Send ingests a batch of events.
// Request: {target, events}. Response: {accepted, format_errors, event_types}.
func (s *SchemaService) Send(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	target, err := requiredString(req, "target")
	if err != nil {
		return nil, toStatus(err)
	}
	events, err := records(req, "events")
	if err != nil {
		return nil, toStatus(err)
	}
	if len(events) > s.cfg.MaxBatchSize {
		return nil, toStatus(invalid("batch size exceeds maximum of %d events", s.cfg.MaxBatchSize))
	}

	result, err := s.manager.Ingest(ctx, target, events)
	if err != nil {
		s.logger.Warn("send failed",
			slog.String("target", target),
			slog.Int("events", len(events)),
			slog.String("error", err.Error()))
		return nil, toStatus(err)
	}

	counts := make(map[string]any, len(result.EventTypes))
	for name, n := range result.EventTypes {
		counts[name] = n
	}
	return response(map[string]any{
		"accepted":      result.Accepted,
		"format_errors": result.FormatErrors,
		"event_types":   counts,
	})
}

// Fields lists the known fields of a target. Request: {target}.
func (s *SchemaService) Fields(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	target, err := requiredString(req, "target")
	if err != nil {
		return nil, toStatus(err)
	}
	fields, err := s.manager.Fields(target)
	if err != nil {
		return nil, toStatus(err)
	}
	return response(map[string]any{"fields": fieldsValue(fields)})
}

// Targets lists open targets.
func (s *SchemaService) Targets(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	names := s.manager.Targets()
	list := make([]any, 0, len(names))
	for _, name := range names {
		list = append(list, name)
	}
	return response(map[string]any{"targets": list})
}
