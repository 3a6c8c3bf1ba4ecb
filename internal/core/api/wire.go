package api

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/typekeeper/internal/fieldset"
	"google.golang.org/protobuf/types/known/structpb"
)

// errInvalidRequest marks malformed request messages.
type errInvalidRequest struct{ msg string }

func (e errInvalidRequest) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return errInvalidRequest{msg: fmt.Sprintf(format, args...)}
}

func requiredString(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return "", invalid("%s required", key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", invalid("%s must be a non-empty string", key)
	}
	return s.StringValue, nil
}

// optionalString distinguishes an absent or null key (nil) from "".
func optionalString(req *structpb.Struct, key string) (*string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_StringValue:
		s := k.StringValue
		return &s, nil
	}
	return nil, invalid("%s must be a string", key)
}

func optionalBool(req *structpb.Struct, key string) (bool, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return false, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, invalid("%s must be a boolean", key)
	}
	return b.BoolValue, nil
}

// specs decodes {"name": "type"} or {"name": {"type": ..., "optional": ...}}.
func specs(req *structpb.Struct, key string) (map[string]fieldset.Spec, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return map[string]fieldset.Spec{}, nil
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, invalid("%s must be an object", key)
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, invalid("%s: %v", key, err)
	}
	out := make(map[string]fieldset.Spec)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, invalid("%s: %v", key, err)
	}
	return out, nil
}

// records decodes the events list. Every element must be an object.
func records(req *structpb.Struct, key string) ([]map[string]any, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, invalid("%s required", key)
	}
	list := v.GetListValue()
	if list == nil {
		return nil, invalid("%s must be a list", key)
	}
	out := make([]map[string]any, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		s := item.GetStructValue()
		if s == nil {
			return nil, invalid("%s[%d] must be an object", key, i)
		}
		out = append(out, s.AsMap())
	}
	return out, nil
}

func fieldsValue(fields []fieldset.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		entry := map[string]any{
			"name":     f.Name(),
			"type":     string(f.Kind()),
			"nullable": f.Nullable(),
			"optional": f.Optional(),
		}
		if f.Chained() {
			entry["escaped"] = f.EscapedName()
		}
		out = append(out, entry)
	}
	return out
}

func response(m map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(m)
}
