package types

import "errors"

// Sentinel errors for typekeeper operations.
var (
	// ErrNotContainer indicates flattening input was a scalar or nil.
	ErrNotContainer = errors.New("value is not a container (map or sequence)")

	// ErrUnknownType indicates a field type alias that cannot be normalized.
	ErrUnknownType = errors.New("unknown field type")

	// ErrCoercionFailed indicates a well-shaped value could not be coerced to the field type.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrInvalidFieldName indicates a chained field name that does not decode.
	ErrInvalidFieldName = errors.New("invalid field name")

	// ErrPathTooDeep indicates a chained field name exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrStrictWithoutReference indicates a strict field-names key requested without a reference set.
	ErrStrictWithoutReference = errors.New("strict mode requires a reference field set")

	// ErrTypeConflict indicates a field redeclared with a different type.
	ErrTypeConflict = errors.New("field already defined with a different type")

	// ErrIncompatibleDefinition indicates an event type redefinition that is not a compatible superset.
	ErrIncompatibleDefinition = errors.New("incompatible event type definition")

	// ErrUnknownTarget indicates a target that has not been opened.
	ErrUnknownTarget = errors.New("target not found")

	// ErrTargetExists indicates a target opened twice with different base fields.
	ErrTargetExists = errors.New("target already exists")

	// ErrEmptyName indicates an empty target, query or field name.
	ErrEmptyName = errors.New("name must not be empty")
)
