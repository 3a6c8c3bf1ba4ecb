// internal/fieldset/kind.go
package fieldset

import (
	"fmt"
	"strings"

	"github.com/solatis/typekeeper/internal/types"
)

// Kind is one of the four canonical primitive field types.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindDouble  Kind = "double"
	KindBoolean Kind = "boolean"
)

// kindAliases maps lower-cased aliases to canonical kinds.
// Read-only after package initialization.
var kindAliases = map[string]Kind{
	"string":  KindString,
	"str":     KindString,
	"text":    KindString,
	"varchar": KindString,
	"char":    KindString,

	"integer":  KindInteger,
	"int":      KindInteger,
	"long":     KindInteger,
	"short":    KindInteger,
	"byte":     KindInteger,
	"int8":     KindInteger,
	"int16":    KindInteger,
	"int32":    KindInteger,
	"int64":    KindInteger,
	"bigint":   KindInteger,
	"smallint": KindInteger,
	"tinyint":  KindInteger,

	"double":  KindDouble,
	"float":   KindDouble,
	"float32": KindDouble,
	"float64": KindDouble,
	"real":    KindDouble,
	"decimal": KindDouble,
	"number":  KindDouble,
	"numeric": KindDouble,

	"boolean": KindBoolean,
	"bool":    KindBoolean,
}

// ParseKind normalizes a case-insensitive type alias.
// Returns an error wrapping types.ErrUnknownType for unrecognized aliases.
func ParseKind(alias string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return "", fmt.Errorf("%w: %q", types.ErrUnknownType, alias)
	}
	return k, nil
}

// Valid reports whether k is one of the canonical kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindInteger, KindDouble, KindBoolean:
		return true
	}
	return false
}

// EngineType is the type name the query engine declares event types with.
// Integers are 64-bit on the engine side, hence "long".
func (k Kind) EngineType() string {
	switch k {
	case KindInteger:
		return "long"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "boolean"
	default:
		return "string"
	}
}

func (k Kind) String() string {
	return string(k)
}
