package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/hanpama/gqlexec/internal/value"
)

var builtinScalarNames = map[string]bool{
	"String": true, "Int": true, "Float": true, "Boolean": true, "ID": true,
}

var builtinDirectiveNames = map[string]bool{
	"include": true, "skip": true, "deprecated": true, "specifiedBy": true, "oneOf": true,
}

// IsBuiltinType reports whether name is a built-in scalar or an
// introspection type.
func IsBuiltinType(name string) bool {
	return builtinScalarNames[name] || isReserved(name)
}

// IsBuiltinDirective reports whether name is one of the directives every
// schema carries.
func IsBuiltinDirective(name string) bool { return builtinDirectiveNames[name] }

func isReserved(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}

func builtinScalars() []*Type {
	return []*Type{
		{
			Name:        "String",
			Kind:        TypeKindScalar,
			Description: "The `String` scalar type represents textual data, represented as UTF-8 character sequences.",
			Serialize:   serializeString,
			ParseValue:  parseString,
		},
		{
			Name:        "Int",
			Kind:        TypeKindScalar,
			Description: "The `Int` scalar type represents non-fractional signed whole numeric values.",
			Serialize:   serializeInt,
			ParseValue:  parseInt,
		},
		{
			Name:        "Float",
			Kind:        TypeKindScalar,
			Description: "The `Float` scalar type represents signed double-precision fractional values.",
			Serialize:   serializeFloat,
			ParseValue:  parseFloat,
		},
		{
			Name:        "Boolean",
			Kind:        TypeKindScalar,
			Description: "The `Boolean` scalar type represents `true` or `false`.",
			Serialize:   serializeBoolean,
			ParseValue:  parseBoolean,
		},
		{
			Name:        "ID",
			Kind:        TypeKindScalar,
			Description: "The `ID` scalar type represents a unique identifier, often used to refetch an object or as a key for caching.",
			Serialize:   serializeID,
			ParseValue:  parseID,
		},
	}
}

func builtinDirectives() []*Directive {
	reason := value.String("No longer supported")
	return []*Directive{
		{
			Name:        "include",
			Description: "Directs the executor to include this field or fragment only when the `if` argument is true.",
			Arguments: []*InputValue{
				{Name: "if", Description: "Included when true.", Type: NonNullType(NamedType("Boolean"))},
			},
			Locations: []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
		},
		{
			Name:        "skip",
			Description: "Directs the executor to skip this field or fragment when the `if` argument is true.",
			Arguments: []*InputValue{
				{Name: "if", Description: "Skipped when true.", Type: NonNullType(NamedType("Boolean"))},
			},
			Locations: []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
		},
		{
			Name:        "deprecated",
			Description: "Marks an element of a GraphQL schema as no longer supported.",
			Arguments: []*InputValue{
				{Name: "reason", Type: NamedType("String"), DefaultValue: &reason},
			},
			Locations: []string{"FIELD_DEFINITION", "ARGUMENT_DEFINITION", "INPUT_FIELD_DEFINITION", "ENUM_VALUE"},
		},
		{
			Name:        "specifiedBy",
			Description: "Exposes a URL that specifies the behavior of this scalar.",
			Arguments: []*InputValue{
				{Name: "url", Description: "The URL that specifies the behavior of this scalar.", Type: NonNullType(NamedType("String"))},
			},
			Locations: []string{"SCALAR"},
		},
		{
			Name:        "oneOf",
			Description: "Indicates exactly one field must be supplied and this field must not be `null`.",
			Locations:   []string{"INPUT_OBJECT"},
		},
	}
}

func serializeString(v any) (any, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	if i, ok := asInt64(v); ok {
		return strconv.FormatInt(i, 10), nil
	}
	if f, ok := asFloat64(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	return nil, fmt.Errorf("String cannot represent value: %v", v)
}

func serializeInt(v any) (any, error) {
	if i, ok := asInt64(v); ok {
		if i > math.MaxInt32 || i < math.MinInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", i)
		}
		return i, nil
	}
	if f, ok := asFloat64(v); ok {
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", f)
		}
		if f > math.MaxInt32 || f < math.MinInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %v", f)
		}
		return int64(f), nil
	}
	if n, ok := v.(json.Number); ok {
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %s", n)
		}
		return serializeInt(i)
	}
	return nil, fmt.Errorf("Int cannot represent non-integer value: %v", v)
}

func serializeFloat(v any) (any, error) {
	f, ok := asFloat64(v)
	if !ok {
		if i, isInt := asInt64(v); isInt {
			return float64(i), nil
		}
		n, isNum := v.(json.Number)
		if !isNum {
			return nil, fmt.Errorf("Float cannot represent non numeric value: %v", v)
		}
		var err error
		if f, err = n.Float64(); err != nil {
			return nil, fmt.Errorf("Float cannot represent non numeric value: %s", n)
		}
	}
	// NaN and ±Inf have no JSON representation
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("Float cannot represent non numeric value: %v", f)
	}
	return f, nil
}

func serializeBoolean(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", v)
}

func serializeID(v any) (any, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	if i, ok := asInt64(v); ok {
		return strconv.FormatInt(i, 10), nil
	}
	return nil, fmt.Errorf("ID cannot represent value: %v", v)
}

func parseString(v value.Value) (value.Value, error) {
	if v.Kind() == value.KindString {
		return v, nil
	}
	return value.Null(), fmt.Errorf("String cannot represent a non string value: %s", v)
}

func parseInt(v value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindInt:
		if v.Int() > math.MaxInt32 || v.Int() < math.MinInt32 {
			return value.Null(), fmt.Errorf("Int cannot represent non 32-bit signed integer value: %s", v)
		}
		return v, nil
	case value.KindFloat:
		f := v.Float()
		if f == math.Trunc(f) && f <= math.MaxInt32 && f >= math.MinInt32 {
			return value.Int(int64(f)), nil
		}
	}
	return value.Null(), fmt.Errorf("Int cannot represent non-integer value: %s", v)
}

func parseFloat(v value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindFloat:
		return v, nil
	case value.KindInt:
		return value.Float(v.Float()), nil
	}
	return value.Null(), fmt.Errorf("Float cannot represent non numeric value: %s", v)
}

func parseBoolean(v value.Value) (value.Value, error) {
	if v.Kind() == value.KindBoolean {
		return v, nil
	}
	return value.Null(), fmt.Errorf("Boolean cannot represent a non boolean value: %s", v)
}

func parseID(v value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindString:
		return v, nil
	case value.KindInt:
		return value.String(strconv.FormatInt(v.Int(), 10)), nil
	}
	return value.Null(), fmt.Errorf("ID cannot represent value: %s", v)
}

func asInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), v <= math.MaxInt64
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
