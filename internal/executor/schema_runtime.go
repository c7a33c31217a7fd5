package executor

import (
	"context"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/reflect/protoreflect"

	schema "github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/value"
)

// SchemaRuntime dispatches through the resolver bindings stored on a schema.
// Fields without a resolver read the property of the same name from the
// source value; abstract types without a type resolver read the source's
// __typename.
type SchemaRuntime struct {
	schema *schema.Schema
}

var (
	_ Runtime    = (*SchemaRuntime)(nil)
	_ Subscriber = (*SchemaRuntime)(nil)
)

func NewSchemaRuntime(s *schema.Schema) *SchemaRuntime {
	return &SchemaRuntime{schema: s}
}

func (r *SchemaRuntime) field(objectType, field string) (*schema.Field, error) {
	t := r.schema.Type(objectType)
	if t == nil {
		return nil, fmt.Errorf("unknown type %s", objectType)
	}
	f := t.Field(field)
	if f == nil {
		return nil, fmt.Errorf("field '%s' not found on type %s", field, objectType)
	}
	return f, nil
}

func (r *SchemaRuntime) ResolveField(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	f, err := r.field(objectType, field)
	if err != nil {
		return nil, err
	}
	if f.Resolve != nil {
		return f.Resolve(ctx, source, args)
	}
	return ResolveProperty(source, field)
}

func (r *SchemaRuntime) Subscribe(ctx context.Context, objectType string, field string, source any, args map[string]any) (<-chan any, error) {
	f, err := r.field(objectType, field)
	if err != nil {
		return nil, err
	}
	if f.Subscribe == nil {
		return nil, fmt.Errorf("no subscription source bound to %s.%s", objectType, field)
	}
	return f.Subscribe(ctx, source, args)
}

func (r *SchemaRuntime) ResolveType(ctx context.Context, abstractType string, v any) (string, error) {
	t := r.schema.Type(abstractType)
	if t == nil {
		return "", fmt.Errorf("unknown type %s", abstractType)
	}
	if t.ResolveType != nil {
		return t.ResolveType(ctx, v)
	}
	if name, ok := TypeNameOf(v); ok {
		return name, nil
	}
	return "", fmt.Errorf("cannot determine the concrete type of %s for a value of type %T", abstractType, v)
}

func (r *SchemaRuntime) SerializeLeafValue(ctx context.Context, typeName string, v any) (any, error) {
	t := r.schema.Type(typeName)
	if t == nil {
		return nil, fmt.Errorf("unknown type %s", typeName)
	}
	if vv, ok := v.(value.Value); ok {
		v = vv.Interface()
	}
	switch t.Kind {
	case schema.TypeKindEnum:
		name, ok := enumName(v)
		if !ok || t.EnumValue(name) == nil {
			return nil, fmt.Errorf("Enum %q cannot represent value: %v", typeName, v)
		}
		return value.Enum(name), nil
	case schema.TypeKindScalar:
		if t.Serialize != nil {
			return t.Serialize(v)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%s is not a leaf type", typeName)
}

func enumName(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case protoreflect.Enum:
		ev := x.Descriptor().Values().ByNumber(x.Number())
		if ev == nil {
			return "", false
		}
		return string(ev.Name()), true
	case fmt.Stringer:
		return x.String(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}
