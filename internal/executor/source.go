package executor

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"

	"github.com/dolmen-go/jsonmap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/gqlexec/internal/value"
)

const typeNameKey = "__typename"

// ResolveProperty reads the property name of a source value. It understands
// maps, jsonmap.Ordered, value.Value objects, protobuf messages (fields are
// matched by JSON name, then by proto name) and Go structs (fields are
// matched by json tag, then case-insensitively by name). A missing property
// resolves to nil.
func ResolveProperty(source any, name string) (any, error) {
	switch s := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return s[name], nil
	case jsonmap.Ordered:
		return s.Data[name], nil
	case *jsonmap.Ordered:
		if s == nil {
			return nil, nil
		}
		return s.Data[name], nil
	case value.Value:
		v, _ := s.Get(name)
		return v, nil
	case *structpb.Struct:
		pv, ok := s.GetFields()[name]
		if !ok {
			return nil, nil
		}
		return value.FromProto(pv), nil
	case *structpb.Value:
		v, _ := value.FromProto(s).Get(name)
		return v, nil
	case proto.Message:
		return messageField(s.ProtoReflect(), name), nil
	}
	return reflectProperty(reflect.ValueOf(source), name)
}

func messageField(m protoreflect.Message, name string) any {
	if !m.IsValid() {
		return nil
	}
	fields := m.Descriptor().Fields()
	fd := fields.ByJSONName(name)
	if fd == nil {
		fd = fields.ByName(protoreflect.Name(name))
	}
	if fd == nil {
		return nil
	}
	if fd.HasPresence() && !m.Has(fd) {
		return nil
	}
	v := m.Get(fd)
	switch {
	case fd.IsList():
		list := v.List()
		items := make([]any, list.Len())
		for i := range items {
			items[i] = protoValue(fd, list.Get(i))
		}
		return items
	case fd.IsMap():
		out := map[string]any{}
		v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			out[k.String()] = protoValue(fd.MapValue(), mv)
			return true
		})
		return out
	}
	return protoValue(fd, v)
}

func protoValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		switch msg := v.Message().Interface().(type) {
		case *structpb.Value:
			return value.FromProto(msg)
		case *structpb.ListValue:
			return value.FromProto(structpb.NewListValue(msg))
		default:
			return msg
		}
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	case protoreflect.BytesKind:
		return base64.StdEncoding.EncodeToString(v.Bytes())
	}
	return v.Interface()
}

func reflectProperty(rv reflect.Value, name string) (any, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, nil
		}
		return mv.Interface(), nil
	case reflect.Struct:
		if f, ok := structField(rv, name); ok {
			return f.Interface(), nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("cannot read property %q of %s", name, rv.Type())
}

func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	fallback := -1
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == "-" {
			continue
		}
		if tag == name {
			return rv.Field(i), true
		}
		if tag == "" && fallback < 0 && strings.EqualFold(sf.Name, name) {
			fallback = i
		}
	}
	if fallback >= 0 {
		return rv.Field(fallback), true
	}
	return reflect.Value{}, false
}

// TypeNameOf reports the GraphQL type name a source value declares: the
// __typename property of maps and objects, the message name of protobuf
// messages, or the type name of Go structs.
func TypeNameOf(source any) (string, bool) {
	switch s := source.(type) {
	case map[string]any, jsonmap.Ordered, *jsonmap.Ordered, value.Value, *structpb.Struct, *structpb.Value:
		v, _ := ResolveProperty(s, typeNameKey)
		return typeNameString(v)
	case proto.Message:
		return string(s.ProtoReflect().Descriptor().Name()), true
	}
	t := reflect.TypeOf(source)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct && t.Name() != "" {
		return t.Name(), true
	}
	return "", false
}

func typeNameString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case value.Value:
		return x.Str(), x.Kind() == value.KindString && x.Str() != ""
	}
	return "", false
}
