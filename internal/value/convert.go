package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/dolmen-go/jsonmap"
	"google.golang.org/protobuf/types/known/structpb"

	language "github.com/hanpama/gqlexec/internal/language"
)

// FromGo converts plain Go data into a Value. Maps without an intrinsic order
// are converted with their keys sorted.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Null(), nil
		}
		return *x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", x)
		}
		return Int(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", x)
		}
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x, err)
		}
		return Float(f), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			cv, err := FromGo(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = cv
		}
		return List(items...), nil
	case map[string]any:
		fields := make([]Field, 0, len(x))
		for _, k := range sortedKeys(x) {
			cv, err := FromGo(x[k])
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Name: k, Value: cv})
		}
		return Object(fields...), nil
	case jsonmap.Ordered:
		return fromOrdered(&x)
	case *jsonmap.Ordered:
		if x == nil {
			return Null(), nil
		}
		return fromOrdered(x)
	case *structpb.Value:
		return FromProto(x), nil
	case *structpb.Struct:
		return FromProtoStruct(x), nil
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromOrdered(m *jsonmap.Ordered) (Value, error) {
	fields := make([]Field, 0, len(m.Order))
	for _, k := range m.Order {
		cv, err := FromGo(m.Data[k])
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, Field{Name: k, Value: cv})
	}
	return Object(fields...), nil
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromGo(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			cv, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = cv
		}
		return List(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return Null(), nil
		}
		plain := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			plain[iter.Key().String()] = iter.Value().Interface()
		}
		return FromGo(plain)
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	}
	if !rv.IsValid() {
		return Null(), nil
	}
	return Value{}, fmt.Errorf("unsupported Go value of type %s", rv.Type())
}

// FromAST converts a literal without type information. Variable references
// are looked up in vars; ok is false when a variable at the top level or
// inside a list is absent. Absent variables nested in objects are omitted.
func FromAST(node *language.Value, vars map[string]Value) (v Value, ok bool) {
	if node == nil {
		return Null(), false
	}
	switch node.Kind {
	case language.Variable:
		v, ok = vars[node.Raw]
		return v, ok
	case language.IntValue:
		if i, err := strconv.ParseInt(node.Raw, 10, 64); err == nil {
			return Int(i), true
		}
		f, _ := strconv.ParseFloat(node.Raw, 64)
		return Float(f), true
	case language.FloatValue:
		f, _ := strconv.ParseFloat(node.Raw, 64)
		return Float(f), true
	case language.StringValue, language.BlockValue:
		return String(node.Raw), true
	case language.BooleanValue:
		return Bool(node.Raw == "true"), true
	case language.EnumValue:
		return Enum(node.Raw), true
	case language.ListValue:
		items := make([]Value, len(node.Children))
		ok = true
		for i, c := range node.Children {
			var present bool
			if items[i], present = FromAST(c.Value, vars); !present {
				ok = false
			}
		}
		return List(items...), ok
	case language.ObjectValue:
		fields := make([]Field, 0, len(node.Children))
		for _, c := range node.Children {
			cv, present := FromAST(c.Value, vars)
			if !present {
				continue
			}
			fields = append(fields, Field{Name: c.Name, Value: cv})
		}
		return Object(fields...), true
	}
	return Null(), true
}

// MarshalJSON encodes the value; object members keep their order.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.jsonTree())
}

func (v Value) jsonTree() any {
	switch v.kind {
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.jsonTree()
		}
		return out
	case KindObject:
		m := &jsonmap.Ordered{
			Data:  make(map[string]interface{}, len(v.fields)),
			Order: make([]string, 0, len(v.fields)),
		}
		for _, f := range v.fields {
			m.Data[f.Name] = f.Value.jsonTree()
			m.Order = append(m.Order, f.Name)
		}
		return m
	case KindInt:
		return v.i
	}
	return v.Interface()
}
