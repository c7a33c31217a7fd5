package value

import (
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToProto converts v into a google.protobuf.Value. Integers become numbers and
// enums become strings.
func ToProto(v Value) *structpb.Value {
	switch v.kind {
	case KindBoolean:
		return structpb.NewBoolValue(v.b)
	case KindInt:
		return structpb.NewNumberValue(float64(v.i))
	case KindFloat:
		return structpb.NewNumberValue(v.f)
	case KindString, KindEnum:
		return structpb.NewStringValue(v.s)
	case KindList:
		items := make([]*structpb.Value, len(v.items))
		for i, item := range v.items {
			items[i] = ToProto(item)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items})
	case KindObject:
		fields := make(map[string]*structpb.Value, len(v.fields))
		for _, f := range v.fields {
			fields[f.Name] = ToProto(f.Value)
		}
		return structpb.NewStructValue(&structpb.Struct{Fields: fields})
	}
	return structpb.NewNullValue()
}

// FromProto converts a google.protobuf.Value. Integral numbers that fit in
// int64 become Int values.
func FromProto(pv *structpb.Value) Value {
	if pv == nil {
		return Null()
	}
	switch k := pv.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return Bool(k.BoolValue)
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return Int(int64(n))
		}
		return Float(n)
	case *structpb.Value_StringValue:
		return String(k.StringValue)
	case *structpb.Value_ListValue:
		values := k.ListValue.GetValues()
		items := make([]Value, len(values))
		for i, item := range values {
			items[i] = FromProto(item)
		}
		return List(items...)
	case *structpb.Value_StructValue:
		return FromProtoStruct(k.StructValue)
	}
	return Null()
}

// FromProtoStruct converts a google.protobuf.Struct with its keys sorted.
func FromProtoStruct(s *structpb.Struct) Value {
	if s == nil {
		return Null()
	}
	m := s.GetFields()
	fields := make([]Field, 0, len(m))
	for _, k := range sortedKeys(m) {
		fields = append(fields, Field{Name: k, Value: FromProto(m[k])})
	}
	return Object(fields...)
}
