package value

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestProtoBridge(t *testing.T) {
	v := Object(
		Field{Name: "id", Value: Int(7)},
		Field{Name: "ratio", Value: Float(0.25)},
		Field{Name: "tags", Value: List(String("a"), Enum("B"))},
		Field{Name: "none", Value: Null()},
	)
	pv := ToProto(v)
	require.Equal(t, float64(7), pv.GetStructValue().GetFields()["id"].GetNumberValue())
	require.Equal(t, "B", pv.GetStructValue().GetFields()["tags"].GetListValue().GetValues()[1].GetStringValue())

	back := FromProto(pv)
	want := Object(
		Field{Name: "id", Value: Int(7)},
		Field{Name: "none", Value: Null()},
		Field{Name: "ratio", Value: Float(0.25)},
		Field{Name: "tags", Value: List(String("a"), String("B"))},
	)
	require.True(t, want.Equal(back), "got %s", back)
}

func TestFromGoStruct(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"name": "Ann", "age": 31})
	require.NoError(t, err)
	v, err := FromGo(s)
	require.NoError(t, err)
	require.Equal(t, `{age: 31, name: "Ann"}`, v.String())
}
