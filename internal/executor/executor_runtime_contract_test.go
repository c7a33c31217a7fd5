package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/dolmen-go/jsonmap"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	schema "github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/value"
)

const runtimeSDL = `
type Query {
  user(id: ID!): User
  role(name: String!): Role
  search(term: String): [SearchResult!]!
  now: Time
  profile: Profile
  field: FieldDescriptorProto
  stamp: Timestamp
}

enum Role { ADMIN MEMBER }

scalar Time

type User { id: ID! name: String role: Role tags: [String!] }
type Group { name: String! }
union SearchResult = User | Group

type Profile { name: String tags: [String] address: Address }
type Address { city: String }

type FieldDescriptorProto { name: String number: Int label: String typeName: String }
type Timestamp { seconds: Int nanos: Int }
`

func TestSchemaRuntime_Bindings(t *testing.T) {
	sch := mustBuild(t, schema.NewBuilder().AddSDL(runtimeSDL).
		Resolve("Query", "user", func(ctx context.Context, source any, args map[string]any) (any, error) {
			return map[string]any{"id": args["id"], "name": "Ann", "role": "ADMIN"}, nil
		}).
		Resolve("Query", "role", func(ctx context.Context, source any, args map[string]any) (any, error) {
			return args["name"], nil
		}).
		Resolve("Query", "search", func(ctx context.Context, source any, args map[string]any) (any, error) {
			return []any{
				struct{ Name string }{Name: "admins"},
				map[string]any{"id": 7, "name": "Bob"},
			}, nil
		}).
		ResolveType("SearchResult", func(ctx context.Context, v any) (string, error) {
			if _, ok := v.(map[string]any); ok {
				return "User", nil
			}
			return "Group", nil
		}).
		Scalar("Time", func(v any) (any, error) {
			return fmt.Sprintf("T%v", v), nil
		}, nil))
	exec := NewExecutor(NewSchemaRuntime(sch), sch)

	t.Run("resolvers and enums", func(t *testing.T) {
		res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ user(id: 4) { id name role } role(name: "MEMBER") now }`), "", nil, map[string]any{"now": 42})
		require.Empty(t, res.Errors)
		requireData(t, `{"user": {"id": "4", "name": "Ann", "role": "ADMIN"}, "role": "MEMBER", "now": "T42"}`, res)

		role, _ := res.Data.Get("role")
		require.Equal(t, value.KindEnum, role.Kind())
	})

	t.Run("invalid enum value", func(t *testing.T) {
		res := run(t, exec, `{ role(name: "OWNER") }`, nil)
		requireData(t, `{"role": null}`, res)
		requireErrors(t, []GraphQLError{
			{Message: `Enum "Role" cannot represent value: OWNER`, Path: Path{"role"}},
		}, res.Errors)
	})

	t.Run("type resolver binding", func(t *testing.T) {
		res := run(t, exec, `{ search { __typename ... on Group { name } ... on User { id } } }`, nil)
		require.Empty(t, res.Errors)
		requireData(t, `{"search": [{"__typename": "Group", "name": "admins"}, {"__typename": "User", "id": "7"}]}`, res)
	})

	t.Run("builtin scalar coercion", func(t *testing.T) {
		res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ profile { name } }`), "", nil,
			map[string]any{"profile": map[string]any{"name": 12}})
		require.Empty(t, res.Errors)
		requireData(t, `{"profile": {"name": "12"}}`, res)
	})
}

func TestSchemaRuntime_DefaultResolution(t *testing.T) {
	sch := mustBuildSchema(t, runtimeSDL)
	exec := NewExecutor(NewSchemaRuntime(sch), sch)
	query := `{ profile { name tags address { city } } }`
	want := `{"profile": {"name": "Ann", "tags": ["a", "b"], "address": {"city": "Seoul"}}}`

	pbStruct, err := structpb.NewStruct(map[string]any{
		"name":    "Ann",
		"tags":    []any{"a", "b"},
		"address": map[string]any{"city": "Seoul"},
	})
	require.NoError(t, err)

	type address struct{ City string }
	type profile struct {
		FullName string   `json:"name"`
		Tags     []string `json:"tags,omitempty"`
		Address  *address
		hidden   string
	}

	sources := map[string]any{
		"map": map[string]any{
			"name":    "Ann",
			"tags":    []any{"a", "b"},
			"address": map[string]any{"city": "Seoul"},
		},
		"ordered": jsonmap.Ordered{
			Order: []string{"name", "tags", "address"},
			Data: map[string]any{
				"name":    "Ann",
				"tags":    []string{"a", "b"},
				"address": &jsonmap.Ordered{Order: []string{"city"}, Data: map[string]any{"city": "Seoul"}},
			},
		},
		"value": value.Object(
			value.Field{Name: "name", Value: value.String("Ann")},
			value.Field{Name: "tags", Value: value.List(value.String("a"), value.String("b"))},
			value.Field{Name: "address", Value: value.Object(value.Field{Name: "city", Value: value.String("Seoul")})},
		),
		"structpb": pbStruct,
		"struct":   &profile{FullName: "Ann", Tags: []string{"a", "b"}, Address: &address{City: "Seoul"}, hidden: "x"},
		"string map": map[string]any{
			"name":    "Ann",
			"tags":    []string{"a", "b"},
			"address": map[string]string{"city": "Seoul"},
		},
	}
	for name, source := range sources {
		t.Run(name, func(t *testing.T) {
			res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, query), "", nil, map[string]any{"profile": source})
			require.Empty(t, res.Errors)
			requireData(t, want, res)
		})
	}

	t.Run("unreadable source", func(t *testing.T) {
		res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ profile { name } }`), "", nil, map[string]any{"profile": 5})
		requireData(t, `{"profile": {"name": null}}`, res)
		requireErrors(t, []GraphQLError{
			{Message: `cannot read property "name" of int`, Path: Path{"profile", "name"}},
		}, res.Errors)
	})
}

func TestSchemaRuntime_ProtoMessages(t *testing.T) {
	sch := mustBuildSchema(t, runtimeSDL)
	exec := NewExecutor(NewSchemaRuntime(sch), sch)

	root := map[string]any{
		"field": &descriptorpb.FieldDescriptorProto{
			Name:   proto.String("id"),
			Number: proto.Int32(1),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		},
		"stamp": &timestamppb.Timestamp{Seconds: 1700000000},
	}

	res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{
		field { name number label typeName }
		stamp { seconds nanos }
	}`), "", nil, root)
	require.Empty(t, res.Errors)
	requireData(t, `{
		"field": {"name": "id", "number": 1, "label": "LABEL_OPTIONAL", "typeName": null},
		"stamp": {"seconds": 1700000000, "nanos": 0}
	}`, res)
}

func TestSchemaRuntime_Introspection(t *testing.T) {
	sch := mustBuildSchema(t, runtimeSDL)
	exec := NewExecutor(NewSchemaRuntime(sch), sch)

	res := run(t, exec, `{
		__type(name: "User") { name kind fields { name } }
		missing: __type(name: "Nope") { name }
		__schema { queryType { name } mutationType { name } }
	}`, nil)
	require.Empty(t, res.Errors)
	requireData(t, `{
		"__type": {"name": "User", "kind": "OBJECT", "fields": [{"name": "id"}, {"name": "name"}, {"name": "role"}, {"name": "tags"}]},
		"missing": null,
		"__schema": {"queryType": {"name": "Query"}, "mutationType": null}
	}`, res)

	t.Run("runtime is not consulted", func(t *testing.T) {
		rt := NewMockRuntime(nil)
		exec := NewExecutor(rt, sch)
		res := run(t, exec, `{ __schema { types { name } } }`, nil)
		require.Empty(t, res.Errors)
		require.Empty(t, rt.GetCalls())
	})
}

func TestTypeNameOf(t *testing.T) {
	type Widget struct{}
	tests := []struct {
		name   string
		source any
		want   string
		wantOK bool
	}{
		{name: "map", source: map[string]any{"__typename": "User"}, want: "User", wantOK: true},
		{name: "map without typename", source: map[string]any{"id": 1}},
		{name: "value", source: value.Object(value.Field{Name: "__typename", Value: value.String("Post")}), want: "Post", wantOK: true},
		{name: "proto message", source: &descriptorpb.FieldDescriptorProto{}, want: "FieldDescriptorProto", wantOK: true},
		{name: "struct pointer", source: &Widget{}, want: "Widget", wantOK: true},
		{name: "scalar", source: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TypeNameOf(tt.source)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
