package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/gqlexec/internal/schema"
)

func TestContext_OperationSelection(t *testing.T) {
	sch := mustBuildSchema(t, `type Query { a: String b: String }`)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
	})
	exec := NewExecutor(rt, sch)

	tests := []struct {
		name      string
		query     string
		operation string
		wantData  string
		wantError string
	}{
		{name: "inline operation", query: "{ a }", wantData: `{"a": "A"}`},
		{name: "single named operation without name", query: "query Foo { a }", wantData: `{"a": "A"}`},
		{name: "named operation provided", query: "query Foo { a } query Bar { b }", operation: "Bar", wantData: `{"b": "B"}`},
		{name: "no operation", query: "fragment F on Query { a }", wantData: `null`, wantError: "document does not contain any operations"},
		{name: "no name with multiple operations", query: "query Foo { a } query Bar { b }", wantData: `null`, wantError: "must provide operation name if query contains multiple operations"},
		{name: "unknown name", query: "query Foo { a }", operation: "Baz", wantData: `null`, wantError: `unknown operation named "Baz"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, tt.query), tt.operation, nil, nil)
			requireData(t, tt.wantData, res)
			if tt.wantError == "" {
				require.Empty(t, res.Errors)
				return
			}
			require.NotEmpty(t, res.Errors)
			require.Equal(t, tt.wantError, res.Errors[0].Message)
		})
	}
}

func TestContext_RootValue(t *testing.T) {
	exec := NewExecutor(NewMockRuntime(nil), mustBuildSchema(t, `type Query { greeting: String }`))
	res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, "{ greeting }"), "", nil, map[string]any{"greeting": "hi"})
	requireData(t, `{"greeting": "hi"}`, res)
}

func TestContext_FieldInfo(t *testing.T) {
	var userInfo, nameInfo *FieldInfo
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.user": func(ctx context.Context, source any, args map[string]any) (any, error) {
			userInfo, _ = FieldInfoFromContext(ctx)
			return ann(), nil
		},
		"User.name": func(ctx context.Context, source any, args map[string]any) (any, error) {
			nameInfo, _ = FieldInfoFromContext(ctx)
			return "Ann", nil
		},
	})
	exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

	res := run(t, exec, `query ($id: Int!) { u: user(id: $id) { n: name id ... on User { email } } }`, map[string]any{"id": 1})
	require.Empty(t, res.Errors)

	require.NotNil(t, userInfo)
	require.Equal(t, "Query", userInfo.ParentType)
	require.Equal(t, "user", userInfo.FieldName)
	require.Equal(t, "u", userInfo.ResponseKey)
	require.Equal(t, Path{"u"}, userInfo.Path)
	require.Equal(t, []string{"n", "id", "email"}, userInfo.SubSelection())
	require.Equal(t, int64(1), userInfo.Variables["id"].Int())

	require.NotNil(t, nameInfo)
	require.Equal(t, "User", nameInfo.ParentType)
	require.Equal(t, Path{"u", "n"}, nameInfo.Path)
	require.Empty(t, nameInfo.SubSelection())

	_, ok := FieldInfoFromContext(context.Background())
	require.False(t, ok)
}

func TestContext_Cancellation(t *testing.T) {
	t.Run("cancelled before execution", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{"Query.user": NewMockValueResolver(ann())})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := exec.ExecuteRequest(ctx, mustParseQuery(t, "{ user(id: 1) { name } }"), "", nil, nil)
		requireData(t, `null`, res)
		require.Equal(t, []GraphQLError{{Message: "request cancelled"}}, res.Errors)
		require.Empty(t, rt.GetCalls())
	})

	t.Run("cancelled by a resolver", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.user": func(context.Context, any, map[string]any) (any, error) {
				cancel()
				return ann(), nil
			},
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL), WithConcurrency(false))

		res := exec.ExecuteRequest(ctx, mustParseQuery(t, "{ user(id: 1) { name } me { name } }"), "", nil, nil)
		requireData(t, `null`, res)
		require.Equal(t, []GraphQLError{{Message: "request cancelled"}}, res.Errors)
		require.Zero(t, rt.CallCount("User", "name"))
		require.Zero(t, rt.CallCount("Query", "me"))
	})

	t.Run("deadline while resolving", func(t *testing.T) {
		sch := mustBuild(t, schema.NewBuilder().AddSDL(`type Query { slow: String fast: String }`).
			Resolve("Query", "slow", func(ctx context.Context, source any, args map[string]any) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}).
			Resolve("Query", "fast", func(context.Context, any, map[string]any) (any, error) {
				return "fast", nil
			}))
		exec := NewExecutor(NewSchemaRuntime(sch), sch)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		res := exec.ExecuteRequest(ctx, mustParseQuery(t, "{ fast slow }"), "", nil, nil)
		requireData(t, `null`, res)
		require.Equal(t, []GraphQLError{{Message: "request cancelled"}}, res.Errors)
	})
}
