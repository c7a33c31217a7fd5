package executor

import (
	"context"
	"errors"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlexec/internal/value"
)

func TestCompleteValue_UserScenarios(t *testing.T) {
	t.Run("nullable field returns null", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.user": NewMockValueResolver(ann()),
			"User.email": NewMockValueResolver(nil),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ user(id: 1) { id name email } }", nil)
		requireData(t, `{"user": {"id": 1, "name": "Ann", "email": null}}`, res)
		require.Empty(t, res.Errors)
	})

	t.Run("non-null field fails", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.user": NewMockValueResolver(ann()),
			"User.name":  NewMockErrorResolver(errors.New("name unavailable")),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ user(id: 1) { id name email } }", nil)
		requireData(t, `{"user": null}`, res)
		requireErrors(t, []GraphQLError{
			{Message: "name unavailable", Path: Path{"user", "name"}},
		}, res.Errors)
	})

	t.Run("undeclared field", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.user": NewMockValueResolver(ann()),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ user(id:1) { age } }", nil)
		requireData(t, `null`, res)
		require.Equal(t, []GraphQLError{{
			Message:   "field 'age' not found on type User",
			Locations: []Location{{Line: 1, Column: 16}},
		}}, res.Errors)
		require.Empty(t, rt.GetCalls())
	})
}

func TestCompleteValue_NonNullPropagation(t *testing.T) {
	t.Run("collapses to data", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.me":  NewMockValueResolver(ann()),
			"User.name": NewMockValueResolver(nil),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ me { name } user(id: 1) { id } }", nil)
		requireData(t, `null`, res)
		requireErrors(t, []GraphQLError{
			{Message: "Cannot return null for non-nullable field User.name", Path: Path{"me", "name"}},
		}, res.Errors)
	})

	t.Run("sibling branches unaffected", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.user": NewMockValueResolver(map[string]any{"id": 1, "name": nil}),
			"Query.me":   NewMockValueResolver(ann()),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ user(id: 1) { id name } me { id name } }", nil)
		requireData(t, `{"user": null, "me": {"id": 1, "name": "Ann"}}`, res)
		requireErrors(t, []GraphQLError{
			{Message: "Cannot return null for non-nullable field User.name", Path: Path{"user", "name"}},
		}, res.Errors)
	})

	t.Run("list elements", func(t *testing.T) {
		list := []any{ann(), map[string]any{"id": 2, "name": nil}}
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.users":  NewMockValueResolver(list),
			"Query.others": NewMockValueResolver(list),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ users { id name } others { id name } }", nil)
		requireData(t, `{"users": null, "others": [{"id": 1, "name": "Ann"}, null]}`, res)
		requireErrors(t, []GraphQLError{
			{Message: "Cannot return null for non-nullable field User.name", Path: Path{"users", 1, "name"}},
			{Message: "Cannot return null for non-nullable field User.name", Path: Path{"others", 1, "name"}},
		}, res.Errors)
	})

	t.Run("non-null list collapses to nullable parent", func(t *testing.T) {
		user := map[string]any{
			"id":   1,
			"name": "Ann",
			"friends": []any{
				map[string]any{"name": "Bob"},
				map[string]any{"name": nil},
			},
		}
		rt := NewMockRuntime(map[string]MockResolver{"Query.user": NewMockValueResolver(user)})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ user(id: 1) { name friends { name } } }", nil)
		requireData(t, `{"user": null}`, res)
		requireErrors(t, []GraphQLError{
			{Message: "Cannot return null for non-nullable field User.name", Path: Path{"user", "friends", 1, "name"}},
		}, res.Errors)
	})
}

func TestCompleteValue_Leafs(t *testing.T) {
	t.Run("serializer error", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.user": NewMockValueResolver(map[string]any{"id": 1, "name": "Ann", "email": "bad"}),
		})
		rt.SetSerializer(func(typeName string, val any) (any, error) {
			if val == "bad" {
				return nil, errors.New("String cannot represent value: bad")
			}
			return val, nil
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ user(id: 1) { name email } }", nil)
		requireData(t, `{"user": {"name": "Ann", "email": null}}`, res)
		requireErrors(t, []GraphQLError{
			{Message: "String cannot represent value: bad", Path: Path{"user", "email"}},
		}, res.Errors)
	})

	t.Run("unsupported serialized value", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.user": NewMockValueResolver(map[string]any{"id": 1, "name": "Ann", "email": make(chan int)}),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ user(id: 1) { email } }", nil)
		requireData(t, `{"user": {"email": null}}`, res)
		require.Len(t, res.Errors, 1)
		require.Contains(t, res.Errors[0].Message, "String cannot represent value")
	})
}

func TestCompleteValue_NonFiniteFloat(t *testing.T) {
	sch := mustBuildSchema(t, `type Query { score: Float ratio: Float! stats: Stats } type Stats { ratio: Float! }`)
	exec := NewExecutor(NewSchemaRuntime(sch), sch)

	res := exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ score stats { ratio } }`), "", nil,
		map[string]any{"score": math.NaN(), "stats": map[string]any{"ratio": math.Inf(1)}})
	requireData(t, `{"score": null, "stats": null}`, res)
	requireErrors(t, []GraphQLError{
		{Message: "Float cannot represent non numeric value: NaN", Path: Path{"score"}},
		{Message: "Float cannot represent non numeric value: +Inf", Path: Path{"stats", "ratio"}},
	}, res.Errors)

	res = exec.ExecuteRequest(context.Background(), mustParseQuery(t, `{ ratio }`), "", nil,
		map[string]any{"ratio": math.Inf(-1)})
	requireData(t, `null`, res)
	_, err := json.Marshal(res)
	require.NoError(t, err)
}

func TestCompleteValue_Lists(t *testing.T) {
	t.Run("not iterable", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{"Query.others": NewMockValueResolver("nope")})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ others { id } }", nil)
		requireData(t, `{"others": null}`, res)
		requireErrors(t, []GraphQLError{
			{Message: "Expected Iterable, but did not find one for field Query.others", Path: Path{"others"}},
		}, res.Errors)
	})

	t.Run("typed slices", func(t *testing.T) {
		type user struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.users": NewMockValueResolver([]*user{{ID: 1, Name: "Ann"}, {ID: 2, Name: "Bob"}}),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ users { id name } }", nil)
		requireData(t, `{"users": [{"id": 1, "name": "Ann"}, {"id": 2, "name": "Bob"}]}`, res)
		require.Empty(t, res.Errors)
	})

	t.Run("value lists", func(t *testing.T) {
		users := value.List(
			value.Object(value.Field{Name: "id", Value: value.Int(3)}, value.Field{Name: "name", Value: value.String("Cy")}),
			value.Null(),
		)
		rt := NewMockRuntime(map[string]MockResolver{"Query.others": NewMockValueResolver(users)})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ others { id name email } }", nil)
		requireData(t, `{"others": [{"id": 3, "name": "Cy", "email": null}, null]}`, res)
		require.Empty(t, res.Errors)
	})
}
