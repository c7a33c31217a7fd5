package executor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/hanpama/gqlexec/internal/language"
)

func TestErrors_Locations(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.user": NewMockValueResolver(ann()),
		"User.email": NewMockErrorResolver(errors.New("boom")),
	})
	exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

	res := run(t, exec, "{\n  user(id: 1) {\n    name\n    email\n  }\n}", nil)
	require.Equal(t, []GraphQLError{{
		Message:   "boom",
		Locations: []Location{{Line: 4, Column: 5}},
		Path:      Path{"user", "email"},
	}}, res.Errors)
}

func TestErrors_Panics(t *testing.T) {
	t.Run("resolver", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.boom": func(context.Context, any, map[string]any) (any, error) {
				panic("kaboom")
			},
			"Query.other": NewMockValueResolver("ok"),
		})
		exec := NewExecutor(rt, mustBuildSchema(t, `type Query { boom: String other: String }`))

		res := run(t, exec, "{ boom other }", nil)
		requireData(t, `{"boom": null, "other": "ok"}`, res)
		requireErrors(t, []GraphQLError{
			{Message: "internal error: panic resolving Query.boom: kaboom", Path: Path{"boom"}},
		}, res.Errors)
	})

	t.Run("serializer", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{"Query.n": NewMockValueResolver(1)})
		rt.SetSerializer(func(string, any) (any, error) { panic("bad scalar") })
		exec := NewExecutor(rt, mustBuildSchema(t, `type Query { n: Int! m: Int }`))

		res := run(t, exec, "{ n }", nil)
		requireData(t, `null`, res)
		requireErrors(t, []GraphQLError{
			{Message: "internal error: panic resolving Query.n: bad scalar", Path: Path{"n"}},
		}, res.Errors)
	})

	t.Run("concurrent list element", func(t *testing.T) {
		rt := NewMockRuntime(map[string]MockResolver{
			"Query.others": NewMockValueResolver([]any{ann(), map[string]any{"id": 2}}),
			"User.email": func(ctx context.Context, source any, args map[string]any) (any, error) {
				if source.(map[string]any)["id"] == 2 {
					panic("no email")
				}
				return "ann@example.com", nil
			},
		})
		exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

		res := run(t, exec, "{ others { email } }", nil)
		requireData(t, `{"others": [{"email": "ann@example.com"}, {"email": null}]}`, res)
		requireErrors(t, []GraphQLError{
			{Message: "internal error: panic resolving User.email: no email", Path: Path{"others", 1, "email"}},
		}, res.Errors)
	})
}

func TestErrors_Extensions(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.secret": NewMockErrorResolver(&language.Error{
			Message:    "denied",
			Extensions: map[string]any{"code": "FORBIDDEN"},
		}),
	})
	exec := NewExecutor(rt, mustBuildSchema(t, `type Query { secret: String }`))

	res := run(t, exec, "{ secret }", nil)
	requireErrors(t, []GraphQLError{
		{Message: "denied", Path: Path{"secret"}, Extensions: map[string]any{"code": "FORBIDDEN"}},
	}, res.Errors)
}

func TestErrors_Envelope(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.user": NewMockValueResolver(ann()),
		"User.name":  NewMockErrorResolver(errors.New("boom")),
	})
	exec := NewExecutor(rt, mustBuildSchema(t, userSDL))

	t.Run("partial data", func(t *testing.T) {
		got, err := json.Marshal(run(t, exec, "{ user(id: 1) { name } }", nil))
		require.NoError(t, err)
		require.JSONEq(t, `{
			"data": {"user": null},
			"errors": [{"message": "boom", "locations": [{"line": 1, "column": 17}], "path": ["user", "name"]}]
		}`, string(got))
	})

	t.Run("no errors", func(t *testing.T) {
		got, err := json.Marshal(run(t, exec, "{ user(id: 1) { id } }", nil))
		require.NoError(t, err)
		require.Equal(t, `{"data":{"user":{"id":1}}}`, string(got))
	})

	t.Run("parse error", func(t *testing.T) {
		_, perr := language.ParseQuery("{ user(")
		require.Error(t, perr)
		res := ErrorResult(perr)
		require.True(t, res.Data.IsNull())
		require.Len(t, res.Errors, 1)
		require.NotEmpty(t, res.Errors[0].Locations)

		got, err := json.Marshal(res)
		require.NoError(t, err)
		require.Contains(t, string(got), `"data":null`)
	})

	t.Run("plain error", func(t *testing.T) {
		res := ErrorResult(errors.New("bad request"))
		require.Equal(t, []GraphQLError{{Message: "bad request"}}, res.Errors)
	})
}

func TestPathString(t *testing.T) {
	require.Equal(t, "users[1].name", Path{"users", 1, "name"}.String())
	require.Equal(t, "", Path{}.String())
}
