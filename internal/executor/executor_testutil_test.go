package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func mustBuildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err)
	return s
}

func mustBuild(t *testing.T, b *schema.Builder) *schema.Schema {
	t.Helper()
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func run(t *testing.T, exec *Executor, query string, vars map[string]any) *ExecutionResult {
	t.Helper()
	return exec.ExecuteRequest(context.Background(), mustParseQuery(t, query), "", vars, nil)
}

// requireData compares the JSON encoding of the result's data.
func requireData(t *testing.T, want string, res *ExecutionResult) {
	t.Helper()
	got, err := json.Marshal(res.Data)
	require.NoError(t, err)
	require.JSONEq(t, want, string(got))
}

// requireErrors compares errors by message and path, ignoring order and
// locations.
func requireErrors(t *testing.T, want, got []GraphQLError) {
	t.Helper()
	opts := cmp.Options{
		cmpopts.IgnoreFields(GraphQLError{}, "Locations"),
		cmpopts.EquateEmpty(),
		cmpopts.SortSlices(func(a, b GraphQLError) bool {
			return fmt.Sprint(a.Path, a.Message) < fmt.Sprint(b.Path, b.Message)
		}),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

const userSDL = `
type Query {
  user(id: Int!): User
  me: User!
  users: [User!]
  others: [User]
}

type User {
  id: Int!
  name: String!
  email: String
  friends: [User!]!
}
`

func ann() map[string]any { return map[string]any{"id": 1, "name": "Ann"} }
