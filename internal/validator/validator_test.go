package validator

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/value"
	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query {
  user(id: ID!): User
  users(first: Int = 10, filter: UserFilter): [User!]!
  node(id: ID!): Node
  search(term: String!): [SearchResult!]!
  hello(name: String): String
}

type Mutation {
  rename(id: ID!, name: String!): User
}

type Subscription {
  userChanged(id: ID!): User
  tick: Int
}

interface Node {
  id: ID!
}

type User implements Node {
  id: ID!
  name: String
  email: String
  age: Int
  friends: [User!]!
  role: Role
}

type Post implements Node {
  id: ID!
  title: String
}

union SearchResult = User | Post

enum Role {
  ADMIN
  MEMBER
}

input UserFilter {
  role: Role
  minAge: Int = 18
  name: String!
}
`

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	return s
}

func validate(t *testing.T, query, operationName string, vars map[string]any, opts ...Option) (*Operation, language.ErrorList) {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return Validate(testSchema(t), doc, operationName, vars, opts...)
}

func mustValidate(t *testing.T, query string, vars map[string]any, opts ...Option) *Operation {
	t.Helper()
	op, errs := validate(t, query, "", vars, opts...)
	require.Empty(t, errs)
	require.NotNil(t, op)
	return op
}

func rootField(t *testing.T, op *Operation, i int) *Field {
	t.Helper()
	f, ok := op.SelectionSet[i].(*Field)
	require.True(t, ok, "selection %d is %T", i, op.SelectionSet[i])
	return f
}

func TestValidOperation(t *testing.T) {
	op := mustValidate(t, `query Q($id: ID!) {
  user(id: $id) {
    id
    name: email @skip(if: true)
    ... on User { age }
  }
}`, map[string]any{"id": 4})

	require.Equal(t, "Q", op.Name)
	require.Equal(t, language.Query, op.Kind)
	require.Equal(t, "Query", op.RootType.Name)
	require.True(t, value.String("4").Equal(op.Variables["id"]))
	require.Equal(t, 2, op.Depth)
	require.Equal(t, 4, op.Complexity)

	user := rootField(t, op, 0)
	require.Equal(t, "user", user.ResponseKey())
	require.Equal(t, "4", user.Arguments["id"].Str())
	require.Equal(t, "Query", user.ParentType.Name)
	require.Len(t, user.SelectionSet, 3)

	email := user.SelectionSet[1].(*Field)
	require.Equal(t, "name", email.ResponseKey())
	require.Equal(t, "email", email.Name)
	require.Len(t, email.Directives, 1)
	require.True(t, email.Directives[0].Arguments["if"].Bool())

	frag := user.SelectionSet[2].(*Fragment)
	require.Equal(t, "", frag.Name)
	require.Equal(t, "User", frag.TypeCondition.Name)
	require.Equal(t, "age", frag.SelectionSet[0].(*Field).Name)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		op      string
		vars    map[string]any
		opts    []Option
		rule    string
		message string
	}{
		{
			name:    "field not found",
			query:   `{ node(id: 1) { ... on Post { age } } }`,
			rule:    RuleFieldNotFound,
			message: "field 'age' not found on type Post",
		},
		{
			name:    "meta field off the query root",
			query:   `{ user(id: 1) { __schema { description } } }`,
			rule:    RuleFieldNotFound,
			message: "field '__schema' not found on type User",
		},
		{
			name:    "unknown operation",
			query:   `query A { hello }`,
			op:      "B",
			rule:    RuleUnknownOperation,
			message: `unknown operation named "B"`,
		},
		{
			name:    "ambiguous operation",
			query:   `query A { hello } query B { hello }`,
			rule:    RuleUnknownOperation,
			message: "must provide operation name if query contains multiple operations",
		},
		{
			name:    "selection on leaf",
			query:   `{ hello { x } }`,
			rule:    RuleScalarLeafs,
			message: `field "hello" must not have a selection since type "String" has no subfields`,
		},
		{
			name:    "missing selection on composite",
			query:   `{ user(id: 1) }`,
			rule:    RuleScalarLeafs,
			message: `field "user" of type "User" must have a selection of subfields`,
		},
		{
			name:    "fragment type mismatch",
			query:   `{ user(id: 1) { ... on Post { id } } }`,
			rule:    RuleFragmentTypeMismatch,
			message: `fragment cannot be spread here as objects of type "User" can never be of type "Post"`,
		},
		{
			name:    "fragment on scalar",
			query:   `{ user(id: 1) { ... on String { id } } }`,
			rule:    RuleFragmentOnComposite,
			message: `fragment cannot condition on non composite type "String"`,
		},
		{
			name: "fragment cycle",
			query: `{ user(id: 1) { ...A } }
fragment A on User { friends { ...B } }
fragment B on User { ...A }`,
			rule:    RuleFragmentCycle,
			message: `cannot spread fragment "A" within itself via B`,
		},
		{
			name:    "unknown fragment",
			query:   `{ user(id: 1) { ...X } }`,
			rule:    RuleKnownFragmentNames,
			message: `unknown fragment "X"`,
		},
		{
			name:    "unused fragment",
			query:   `{ hello } fragment F on User { id }`,
			rule:    RuleNoUnusedFragments,
			message: `fragment "F" is never used`,
		},
		{
			name:    "missing required argument",
			query:   `{ user { id } }`,
			rule:    RuleArgumentCoercion,
			message: `argument "id" of required type ID! was not provided on field Query.user`,
		},
		{
			name:    "invalid literal",
			query:   `{ hello(name: 5) }`,
			rule:    RuleArgumentCoercion,
			message: "String cannot represent a non string value: 5",
		},
		{
			name:    "invalid enum in input object",
			query:   `{ users(filter: {name: "a", role: OWNER}) { id } }`,
			rule:    RuleArgumentCoercion,
			message: `field role: value "OWNER" does not exist in enum Role`,
		},
		{
			name:    "missing input field",
			query:   `{ users(filter: {role: ADMIN}) { id } }`,
			rule:    RuleArgumentCoercion,
			message: "field UserFilter.name of required type String! was not provided",
		},
		{
			name:    "unknown argument",
			query:   `{ hello(nope: 1) }`,
			rule:    RuleKnownArgumentNames,
			message: `unknown argument "nope" on field Query.hello`,
		},
		{
			name:    "undefined variable",
			query:   `{ hello(name: $n) }`,
			rule:    RuleVariableUsage,
			message: "variable $n is not defined",
		},
		{
			name:    "unused variable",
			query:   `query ($n: String) { hello }`,
			rule:    RuleVariableUsage,
			message: "variable $n is never used",
		},
		{
			name:    "incompatible variable",
			query:   `query ($id: String) { user(id: $id) { id } }`,
			vars:    map[string]any{"id": "1"},
			rule:    RuleVariableUsage,
			message: "variable $id of type String used in position expecting type ID!",
		},
		{
			name:    "required variable missing",
			query:   `query ($id: ID!) { user(id: $id) { id } }`,
			rule:    RuleVariableCoercion,
			message: "variable $id of required type ID! was not provided",
		},
		{
			name:    "required variable null",
			query:   `query ($id: ID!) { user(id: $id) { id } }`,
			vars:    map[string]any{"id": nil},
			rule:    RuleVariableCoercion,
			message: "variable $id of type ID! cannot be null",
		},
		{
			name:    "variable of wrong type",
			query:   `query ($n: Int) { users(first: $n) { id } }`,
			vars:    map[string]any{"n": "x"},
			rule:    RuleVariableCoercion,
			message: `variable $n of type Int cannot be coerced: Int cannot represent non-integer value: "x"`,
		},
		{
			name:    "non-input variable type",
			query:   `query ($u: User) { hello }`,
			rule:    RuleVariableInputTypes,
			message: "variable $u cannot be non-input type User",
		},
		{
			name:    "unknown directive",
			query:   `{ hello @nope }`,
			rule:    RuleKnownDirectives,
			message: `unknown directive "@nope"`,
		},
		{
			name:    "misplaced directive",
			query:   `query @skip(if: true) { hello }`,
			rule:    RuleDirectiveLocation,
			message: `directive "@skip" may not be used on QUERY`,
		},
		{
			name:    "skip without condition",
			query:   `{ hello @skip }`,
			rule:    RuleArgumentCoercion,
			message: `argument "if" of required type Boolean! was not provided on directive @skip`,
		},
		{
			name:    "duplicate directive",
			query:   `{ hello @skip(if: false) @skip(if: true) }`,
			rule:    RuleUniqueDirectives,
			message: `directive "@skip" can only be used once at this location`,
		},
		{
			name:    "differing arguments",
			query:   `{ hello(name: "a") hello(name: "b") }`,
			rule:    RuleFieldsConflict,
			message: `fields "hello" conflict because they have differing arguments`,
		},
		{
			name:    "different fields under one alias",
			query:   `{ x: hello x: __typename }`,
			rule:    RuleFieldsConflict,
			message: `fields "x" conflict because hello and __typename are different fields`,
		},
		{
			name:    "conflicting leaf types",
			query:   `{ search(term: "a") { ... on User { v: age } ... on Post { v: title } } }`,
			rule:    RuleFieldsConflict,
			message: "they return conflicting types Int and String",
		},
		{
			name:    "conflicting subfields",
			query:   `{ user(id: 1) { friends { x: name } } user(id: 1) { friends { x: email } } }`,
			rule:    RuleFieldsConflict,
			message: `subfields "friends" conflict because subfields "x" conflict because name and email are different fields`,
		},
		{
			name:    "depth limit",
			query:   `{ user(id: 1) { friends { id } } }`,
			opts:    []Option{WithMaxDepth(2)},
			rule:    RuleDepthLimit,
			message: "query depth 3 exceeds the maximum of 2",
		},
		{
			name:    "complexity limit",
			query:   `{ user(id: 1) { friends { id } } }`,
			opts:    []Option{WithMaxComplexity(2)},
			rule:    RuleComplexityLimit,
			message: "query complexity 3 exceeds the maximum of 2",
		},
		{
			name:    "introspection disabled",
			query:   `{ __schema { queryType { name } } }`,
			opts:    []Option{WithoutIntrospection()},
			rule:    RuleIntrospectionDisabled,
			message: "introspection is disabled",
		},
		{
			name:    "subscription with two root fields",
			query:   `subscription { userChanged(id: 1) { id } tick }`,
			rule:    RuleSingleFieldSubscript,
			message: "anonymous subscription must select only one top level field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, errs := validate(t, tt.query, tt.op, tt.vars, tt.opts...)
			require.Nil(t, op)
			requireError(t, errs, tt.rule, tt.message)
		})
	}
}

func requireError(t *testing.T, errs language.ErrorList, rule, message string) {
	t.Helper()
	for _, err := range errs {
		if err.Rule == rule && strings.Contains(err.Message, message) {
			return
		}
	}
	t.Fatalf("no %s error containing %q in %v", rule, message, errs)
}

func TestErrorLocations(t *testing.T) {
	_, errs := validate(t, "{\n  hello\n  nope\n}", "", nil)
	require.Len(t, errs, 1)
	if diff := cmp.Diff([]language.Location{{Line: 3, Column: 3}}, errs[0].Locations); diff != "" {
		t.Errorf("locations mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "field 'nope' not found on type Query", errs[0].Message)
}

func TestArgumentDefaults(t *testing.T) {
	t.Run("field argument default", func(t *testing.T) {
		op := mustValidate(t, `{ users { id } }`, nil)
		users := rootField(t, op, 0)
		require.True(t, value.Int(10).Equal(users.Arguments["first"]))
		_, ok := users.Arguments["filter"]
		require.False(t, ok)
	})

	t.Run("input object defaults through variables", func(t *testing.T) {
		op := mustValidate(t, `query ($f: UserFilter) { users(filter: $f) { id } }`,
			map[string]any{"f": map[string]any{"name": "a"}})
		want := value.Object(
			value.Field{Name: "minAge", Value: value.Int(18)},
			value.Field{Name: "name", Value: value.String("a")},
		)
		if diff := cmp.Diff(want, op.Variables["f"]); diff != "" {
			t.Errorf("variable mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("input object literal with enum", func(t *testing.T) {
		op := mustValidate(t, `{ users(filter: {name: "a", role: ADMIN, minAge: 21}) { id } }`, nil)
		filter := rootField(t, op, 0).Arguments["filter"]
		role, _ := filter.Get("role")
		require.Equal(t, value.KindEnum, role.Kind())
		age, _ := filter.Get("minAge")
		require.Equal(t, int64(21), age.Int())
	})

	t.Run("absent optional variable leaves argument absent", func(t *testing.T) {
		op := mustValidate(t, `query ($n: String) { hello(name: $n) }`, nil)
		_, ok := rootField(t, op, 0).Arguments["name"]
		require.False(t, ok)
	})

	t.Run("absent variable falls back to argument default", func(t *testing.T) {
		op := mustValidate(t, `query ($n: Int) { users(first: $n) { id } }`, nil)
		require.Equal(t, int64(10), rootField(t, op, 0).Arguments["first"].Int())
	})

	t.Run("variable default", func(t *testing.T) {
		op := mustValidate(t, `query ($n: Int = 5) { users(first: $n) { id } }`, nil)
		require.Equal(t, int64(5), rootField(t, op, 0).Arguments["first"].Int())
	})

	t.Run("nullable variable with default in non-null position", func(t *testing.T) {
		op := mustValidate(t, `query ($id: ID = "1") { user(id: $id) { id } }`, nil)
		require.Equal(t, "1", rootField(t, op, 0).Arguments["id"].Str())
	})

	t.Run("json numbers", func(t *testing.T) {
		op := mustValidate(t, `query ($n: Int) { users(first: $n) { id } }`, map[string]any{"n": json.Number("3")})
		require.True(t, value.Int(3).Equal(op.Variables["n"]))
		op = mustValidate(t, `query ($n: Int) { users(first: $n) { id } }`, map[string]any{"n": float64(4)})
		require.True(t, value.Int(4).Equal(op.Variables["n"]))
	})
}

func TestFragmentsAndDirectives(t *testing.T) {
	op := mustValidate(t, `query ($s: Boolean!) {
  search(term: "x") {
    __typename
    ... on User { name }
    ...P @include(if: $s)
  }
}
fragment P on Post { title }`, map[string]any{"s": true})

	search := rootField(t, op, 0)
	require.Len(t, search.SelectionSet, 3)
	require.Equal(t, schema.TypeNameMetaField, search.SelectionSet[0].(*Field).Definition)

	inline := search.SelectionSet[1].(*Fragment)
	require.Equal(t, "User", inline.TypeCondition.Name)

	spread := search.SelectionSet[2].(*Fragment)
	require.Equal(t, "P", spread.Name)
	require.Equal(t, "Post", spread.TypeCondition.Name)
	require.Len(t, spread.Directives, 1)
	require.Equal(t, "include", spread.Directives[0].Name)
	require.True(t, spread.Directives[0].Arguments["if"].Bool())
}

func TestMergeableSelections(t *testing.T) {
	for _, query := range []string{
		`{ hello hello }`,
		`{ user(id: 1) { id } user(id: 1) { name } }`,
		`{ search(term: "a") { ... on User { v: name } ... on Post { v: title } } }`,
		`{ node(id: 1) { id ... on User { id } } }`,
	} {
		t.Run(query, func(t *testing.T) {
			mustValidate(t, query, nil)
		})
	}
}

// doublingFragments returns a document whose fragment F<n> expands to 2^n
// copies of base.
func doublingFragments(n int, on, query, base, wrap string) string {
	var b strings.Builder
	b.WriteString(query)
	fmt.Fprintf(&b, "\nfragment F0 on %s { %s }", on, base)
	for i := 1; i <= n; i++ {
		prev := fmt.Sprintf(wrap, fmt.Sprintf("...F%d", i-1))
		fmt.Fprintf(&b, "\nfragment F%d on %s { %s %s }", i, on, prev, prev)
	}
	return b.String()
}

func TestRepeatedFragmentSpreads(t *testing.T) {
	const n = 24

	t.Run("flat", func(t *testing.T) {
		query := doublingFragments(n, "Query", fmt.Sprintf("{ ...F%d }", n), "hello", "%s")
		start := time.Now()
		op := mustValidate(t, query, nil)
		require.Less(t, time.Since(start), 2*time.Second)
		require.Equal(t, 1, op.Depth)
		require.Equal(t, 1<<n, op.Complexity)

		_, errs := validate(t, query, "", nil, WithMaxComplexity(1000))
		requireError(t, errs, RuleComplexityLimit, fmt.Sprintf("query complexity %d exceeds the maximum of 1000", 1<<n))
	})

	t.Run("nested", func(t *testing.T) {
		query := doublingFragments(n, "User", fmt.Sprintf("{ user(id: 1) { ...F%d } }", n), "id", "friends { %s }")
		start := time.Now()
		op := mustValidate(t, query, nil)
		require.Less(t, time.Since(start), 2*time.Second)
		require.Equal(t, n+2, op.Depth)

		_, errs := validate(t, query, "", nil, WithMaxDepth(10))
		requireError(t, errs, RuleDepthLimit, fmt.Sprintf("query depth %d exceeds the maximum of 10", n+2))
	})

	t.Run("spreads share one selection set", func(t *testing.T) {
		op := mustValidate(t, `{ user(id: 1) { ...A friends { ...A } } } fragment A on User { name }`, nil)
		user := rootField(t, op, 0)
		outer := user.SelectionSet[0].(*Fragment)
		inner := user.SelectionSet[1].(*Field).SelectionSet[0].(*Fragment)
		require.Same(t, outer.SelectionSet[0], inner.SelectionSet[0])
	})

	t.Run("conflict inside a repeated fragment", func(t *testing.T) {
		_, errs := validate(t, `{ user(id: 1) { ...A ...A x: email } } fragment A on User { x: name }`, "", nil)
		requireError(t, errs, RuleFieldsConflict, "name and email are different fields")
	})
}

func TestCustomScalarLiteralVariables(t *testing.T) {
	s, err := schema.BuildFromSDL(`type Query { echo(v: JSON): String } scalar JSON`)
	require.NoError(t, err)
	check := func(query string, vars map[string]any) (*Operation, language.ErrorList) {
		doc, err := language.ParseQuery(query)
		require.NoError(t, err)
		return Validate(s, doc, "", vars)
	}

	op, errs := check(`query ($x: Int) { echo(v: [1, $x]) }`, map[string]any{"x": float64(2)})
	require.Empty(t, errs)
	require.Equal(t, `[1, 2]`, rootField(t, op, 0).Arguments["v"].String())

	op, errs = check(`query ($x: Int) { echo(v: {a: $x}) }`, nil)
	require.Empty(t, errs)
	require.Equal(t, `{}`, rootField(t, op, 0).Arguments["v"].String())

	_, errs = check(`query ($x: Int) { echo(v: [1, $x]) }`, nil)
	requireError(t, errs, RuleArgumentCoercion, "JSON value [1,$x] references a variable that was not provided")

	_, errs = check(`{ echo(v: [$y]) }`, nil)
	requireError(t, errs, RuleVariableUsage, "variable $y is not defined")
}

func TestOperationSelection(t *testing.T) {
	doc := `query A { hello } mutation B { rename(id: 1, name: "x") { id } }`
	op, errs := validate(t, doc, "B", nil)
	require.Empty(t, errs)
	require.Equal(t, language.Mutation, op.Kind)
	require.Equal(t, "Mutation", op.RootType.Name)

	op, errs = validate(t, `subscription { userChanged(id: 1) { id } }`, "", nil)
	require.Empty(t, errs)
	require.Equal(t, "Subscription", op.RootType.Name)
}

func TestIntrospectionFields(t *testing.T) {
	op := mustValidate(t, `{ __schema { queryType { name } } __type(name: "User") { kind } }`, nil)
	require.Equal(t, schema.SchemaMetaField, rootField(t, op, 0).Definition)
	typ := rootField(t, op, 1)
	require.Equal(t, schema.TypeMetaField, typ.Definition)
	require.Equal(t, "User", typ.Arguments["name"].Str())
}
