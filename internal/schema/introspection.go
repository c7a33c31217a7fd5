package schema

import (
	_ "embed"
	"sync"

	language "github.com/hanpama/gqlexec/internal/language"
)

//go:embed introspection.graphql
var introspectionSDL string

var introspectionDocument = sync.OnceValue(func() *language.SchemaDocument {
	doc, err := language.ParseSchema("introspection.graphql", introspectionSDL)
	if err != nil {
		panic("schema: invalid introspection SDL: " + err.Error())
	}
	return doc
})

// introspectionTypes returns fresh copies of the __ types so that every
// built schema owns its own registry.
func introspectionTypes() []*Type {
	doc := introspectionDocument()
	out := make([]*Type, 0, len(doc.Definitions))
	for _, def := range doc.Definitions {
		out = append(out, typeFromDefinition(def))
	}
	return out
}

// Meta fields are implicitly available on object types (__typename on every
// composite type, __schema and __type on the query root).
var (
	TypeNameMetaField = &Field{
		Name:        "__typename",
		Description: "The name of the current Object type at runtime.",
		Type:        NonNullType(NamedType("String")),
	}
	SchemaMetaField = &Field{
		Name:        "__schema",
		Description: "Access the current type schema of this server.",
		Type:        NonNullType(NamedType("__Schema")),
	}
	TypeMetaField = &Field{
		Name:        "__type",
		Description: "Request the type information of a single type.",
		Type:        NamedType("__Type"),
		Arguments: []*InputValue{
			{Name: "name", Type: NonNullType(NamedType("String"))},
		},
	}
)
