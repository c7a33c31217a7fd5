package schema

import (
	"context"

	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/value"
)

// Schema is the immutable type registry produced by Builder.Build. All
// lookups are map based and safe for concurrent use.
type Schema struct {
	description      string
	queryType        string
	mutationType     string
	subscriptionType string

	types          map[string]*Type
	typeNames      []string
	directives     map[string]*Directive
	directiveNames []string

	possibleTypes map[string][]*Type
	possibleSet   map[string]map[string]struct{}
}

func (s *Schema) Description() string { return s.description }

// QueryType returns the root query type.
func (s *Schema) QueryType() *Type { return s.types[s.queryType] }

// MutationType returns the root mutation type (nil if absent).
func (s *Schema) MutationType() *Type { return s.lookup(s.mutationType) }

// SubscriptionType returns the root subscription type (nil if absent).
func (s *Schema) SubscriptionType() *Type { return s.lookup(s.subscriptionType) }

// RootType returns the root object type for an operation kind.
func (s *Schema) RootType(op language.Operation) *Type {
	switch op {
	case language.Query:
		return s.QueryType()
	case language.Mutation:
		return s.MutationType()
	case language.Subscription:
		return s.SubscriptionType()
	}
	return nil
}

func (s *Schema) lookup(name string) *Type {
	if name == "" {
		return nil
	}
	return s.types[name]
}

// Type returns the named type or nil.
func (s *Schema) Type(name string) *Type { return s.types[name] }

// Types returns every named type sorted by name.
func (s *Schema) Types() []*Type {
	out := make([]*Type, len(s.typeNames))
	for i, name := range s.typeNames {
		out[i] = s.types[name]
	}
	return out
}

// Directive returns the named directive declaration or nil.
func (s *Schema) Directive(name string) *Directive { return s.directives[name] }

// Directives returns every directive sorted by name.
func (s *Schema) Directives() []*Directive {
	out := make([]*Directive, len(s.directiveNames))
	for i, name := range s.directiveNames {
		out[i] = s.directives[name]
	}
	return out
}

// NamedType resolves the innermost named type of a reference.
func (s *Schema) NamedType(ref *TypeRef) *Type {
	if ref == nil {
		return nil
	}
	return s.types[ref.GetNamedType()]
}

// PossibleTypes returns the object types a value of t may have at runtime:
// members of a union, implementers of an interface, or t itself.
func (s *Schema) PossibleTypes(t *Type) []*Type {
	if t == nil {
		return nil
	}
	if t.Kind == TypeKindObject {
		return []*Type{t}
	}
	return s.possibleTypes[t.Name]
}

// IsPossibleType reports whether object can be the runtime type of a value
// of type abstract. An object type is only possible for itself.
func (s *Schema) IsPossibleType(abstract, object *Type) bool {
	if abstract == nil || object == nil {
		return false
	}
	if abstract.Kind == TypeKindObject {
		return abstract.Name == object.Name
	}
	_, ok := s.possibleSet[abstract.Name][object.Name]
	return ok
}

// ResolveFunc is the resolver binding of a field.
type ResolveFunc func(ctx context.Context, source any, args map[string]any) (any, error)

// SubscribeFunc produces the source event stream of a subscription field.
// The stream ends when the channel is closed.
type SubscribeFunc func(ctx context.Context, source any, args map[string]any) (<-chan any, error)

// TypeResolveFunc determines the concrete object type name of a value of an
// interface or union type.
type TypeResolveFunc func(ctx context.Context, value any) (string, error)

// SerializeFunc converts a resolved leaf value into JSON-safe Go data.
type SerializeFunc func(v any) (any, error)

// ParseValueFunc coerces an input value of a scalar type.
type ParseValueFunc func(v value.Value) (value.Value, error)

// Type is a named GraphQL type (object, interface, union, scalar, enum, input)
type Type struct {
	Name           string
	Kind           TypeKind
	Description    string
	Fields         []*Field      // For OBJECT and INTERFACE
	Interfaces     []string      // For OBJECT and INTERFACE (implemented/extended)
	PossibleTypes  []string      // For UNION members
	EnumValues     []*EnumValue  // For ENUM
	InputFields    []*InputValue // For INPUT_OBJECT
	SpecifiedByURL *string
	OneOf          bool

	// ResolveType is consulted for INTERFACE and UNION values.
	ResolveType TypeResolveFunc
	// Serialize and ParseValue implement SCALAR coercion.
	Serialize  SerializeFunc
	ParseValue ParseValueFunc

	fieldIndex map[string]*Field
	inputIndex map[string]*InputValue
	enumIndex  map[string]*EnumValue
	pos        *language.Position
}

// Field returns the named field of an object or interface type.
func (t *Type) Field(name string) *Field {
	if t.fieldIndex != nil {
		return t.fieldIndex[name]
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// InputField returns the named field of an input object type.
func (t *Type) InputField(name string) *InputValue {
	if t.inputIndex != nil {
		return t.inputIndex[name]
	}
	for _, f := range t.InputFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// EnumValue returns the named member of an enum type.
func (t *Type) EnumValue(name string) *EnumValue {
	if t.enumIndex != nil {
		return t.enumIndex[name]
	}
	for _, ev := range t.EnumValues {
		if ev.Name == name {
			return ev
		}
	}
	return nil
}

func (t *Type) IsAbstract() bool {
	return t.Kind == TypeKindInterface || t.Kind == TypeKindUnion
}

func (t *Type) IsComposite() bool {
	return t.Kind == TypeKindObject || t.IsAbstract()
}

func (t *Type) IsLeaf() bool {
	return t.Kind == TypeKindScalar || t.Kind == TypeKindEnum
}

// IsInputType reports whether values of t may appear in input positions.
func (t *Type) IsInputType() bool {
	return t.IsLeaf() || t.Kind == TypeKindInputObject
}

// IsOutputType reports whether t may be the type of an output field.
func (t *Type) IsOutputType() bool {
	return t.Kind != TypeKindInputObject
}

// Field represents a field on an object or interface
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	Async             bool
	IsDeprecated      bool
	DeprecationReason string

	// Resolve and Subscribe are the resolver bindings of the field.
	Resolve   ResolveFunc
	Subscribe SubscribeFunc

	argIndex map[string]*InputValue
	pos      *language.Position
}

// Argument returns the named argument definition.
func (f *Field) Argument(name string) *InputValue {
	if f.argIndex != nil {
		return f.argIndex[name]
	}
	for _, a := range f.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// TypeKind represents the kind of GraphQL type
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // For List and NonNull
	Named  string   // For named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

// IsList reports whether t is a list, possibly wrapped in Non-Null.
func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

// Unwrap removes one layer of List or Non-Null.
func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

// Nullable strips a Non-Null wrapper if present.
func (t *TypeRef) Nullable() *TypeRef {
	if t.IsNonNull() {
		return t.OfType
	}
	return t
}

func (t *TypeRef) GetNamedType() string {
	current := t
	for current != nil {
		if current.Named != "" {
			return current.Named
		}
		current = current.OfType
	}
	return ""
}

// Equal reports whether both references denote the same wrapped type.
func (t *TypeRef) Equal(o *TypeRef) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == TypeRefKindNamed {
		return t.Named == o.Named
	}
	return t.OfType.Equal(o.OfType)
}

// String renders the reference in SDL notation, e.g. [String!]!.
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNamed:
		return t.Named
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	}
	return ""
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      *value.Value
	IsDeprecated      bool
	DeprecationReason string

	pos *language.Position
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

// Argument returns the named argument definition.
func (d *Directive) Argument(name string) *InputValue {
	for _, a := range d.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// HasLocation reports whether the directive may appear at loc.
func (d *Directive) HasLocation(loc string) bool {
	for _, l := range d.Locations {
		if l == loc {
			return true
		}
	}
	return false
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }

// Unwrap removes one layer of Non-Null or List wrapping and returns the inner type.
func Unwrap(t *TypeRef) *TypeRef { return t.Unwrap() }

// GetNamedType returns the innermost named type for the given reference.
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }

// TypeRefFromAST converts a parsed type expression.
func TypeRefFromAST(t *language.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(TypeRefFromAST(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		return NonNullType(ref)
	}
	return ref
}
