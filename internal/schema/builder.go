package schema

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/value"
)

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type {
	t.Fields = append(t.Fields, f)
	return t
}

func (t *Type) AddInterface(name string) *Type {
	t.Interfaces = append(t.Interfaces, name)
	return t
}

func (t *Type) AddPossibleType(name string) *Type {
	t.PossibleTypes = append(t.PossibleTypes, name)
	return t
}

func (t *Type) AddEnumValue(v *EnumValue) *Type {
	t.EnumValues = append(t.EnumValues, v)
	return t
}

func (t *Type) AddInputField(v *InputValue) *Type {
	t.InputFields = append(t.InputFields, v)
	return t
}

func (t *Type) SetOneOf(oneOf bool) *Type {
	t.OneOf = oneOf
	return t
}

func (t *Type) SetSpecifiedByURL(url string) *Type {
	t.SpecifiedByURL = &url
	return t
}

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

// SetAsync marks the field for dispatch on its own goroutine.
func (f *Field) SetAsync(async bool) *Field {
	f.Async = async
	return f
}

func (f *Field) AddArgument(arg *InputValue) *Field {
	f.Arguments = append(f.Arguments, arg)
	return f
}

func (f *Field) Deprecate(reason string) *Field {
	f.IsDeprecated = true
	f.DeprecationReason = reason
	return f
}

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

// SetDefault sets the default used when the input value is omitted.
func (v *InputValue) SetDefault(def value.Value) *InputValue {
	v.DefaultValue = &def
	return v
}

func (v *InputValue) Deprecate(reason string) *InputValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewEnumValue(name, description string) *EnumValue {
	return &EnumValue{Name: name, Description: description}
}

func (v *EnumValue) Deprecate(reason string) *EnumValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewDirective(name, description string) *Directive {
	return &Directive{Name: name, Description: description}
}

func (d *Directive) SetRepeatable(repeatable bool) *Directive {
	d.IsRepeatable = repeatable
	return d
}

func (d *Directive) AddArgument(arg *InputValue) *Directive {
	d.Arguments = append(d.Arguments, arg)
	return d
}

func (d *Directive) AddLocation(locs ...string) *Directive {
	d.Locations = append(d.Locations, locs...)
	return d
}

// Builder accumulates type definitions, SDL sources and resolver bindings.
// Build validates everything at once and produces an immutable Schema.
type Builder struct {
	description      string
	queryType        string
	mutationType     string
	subscriptionType string

	types      []*Type
	directives []*Directive
	extensions []*language.Definition
	bindings   []binding
	violations []*Violation
}

type bindingKind int

const (
	bindResolve bindingKind = iota
	bindSubscribe
	bindTypeResolver
	bindScalar
)

type binding struct {
	kind      bindingKind
	typeName  string
	fieldName string
	resolve   ResolveFunc
	subscribe SubscribeFunc
	resolveTy TypeResolveFunc
	serialize SerializeFunc
	parse     ParseValueFunc
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) SetDescription(desc string) *Builder {
	b.description = desc
	return b
}

func (b *Builder) SetQueryType(name string) *Builder {
	b.queryType = name
	return b
}

func (b *Builder) SetMutationType(name string) *Builder {
	b.mutationType = name
	return b
}

func (b *Builder) SetSubscriptionType(name string) *Builder {
	b.subscriptionType = name
	return b
}

func (b *Builder) AddType(t *Type) *Builder {
	b.types = append(b.types, t)
	return b
}

func (b *Builder) AddDirective(d *Directive) *Builder {
	b.directives = append(b.directives, d)
	return b
}

// Resolve binds a resolver to typeName.fieldName. Bound fields are
// dispatched asynchronously.
func (b *Builder) Resolve(typeName, fieldName string, fn ResolveFunc) *Builder {
	b.bindings = append(b.bindings, binding{kind: bindResolve, typeName: typeName, fieldName: fieldName, resolve: fn})
	return b
}

// Subscribe binds the source stream of a subscription root field.
func (b *Builder) Subscribe(typeName, fieldName string, fn SubscribeFunc) *Builder {
	b.bindings = append(b.bindings, binding{kind: bindSubscribe, typeName: typeName, fieldName: fieldName, subscribe: fn})
	return b
}

// ResolveType binds the concrete type resolver of an interface or union.
func (b *Builder) ResolveType(typeName string, fn TypeResolveFunc) *Builder {
	b.bindings = append(b.bindings, binding{kind: bindTypeResolver, typeName: typeName, resolveTy: fn})
	return b
}

// Scalar binds coercion functions to a scalar type. Either may be nil.
func (b *Builder) Scalar(typeName string, serialize SerializeFunc, parse ParseValueFunc) *Builder {
	b.bindings = append(b.bindings, binding{kind: bindScalar, typeName: typeName, serialize: serialize, parse: parse})
	return b
}

// Build validates the accumulated definitions.
func (b *Builder) Build() (*Schema, error) {
	c := &buildContext{
		types:      map[string]*Type{},
		directives: map[string]*Directive{},
		violations: append([]*Violation(nil), b.violations...),
	}
	for _, t := range builtinScalars() {
		c.types[t.Name] = t
	}
	for _, t := range introspectionTypes() {
		c.types[t.Name] = t
	}
	for _, d := range builtinDirectives() {
		c.directives[d.Name] = d
	}

	// Build works on copies so that earlier schemas never observe later
	// extensions or bindings.
	for _, t := range b.types {
		c.addType(t.clone())
	}
	for _, ext := range b.extensions {
		c.extend(ext)
	}
	directives := cloneAll(b.directives, (*Directive).clone)
	for _, d := range directives {
		if _, ok := c.directives[d.Name]; ok {
			c.violatef(nil, "directive @%s is defined more than once", d.Name)
			continue
		}
		c.directives[d.Name] = d
	}

	s := &Schema{
		description:      b.description,
		queryType:        b.queryType,
		mutationType:     b.mutationType,
		subscriptionType: b.subscriptionType,
		types:            c.types,
		directives:       c.directives,
	}
	if s.queryType == "" && c.types["Query"] != nil {
		s.queryType = "Query"
	}
	if s.mutationType == "" && c.types["Mutation"] != nil {
		s.mutationType = "Mutation"
	}
	if s.subscriptionType == "" && c.types["Subscription"] != nil {
		s.subscriptionType = "Subscription"
	}
	if s.queryType == "" {
		c.violatef(nil, "schema does not define a query root type")
	}
	c.checkRoot("query", s.queryType)
	c.checkRoot("mutation", s.mutationType)
	c.checkRoot("subscription", s.subscriptionType)

	for _, t := range c.order {
		c.checkType(t)
	}
	c.computePossibleTypes(s)
	for _, t := range c.order {
		c.checkImplementations(s, t)
	}
	for _, d := range directives {
		c.checkArguments(nil, "@"+d.Name, d.Arguments)
	}
	c.bind(b.bindings)

	if len(c.violations) > 0 {
		return nil, &BuildError{Violations: c.violations}
	}

	for _, t := range c.types {
		t.index()
	}
	for name := range c.types {
		s.typeNames = append(s.typeNames, name)
	}
	sort.Strings(s.typeNames)
	for name := range c.directives {
		s.directiveNames = append(s.directiveNames, name)
	}
	sort.Strings(s.directiveNames)
	return s, nil
}

// BuildFromSDL parses SDL and builds a schema without resolver bindings.
func BuildFromSDL(sdl string) (*Schema, error) {
	return NewBuilder().AddSDL(sdl).Build()
}

type buildContext struct {
	types      map[string]*Type
	order      []*Type
	directives map[string]*Directive
	violations []*Violation
}

func (c *buildContext) violatef(pos *language.Position, format string, args ...any) {
	v := &Violation{Message: fmt.Sprintf(format, args...)}
	if pos != nil {
		v.Line, v.Column = pos.Line, pos.Column
		if pos.Src != nil {
			v.File = pos.Src.Name
		}
	}
	c.violations = append(c.violations, v)
}

func (c *buildContext) addType(t *Type) {
	if isReserved(t.Name) {
		c.violatef(t.pos, "type name %q is reserved for introspection", t.Name)
		return
	}
	if existing, ok := c.types[t.Name]; ok {
		// custom coercion for a built-in scalar
		if builtinScalarNames[t.Name] && t.Kind == TypeKindScalar && existing.Kind == TypeKindScalar {
			if t.Description == "" {
				t.Description = existing.Description
			}
			if t.Serialize == nil {
				t.Serialize = existing.Serialize
			}
			if t.ParseValue == nil {
				t.ParseValue = existing.ParseValue
			}
			c.types[t.Name] = t
			return
		}
		c.violatef(t.pos, "type %q is defined more than once", t.Name)
		return
	}
	c.types[t.Name] = t
	c.order = append(c.order, t)
}

func (c *buildContext) checkRoot(op, name string) {
	if name == "" {
		return
	}
	t, ok := c.types[name]
	if !ok {
		c.violatef(nil, "%s root type %q is not defined", op, name)
		return
	}
	if t.Kind != TypeKindObject {
		c.violatef(t.pos, "%s root type %q must be an object type", op, name)
	}
}

func (c *buildContext) checkType(t *Type) {
	switch t.Kind {
	case TypeKindObject, TypeKindInterface:
		if len(t.Fields) == 0 {
			c.violatef(t.pos, "%s type %q must define one or more fields", strings.ToLower(string(t.Kind)), t.Name)
		}
		seen := map[string]bool{}
		for _, f := range t.Fields {
			where := t.Name + "." + f.Name
			if seen[f.Name] {
				c.violatef(f.pos, "field %s is defined more than once", where)
				continue
			}
			seen[f.Name] = true
			if isReserved(f.Name) {
				c.violatef(f.pos, "field name %s is reserved for introspection", where)
			}
			if ft := c.resolveRef(f.pos, "field "+where, f.Type); ft != nil && !ft.IsOutputType() {
				c.violatef(f.pos, "field %s must have an output type, %s is an input object", where, ft.Name)
			}
			c.checkArguments(f.pos, where, f.Arguments)
		}
		for _, name := range t.Interfaces {
			it, ok := c.types[name]
			if !ok {
				c.violatef(t.pos, "type %q referenced by %s is not defined", name, t.Name)
				continue
			}
			if it.Kind != TypeKindInterface {
				c.violatef(t.pos, "%s cannot implement %s, it is not an interface", t.Name, name)
			}
			if it == t {
				c.violatef(t.pos, "%s cannot implement itself", t.Name)
			}
		}
	case TypeKindUnion:
		if len(t.PossibleTypes) == 0 {
			c.violatef(t.pos, "union type %q must define one or more member types", t.Name)
		}
		seen := map[string]bool{}
		for _, name := range t.PossibleTypes {
			if seen[name] {
				c.violatef(t.pos, "union %s includes %s more than once", t.Name, name)
				continue
			}
			seen[name] = true
			mt, ok := c.types[name]
			if !ok {
				c.violatef(t.pos, "type %q referenced by %s is not defined", name, t.Name)
				continue
			}
			if mt.Kind != TypeKindObject {
				c.violatef(t.pos, "union %s can only include object types, %s is %s", t.Name, name, mt.Kind)
			}
		}
	case TypeKindEnum:
		if len(t.EnumValues) == 0 {
			c.violatef(t.pos, "enum type %q must define one or more values", t.Name)
		}
		seen := map[string]bool{}
		for _, ev := range t.EnumValues {
			if seen[ev.Name] {
				c.violatef(t.pos, "enum value %s.%s is defined more than once", t.Name, ev.Name)
			}
			seen[ev.Name] = true
			if ev.Name == "true" || ev.Name == "false" || ev.Name == "null" {
				c.violatef(t.pos, "enum value %s.%s is not a valid name", t.Name, ev.Name)
			}
		}
	case TypeKindInputObject:
		if len(t.InputFields) == 0 {
			c.violatef(t.pos, "input type %q must define one or more fields", t.Name)
		}
		c.checkArguments(t.pos, t.Name, t.InputFields)
		if t.OneOf {
			for _, f := range t.InputFields {
				if f.Type.IsNonNull() || f.DefaultValue != nil {
					c.violatef(f.pos, "oneOf input field %s.%s must be nullable and have no default", t.Name, f.Name)
				}
			}
		}
	}
}

func (c *buildContext) checkArguments(pos *language.Position, where string, args []*InputValue) {
	seen := map[string]bool{}
	for _, a := range args {
		apos := a.pos
		if apos == nil {
			apos = pos
		}
		if seen[a.Name] {
			c.violatef(apos, "argument %s(%s:) is defined more than once", where, a.Name)
			continue
		}
		seen[a.Name] = true
		if isReserved(a.Name) {
			c.violatef(apos, "argument name %s(%s:) is reserved for introspection", where, a.Name)
		}
		at := c.resolveRef(apos, fmt.Sprintf("%s(%s:)", where, a.Name), a.Type)
		if at != nil && !at.IsInputType() {
			c.violatef(apos, "%s(%s:) must have an input type, %s is %s", where, a.Name, at.Name, at.Kind)
		}
	}
}

func (c *buildContext) resolveRef(pos *language.Position, where string, ref *TypeRef) *Type {
	name := ref.GetNamedType()
	t, ok := c.types[name]
	if !ok {
		c.violatef(pos, "type %q referenced by %s is not defined", name, where)
		return nil
	}
	return t
}

func (c *buildContext) computePossibleTypes(s *Schema) {
	s.possibleTypes = map[string][]*Type{}
	s.possibleSet = map[string]map[string]struct{}{}
	add := func(abstract string, obj *Type) {
		set := s.possibleSet[abstract]
		if set == nil {
			set = map[string]struct{}{}
			s.possibleSet[abstract] = set
		}
		if _, ok := set[obj.Name]; ok {
			return
		}
		set[obj.Name] = struct{}{}
		s.possibleTypes[abstract] = append(s.possibleTypes[abstract], obj)
	}
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := c.types[name]
		switch t.Kind {
		case TypeKindUnion:
			for _, member := range t.PossibleTypes {
				if mt := c.types[member]; mt != nil && mt.Kind == TypeKindObject {
					add(t.Name, mt)
				}
			}
		case TypeKindObject:
			for _, iface := range t.Interfaces {
				add(iface, t)
			}
		}
	}
}

func (c *buildContext) checkImplementations(s *Schema, t *Type) {
	if t.Kind != TypeKindObject && t.Kind != TypeKindInterface {
		return
	}
	for _, name := range t.Interfaces {
		iface := c.types[name]
		if iface == nil || iface.Kind != TypeKindInterface {
			continue
		}
		for _, ifield := range iface.Fields {
			f := t.Field(ifield.Name)
			if f == nil {
				c.violatef(t.pos, "type %s does not satisfy interface %s: missing field %q", t.Name, iface.Name, ifield.Name)
				continue
			}
			if !c.isSubType(s, f.Type, ifield.Type) {
				c.violatef(f.pos, "type %s does not satisfy interface %s: field %q has type %s, want %s",
					t.Name, iface.Name, f.Name, f.Type, ifield.Type)
			}
			for _, iarg := range ifield.Arguments {
				a := f.Argument(iarg.Name)
				if a == nil {
					c.violatef(f.pos, "type %s does not satisfy interface %s: field %q is missing argument %q",
						t.Name, iface.Name, f.Name, iarg.Name)
					continue
				}
				if !a.Type.Equal(iarg.Type) {
					c.violatef(f.pos, "type %s does not satisfy interface %s: argument %s(%s:) has type %s, want %s",
						t.Name, iface.Name, f.Name, a.Name, a.Type, iarg.Type)
				}
			}
			for _, a := range f.Arguments {
				if ifield.Argument(a.Name) == nil && a.Type.IsNonNull() && a.DefaultValue == nil {
					c.violatef(f.pos, "type %s does not satisfy interface %s: additional argument %s(%s:) must be optional",
						t.Name, iface.Name, f.Name, a.Name)
				}
			}
		}
		// transitive interfaces must be declared too
		for _, inherited := range iface.Interfaces {
			if !containsString(t.Interfaces, inherited) {
				c.violatef(t.pos, "type %s must also implement %s, which %s implements", t.Name, inherited, iface.Name)
			}
		}
	}
}

func (c *buildContext) isSubType(s *Schema, sub, super *TypeRef) bool {
	if sub.Equal(super) {
		return true
	}
	if super.IsNonNull() {
		if sub.IsNonNull() {
			return c.isSubType(s, sub.OfType, super.OfType)
		}
		return false
	}
	if sub.IsNonNull() {
		return c.isSubType(s, sub.OfType, super)
	}
	if super.Kind == TypeRefKindList {
		return sub.Kind == TypeRefKindList && c.isSubType(s, sub.OfType, super.OfType)
	}
	if sub.Kind == TypeRefKindList {
		return false
	}
	superType, subType := c.types[super.Named], c.types[sub.Named]
	if superType == nil || subType == nil || !superType.IsAbstract() {
		return false
	}
	if subType.Kind == TypeKindInterface {
		return containsString(subType.Interfaces, superType.Name)
	}
	return s.IsPossibleType(superType, subType)
}

func (c *buildContext) bind(bindings []binding) {
	for _, bd := range bindings {
		t, ok := c.types[bd.typeName]
		if !ok {
			c.violatef(nil, "cannot bind to undefined type %q", bd.typeName)
			continue
		}
		switch bd.kind {
		case bindResolve, bindSubscribe:
			if t.Kind != TypeKindObject {
				c.violatef(nil, "cannot bind field resolver to %s, it is not an object type", t.Name)
				continue
			}
			f := t.Field(bd.fieldName)
			if f == nil {
				c.violatef(nil, "cannot bind resolver to unknown field %s.%s", t.Name, bd.fieldName)
				continue
			}
			if bd.kind == bindResolve {
				f.Resolve = bd.resolve
				f.Async = true
			} else {
				f.Subscribe = bd.subscribe
			}
		case bindTypeResolver:
			if !t.IsAbstract() {
				c.violatef(nil, "cannot bind type resolver to %s, it is not an interface or union", t.Name)
				continue
			}
			t.ResolveType = bd.resolveTy
		case bindScalar:
			if t.Kind != TypeKindScalar {
				c.violatef(nil, "cannot bind scalar coercion to %s, it is not a scalar", t.Name)
				continue
			}
			if bd.serialize != nil {
				t.Serialize = bd.serialize
			}
			if bd.parse != nil {
				t.ParseValue = bd.parse
			}
		}
	}
}

func (t *Type) clone() *Type {
	c := *t
	c.Fields = cloneAll(t.Fields, (*Field).clone)
	c.Interfaces = slices.Clone(t.Interfaces)
	c.PossibleTypes = slices.Clone(t.PossibleTypes)
	c.EnumValues = cloneAll(t.EnumValues, (*EnumValue).clone)
	c.InputFields = cloneAll(t.InputFields, (*InputValue).clone)
	c.fieldIndex, c.inputIndex, c.enumIndex = nil, nil, nil
	return &c
}

func (f *Field) clone() *Field {
	c := *f
	c.Arguments = cloneAll(f.Arguments, (*InputValue).clone)
	c.argIndex = nil
	return &c
}

func (v *InputValue) clone() *InputValue {
	c := *v
	return &c
}

func (v *EnumValue) clone() *EnumValue {
	c := *v
	return &c
}

func (d *Directive) clone() *Directive {
	c := *d
	c.Locations = slices.Clone(d.Locations)
	c.Arguments = cloneAll(d.Arguments, (*InputValue).clone)
	return &c
}

func cloneAll[T any](list []*T, clone func(*T) *T) []*T {
	if list == nil {
		return nil
	}
	out := make([]*T, len(list))
	for i, item := range list {
		out[i] = clone(item)
	}
	return out
}

func (t *Type) index() {
	if len(t.Fields) > 0 {
		t.fieldIndex = make(map[string]*Field, len(t.Fields))
		for _, f := range t.Fields {
			t.fieldIndex[f.Name] = f
			if len(f.Arguments) > 0 {
				f.argIndex = make(map[string]*InputValue, len(f.Arguments))
				for _, a := range f.Arguments {
					f.argIndex[a.Name] = a
				}
			}
		}
	}
	if len(t.InputFields) > 0 {
		t.inputIndex = make(map[string]*InputValue, len(t.InputFields))
		for _, f := range t.InputFields {
			t.inputIndex[f.Name] = f
		}
	}
	if len(t.EnumValues) > 0 {
		t.enumIndex = make(map[string]*EnumValue, len(t.EnumValues))
		for _, ev := range t.EnumValues {
			t.enumIndex[ev.Name] = ev
		}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
