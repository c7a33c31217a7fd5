package schema

import (
	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/value"
)

const defaultDeprecationReason = "No longer supported"

// AddSDL parses schema definition language and adds its definitions.
// Parse failures surface as violations from Build.
func (b *Builder) AddSDL(source string) *Builder {
	return b.AddSDLFile("", source)
}

// AddSDLFile is AddSDL with a file name used in violation positions.
func (b *Builder) AddSDLFile(name, source string) *Builder {
	doc, err := language.ParseSchema(name, source)
	if err != nil {
		gerr := language.AsError(err)
		v := &Violation{Message: gerr.Message, File: name}
		if len(gerr.Locations) > 0 {
			v.Line, v.Column = gerr.Locations[0].Line, gerr.Locations[0].Column
		}
		b.violations = append(b.violations, v)
		return b
	}
	for _, sd := range doc.Schema {
		b.applySchemaDefinition(sd)
	}
	for _, sd := range doc.SchemaExtension {
		b.applySchemaDefinition(sd)
	}
	for _, def := range doc.Definitions {
		b.AddType(typeFromDefinition(def))
	}
	b.extensions = append(b.extensions, doc.Extensions...)
	for _, dd := range doc.Directives {
		b.AddDirective(directiveFromDefinition(dd))
	}
	return b
}

func (b *Builder) applySchemaDefinition(sd *language.SchemaDefinition) {
	if sd.Description != "" {
		b.description = sd.Description
	}
	for _, ot := range sd.OperationTypes {
		switch ot.Operation {
		case language.Query:
			b.queryType = ot.Type
		case language.Mutation:
			b.mutationType = ot.Type
		case language.Subscription:
			b.subscriptionType = ot.Type
		}
	}
}

// extend merges a type extension into its base definition.
func (c *buildContext) extend(def *language.Definition) {
	base, ok := c.types[def.Name]
	if !ok {
		c.violatef(def.Position, "cannot extend undefined type %q", def.Name)
		return
	}
	ext := typeFromDefinition(def)
	if base.Kind != ext.Kind {
		c.violatef(def.Position, "cannot extend %s type %q as %s", base.Kind, def.Name, ext.Kind)
		return
	}
	base.Fields = append(base.Fields, ext.Fields...)
	base.Interfaces = append(base.Interfaces, ext.Interfaces...)
	base.PossibleTypes = append(base.PossibleTypes, ext.PossibleTypes...)
	base.EnumValues = append(base.EnumValues, ext.EnumValues...)
	base.InputFields = append(base.InputFields, ext.InputFields...)
	if ext.SpecifiedByURL != nil {
		base.SpecifiedByURL = ext.SpecifiedByURL
	}
	if ext.OneOf {
		base.OneOf = true
	}
}

func typeFromDefinition(def *language.Definition) *Type {
	t := NewType(def.Name, kindFromDefinition(def.Kind), def.Description)
	t.pos = def.Position
	t.Interfaces = append(t.Interfaces, def.Interfaces...)
	switch def.Kind {
	case language.Object, language.Interface:
		for _, fd := range def.Fields {
			t.AddField(fieldFromDefinition(fd))
		}
	case language.InputObject:
		for _, fd := range def.Fields {
			t.AddInputField(inputFieldFromDefinition(fd))
		}
		t.OneOf = def.Directives.ForName("oneOf") != nil
	case language.Union:
		t.PossibleTypes = append(t.PossibleTypes, def.Types...)
	case language.Enum:
		for _, ev := range def.EnumValues {
			v := NewEnumValue(ev.Name, ev.Description)
			if ok, reason := deprecation(ev.Directives); ok {
				v.Deprecate(reason)
			}
			t.AddEnumValue(v)
		}
	case language.Scalar:
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				t.SetSpecifiedByURL(arg.Value.Raw)
			}
		}
	}
	return t
}

func kindFromDefinition(kind language.DefinitionKind) TypeKind {
	switch kind {
	case language.Object:
		return TypeKindObject
	case language.Interface:
		return TypeKindInterface
	case language.Union:
		return TypeKindUnion
	case language.Enum:
		return TypeKindEnum
	case language.InputObject:
		return TypeKindInputObject
	}
	return TypeKindScalar
}

func fieldFromDefinition(fd *language.FieldDefinition) *Field {
	f := NewField(fd.Name, fd.Description, TypeRefFromAST(fd.Type))
	f.pos = fd.Position
	if ok, reason := deprecation(fd.Directives); ok {
		f.Deprecate(reason)
	}
	for _, ad := range fd.Arguments {
		arg := NewInputValue(ad.Name, ad.Description, TypeRefFromAST(ad.Type))
		arg.pos = ad.Position
		setDefault(arg, ad.DefaultValue)
		if ok, reason := deprecation(ad.Directives); ok {
			arg.Deprecate(reason)
		}
		f.AddArgument(arg)
	}
	return f
}

func inputFieldFromDefinition(fd *language.FieldDefinition) *InputValue {
	in := NewInputValue(fd.Name, fd.Description, TypeRefFromAST(fd.Type))
	in.pos = fd.Position
	setDefault(in, fd.DefaultValue)
	if ok, reason := deprecation(fd.Directives); ok {
		in.Deprecate(reason)
	}
	return in
}

func directiveFromDefinition(dd *language.DirectiveDefinition) *Directive {
	d := NewDirective(dd.Name, dd.Description).SetRepeatable(dd.IsRepeatable)
	for _, loc := range dd.Locations {
		d.AddLocation(string(loc))
	}
	for _, ad := range dd.Arguments {
		arg := NewInputValue(ad.Name, ad.Description, TypeRefFromAST(ad.Type))
		arg.pos = ad.Position
		setDefault(arg, ad.DefaultValue)
		d.AddArgument(arg)
	}
	return d
}

func setDefault(in *InputValue, node *language.Value) {
	if node == nil {
		return
	}
	if v, ok := value.FromAST(node, nil); ok {
		in.SetDefault(v)
	}
}

func deprecation(dirs language.DirectiveList) (bool, string) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return false, ""
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return true, arg.Value.Raw
	}
	return true, defaultDeprecationReason
}
