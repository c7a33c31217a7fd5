package validator

import (
	"math"

	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/schema"
)

// selectionSet resolves every selection of set against parent. depth is the
// nesting level of parent; root fields are at depth 1.
func (v *validation) selectionSet(parent *schema.Type, set language.SelectionSet, depth int) SelectionSet {
	out := make(SelectionSet, 0, len(set))
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			if f := v.field(parent, sel, depth+1); f != nil {
				out = append(out, f)
			}
		case *language.InlineFragment:
			cond := parent
			if sel.TypeCondition != "" {
				cond = v.typeCondition(parent, sel.TypeCondition, sel.Position)
				if cond == nil {
					continue
				}
			}
			out = append(out, &Fragment{
				TypeCondition: cond,
				Directives:    v.directives(sel.Directives, string(language.LocationInlineFragment)),
				SelectionSet:  v.selectionSet(cond, sel.SelectionSet, depth),
				Position:      sel.Position,
			})
		case *language.FragmentSpread:
			def := v.fragments[sel.Name]
			if def == nil {
				v.errorf(RuleKnownFragmentNames, sel.Position, "unknown fragment %q", sel.Name)
				continue
			}
			cond := v.typeCondition(parent, def.TypeCondition, def.Position)
			if cond == nil {
				continue
			}
			body := v.resolveFragment(def, cond)
			if d := depth + body.depth; body.depth > 0 && d > v.depth {
				v.depth = d
			}
			v.complexity = addCapped(v.complexity, body.complexity)
			out = append(out, &Fragment{
				Name:          sel.Name,
				TypeCondition: cond,
				Directives:    v.directives(sel.Directives, string(language.LocationFragmentSpread)),
				SelectionSet:  body.set,
				Position:      sel.Position,
			})
		}
	}
	return out
}

// fragmentBody is a named fragment resolved against its type condition.
// depth and complexity are relative to the spread site.
type fragmentBody struct {
	set        SelectionSet
	depth      int
	complexity int
}

// resolveFragment walks def once per operation. Every spread of the same
// fragment shares the resulting selection set.
func (v *validation) resolveFragment(def *language.FragmentDefinition, cond *schema.Type) *fragmentBody {
	if b, ok := v.bodies[def.Name]; ok {
		return b
	}
	v.directives(def.Directives, string(language.LocationFragmentDefinition))
	depth, complexity := v.depth, v.complexity
	v.depth, v.complexity = 0, 0
	b := &fragmentBody{set: v.selectionSet(cond, def.SelectionSet, 0)}
	b.depth, b.complexity = v.depth, v.complexity
	v.depth, v.complexity = depth, complexity
	v.bodies[def.Name] = b
	return b
}

func addCapped(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func (v *validation) field(parent *schema.Type, sel *language.Field, depth int) *Field {
	def := v.fieldDefinition(parent, sel)
	if def == nil {
		return nil
	}
	if depth > v.depth {
		v.depth = depth
	}
	v.complexity = addCapped(v.complexity, 1)

	where := parent.Name + "." + sel.Name
	f := &Field{
		Alias:      sel.Alias,
		Name:       sel.Name,
		Definition: def,
		ParentType: parent,
		Arguments:  v.arguments(def.Arguments, sel.Arguments, "field "+where, sel.Position),
		Directives: v.directives(sel.Directives, string(language.LocationField)),
		Position:   sel.Position,
	}

	typ := v.schema.NamedType(def.Type)
	if typ == nil {
		return f
	}
	if typ.IsLeaf() {
		if len(sel.SelectionSet) > 0 {
			v.errorf(RuleScalarLeafs, sel.Position, "field %q must not have a selection since type %q has no subfields", sel.Name, def.Type)
		}
		return f
	}
	if len(sel.SelectionSet) == 0 {
		v.errorf(RuleScalarLeafs, sel.Position, "field %q of type %q must have a selection of subfields", sel.Name, def.Type)
		return f
	}
	f.SelectionSet = v.selectionSet(typ, sel.SelectionSet, depth)
	return f
}

// fieldDefinition resolves a selected field, including the introspection
// meta fields.
func (v *validation) fieldDefinition(parent *schema.Type, sel *language.Field) *schema.Field {
	switch sel.Name {
	case schema.TypeNameMetaField.Name:
		return schema.TypeNameMetaField
	case schema.SchemaMetaField.Name, schema.TypeMetaField.Name:
		if parent == v.schema.QueryType() {
			if v.opts.DisableIntrospection {
				v.errorf(RuleIntrospectionDisabled, sel.Position, "introspection is disabled")
				return nil
			}
			if sel.Name == schema.SchemaMetaField.Name {
				return schema.SchemaMetaField
			}
			return schema.TypeMetaField
		}
	}
	if parent.Kind == schema.TypeKindObject || parent.Kind == schema.TypeKindInterface {
		if def := parent.Field(sel.Name); def != nil {
			return def
		}
	}
	v.errorf(RuleFieldNotFound, sel.Position, "field '%s' not found on type %s", sel.Name, parent.Name)
	return nil
}

// typeCondition resolves a fragment's type condition and checks that it can
// apply within parent.
func (v *validation) typeCondition(parent *schema.Type, name string, pos *language.Position) *schema.Type {
	cond := v.schema.Type(name)
	if cond == nil {
		v.errorf(RuleKnownTypeNames, pos, "unknown type %q", name)
		return nil
	}
	if !cond.IsComposite() {
		v.errorf(RuleFragmentOnComposite, pos, "fragment cannot condition on non composite type %q", name)
		return nil
	}
	if !v.overlaps(parent, cond) {
		v.errorf(RuleFragmentTypeMismatch, pos, "fragment cannot be spread here as objects of type %q can never be of type %q", parent.Name, cond.Name)
		return nil
	}
	return cond
}

func (v *validation) overlaps(a, b *schema.Type) bool {
	if a == b {
		return true
	}
	for _, pt := range v.schema.PossibleTypes(a) {
		if v.schema.IsPossibleType(b, pt) {
			return true
		}
	}
	return false
}

// directives checks applied directives at loc and coerces their arguments.
func (v *validation) directives(list language.DirectiveList, loc string) []*Directive {
	if len(list) == 0 {
		return nil
	}
	out := make([]*Directive, 0, len(list))
	seen := map[string]bool{}
	for _, d := range list {
		def := v.schema.Directive(d.Name)
		if def == nil {
			v.errorf(RuleKnownDirectives, d.Position, "unknown directive \"@%s\"", d.Name)
			continue
		}
		if !def.HasLocation(loc) {
			v.errorf(RuleDirectiveLocation, d.Position, "directive \"@%s\" may not be used on %s", d.Name, loc)
			continue
		}
		if seen[d.Name] && !def.IsRepeatable {
			v.errorf(RuleUniqueDirectives, d.Position, "directive \"@%s\" can only be used once at this location", d.Name)
			continue
		}
		seen[d.Name] = true
		out = append(out, &Directive{
			Name:      d.Name,
			Arguments: v.arguments(def.Arguments, d.Arguments, "directive @"+d.Name, d.Position),
			Position:  d.Position,
		})
	}
	return out
}
