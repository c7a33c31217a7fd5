package validator

import (
	"fmt"

	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/value"
)

// coerceVariables checks the operation's variable definitions and coerces
// the request variables against them.
func (v *validation) coerceVariables(op *language.OperationDefinition, variables map[string]any) {
	for _, def := range op.VariableDefinitions {
		name := def.Variable
		if _, ok := v.varDefs[name]; ok {
			v.errorf(RuleVariableCoercion, def.Position, "there can be only one variable named $%s", name)
			continue
		}
		v.varDefs[name] = def
		v.directives(def.Directives, string(language.LocationVariableDefinition))

		ref := schema.TypeRefFromAST(def.Type)
		named := v.schema.NamedType(ref)
		if named == nil {
			v.errorf(RuleKnownTypeNames, def.Position, "unknown type %q", ref.GetNamedType())
			continue
		}
		if !named.IsInputType() {
			v.errorf(RuleVariableInputTypes, def.Position, "variable $%s cannot be non-input type %s", name, ref)
			continue
		}

		raw, ok := variables[name]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				val, _, err := v.literal(def.DefaultValue, ref, false)
				if err != nil {
					v.errorf(RuleVariableCoercion, def.DefaultValue.Position, "variable $%s has invalid default value: %v", name, err)
					continue
				}
				v.vars[name] = val
			case ref.IsNonNull():
				v.errorf(RuleVariableCoercion, def.Position, "variable $%s of required type %s was not provided", name, ref)
			}
			continue
		}
		gv, err := value.FromGo(raw)
		if err != nil {
			v.errorf(RuleVariableCoercion, def.Position, "variable $%s of type %s cannot be coerced: %v", name, ref, err)
			continue
		}
		if gv.IsNull() && ref.IsNonNull() {
			v.errorf(RuleVariableCoercion, def.Position, "variable $%s of type %s cannot be null", name, ref)
			continue
		}
		cv, err := coerceValue(v.schema, gv, ref)
		if err != nil {
			v.errorf(RuleVariableCoercion, def.Position, "variable $%s of type %s cannot be coerced: %v", name, ref, err)
			continue
		}
		v.vars[name] = cv
	}
}

func (v *validation) checkUnusedVariables(op *language.OperationDefinition) {
	for _, def := range op.VariableDefinitions {
		if v.usedVars[def.Variable] {
			continue
		}
		if op.Name != "" {
			v.errorf(RuleVariableUsage, def.Position, "variable $%s is never used in operation %q", def.Variable, op.Name)
		} else {
			v.errorf(RuleVariableUsage, def.Position, "variable $%s is never used", def.Variable)
		}
	}
}

// useVariable records a variable reference at a position of type loc.
func (v *validation) useVariable(name string, loc *schema.TypeRef, locHasDefault bool, pos *language.Position) {
	def, ok := v.varDefs[name]
	if !ok {
		v.errorf(RuleVariableUsage, pos, "variable $%s is not defined", name)
		return
	}
	v.usedVars[name] = true

	varType := schema.TypeRefFromAST(def.Type)
	want := loc
	if loc.IsNonNull() && !varType.IsNonNull() {
		varHasDefault := def.DefaultValue != nil && def.DefaultValue.Kind != language.NullValue
		if varHasDefault || locHasDefault {
			want = loc.OfType
		}
	}
	if !variableTypeAllowed(varType, want) {
		v.errorf(RuleVariableUsage, pos, "variable $%s of type %s used in position expecting type %s", name, varType, loc)
	}
}

// useNestedVariables records the variables of a literal that is coerced
// without type information.
func (v *validation) useNestedVariables(node *language.Value) {
	if node.Kind == language.Variable {
		if _, ok := v.varDefs[node.Raw]; !ok {
			v.errorf(RuleVariableUsage, node.Position, "variable $%s is not defined", node.Raw)
			return
		}
		v.usedVars[node.Raw] = true
		return
	}
	for _, c := range node.Children {
		v.useNestedVariables(c.Value)
	}
}

func variableTypeAllowed(varType, loc *schema.TypeRef) bool {
	if loc.IsNonNull() {
		if !varType.IsNonNull() {
			return false
		}
		return variableTypeAllowed(varType.OfType, loc.OfType)
	}
	if varType.IsNonNull() {
		return variableTypeAllowed(varType.OfType, loc)
	}
	if loc.Kind == schema.TypeRefKindList {
		return varType.Kind == schema.TypeRefKindList && variableTypeAllowed(varType.OfType, loc.OfType)
	}
	if varType.Kind == schema.TypeRefKindList {
		return false
	}
	return varType.Named == loc.Named
}

// arguments checks and coerces the arguments of a field or directive.
// Omitted arguments take their defaults; omitted nullable arguments without
// a default are absent from the result.
func (v *validation) arguments(defs []*schema.InputValue, args language.ArgumentList, where string, pos *language.Position) map[string]value.Value {
	out := make(map[string]value.Value, len(defs))
	seen := map[string]bool{}
	for _, arg := range args {
		if seen[arg.Name] {
			v.errorf(RuleUniqueArgumentNames, arg.Position, "there can be only one argument named %q", arg.Name)
			continue
		}
		seen[arg.Name] = true
		if findInputValue(defs, arg.Name) == nil {
			v.errorf(RuleKnownArgumentNames, arg.Position, "unknown argument %q on %s", arg.Name, where)
		}
	}
	for _, def := range defs {
		if arg := args.ForName(def.Name); arg != nil {
			val, present, err := v.literal(arg.Value, def.Type, def.DefaultValue != nil)
			if err != nil {
				v.errorf(RuleArgumentCoercion, arg.Position, "argument %q of %s has invalid value %s: %v", def.Name, where, arg.Value, err)
				continue
			}
			if present {
				out[def.Name] = val
				continue
			}
		}
		if def.DefaultValue != nil {
			out[def.Name] = defaultValue(v.schema, def)
			continue
		}
		if def.Type.IsNonNull() {
			v.errorf(RuleArgumentCoercion, pos, "argument %q of required type %s was not provided on %s", def.Name, def.Type, where)
		}
	}
	return out
}

func defaultValue(s *schema.Schema, def *schema.InputValue) value.Value {
	cv, err := coerceValue(s, *def.DefaultValue, def.Type)
	if err != nil {
		return *def.DefaultValue
	}
	return cv
}

func findInputValue(defs []*schema.InputValue, name string) *schema.InputValue {
	for _, d := range defs {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// literal coerces an AST value against ref. A top-level variable that was
// not provided reports present=false so that the caller can apply defaults.
func (v *validation) literal(node *language.Value, ref *schema.TypeRef, hasDefault bool) (val value.Value, present bool, err error) {
	if node.Kind == language.Variable {
		name := node.Raw
		v.useVariable(name, ref, hasDefault, node.Position)
		val, ok := v.vars[name]
		if !ok {
			return value.Null(), false, nil
		}
		if val.IsNull() && ref.IsNonNull() {
			return value.Null(), true, fmt.Errorf("expected value of type %s, found null", ref)
		}
		return val, true, nil
	}
	if ref.IsNonNull() {
		if node.Kind == language.NullValue {
			return value.Null(), true, fmt.Errorf("expected value of type %s, found null", ref)
		}
		return v.literal(node, ref.OfType, false)
	}
	if node.Kind == language.NullValue {
		return value.Null(), true, nil
	}

	if ref.Kind == schema.TypeRefKindList {
		if node.Kind != language.ListValue {
			item, _, err := v.literal(node, ref.OfType, false)
			if err != nil {
				return value.Null(), true, err
			}
			return value.List(item), true, nil
		}
		items := make([]value.Value, len(node.Children))
		for i, child := range node.Children {
			item, ok, err := v.literal(child.Value, ref.OfType, false)
			if err != nil {
				return value.Null(), true, fmt.Errorf("at index %d: %w", i, err)
			}
			if !ok && ref.OfType.IsNonNull() {
				return value.Null(), true, fmt.Errorf("at index %d: expected value of type %s, found null", i, ref.OfType)
			}
			items[i] = item
		}
		return value.List(items...), true, nil
	}

	t := v.schema.Type(ref.Named)
	if t == nil {
		return value.Null(), true, fmt.Errorf("unknown type %s", ref.Named)
	}
	switch t.Kind {
	case schema.TypeKindInputObject:
		if node.Kind != language.ObjectValue {
			return value.Null(), true, fmt.Errorf("expected input object %s, found %s", t.Name, node)
		}
		for _, child := range node.Children {
			if t.InputField(child.Name) == nil {
				return value.Null(), true, fmt.Errorf("field %q is not defined by type %s", child.Name, t.Name)
			}
		}
		var fields []value.Field
		for _, def := range t.InputFields {
			if child := node.Children.ForName(def.Name); child != nil {
				fv, ok, err := v.literal(child, def.Type, def.DefaultValue != nil)
				if err != nil {
					return value.Null(), true, fmt.Errorf("field %s: %w", def.Name, err)
				}
				if ok {
					fields = append(fields, value.Field{Name: def.Name, Value: fv})
					continue
				}
			}
			if def.DefaultValue != nil {
				fields = append(fields, value.Field{Name: def.Name, Value: defaultValue(v.schema, def)})
				continue
			}
			if def.Type.IsNonNull() {
				return value.Null(), true, fmt.Errorf("field %s.%s of required type %s was not provided", t.Name, def.Name, def.Type)
			}
		}
		obj := value.Object(fields...)
		if t.OneOf {
			if err := checkOneOf(t, obj); err != nil {
				return value.Null(), true, err
			}
		}
		return obj, true, nil
	case schema.TypeKindEnum:
		if node.Kind != language.EnumValue {
			return value.Null(), true, fmt.Errorf("enum %s cannot represent non-enum value: %s", t.Name, node)
		}
		if t.EnumValue(node.Raw) == nil {
			return value.Null(), true, fmt.Errorf("value %q does not exist in enum %s", node.Raw, t.Name)
		}
		return value.Enum(node.Raw), true, nil
	case schema.TypeKindScalar:
		v.useNestedVariables(node)
		raw, ok := value.FromAST(node, v.vars)
		if !ok {
			return value.Null(), true, fmt.Errorf("%s value %s references a variable that was not provided", t.Name, node)
		}
		if t.ParseValue == nil {
			return raw, true, nil
		}
		parsed, err := t.ParseValue(raw)
		if err != nil {
			return value.Null(), true, err
		}
		return parsed, true, nil
	}
	return value.Null(), true, fmt.Errorf("%s is not an input type", t.Name)
}

// coerceValue coerces an already decoded value (request variables,
// defaults) against ref.
func coerceValue(s *schema.Schema, val value.Value, ref *schema.TypeRef) (value.Value, error) {
	if ref.IsNonNull() {
		if val.IsNull() {
			return value.Null(), fmt.Errorf("expected value of type %s, found null", ref)
		}
		return coerceValue(s, val, ref.OfType)
	}
	if val.IsNull() {
		return value.Null(), nil
	}
	if ref.Kind == schema.TypeRefKindList {
		if val.Kind() != value.KindList {
			item, err := coerceValue(s, val, ref.OfType)
			if err != nil {
				return value.Null(), err
			}
			return value.List(item), nil
		}
		items := make([]value.Value, val.Len())
		for i, item := range val.Items() {
			cv, err := coerceValue(s, item, ref.OfType)
			if err != nil {
				return value.Null(), fmt.Errorf("at index %d: %w", i, err)
			}
			items[i] = cv
		}
		return value.List(items...), nil
	}

	t := s.Type(ref.Named)
	if t == nil {
		return value.Null(), fmt.Errorf("unknown type %s", ref.Named)
	}
	switch t.Kind {
	case schema.TypeKindInputObject:
		if val.Kind() != value.KindObject {
			return value.Null(), fmt.Errorf("expected input object %s, found %s", t.Name, val)
		}
		for _, f := range val.Fields() {
			if t.InputField(f.Name) == nil {
				return value.Null(), fmt.Errorf("field %q is not defined by type %s", f.Name, t.Name)
			}
		}
		var fields []value.Field
		for _, def := range t.InputFields {
			if fv, ok := val.Get(def.Name); ok {
				cv, err := coerceValue(s, fv, def.Type)
				if err != nil {
					return value.Null(), fmt.Errorf("field %s: %w", def.Name, err)
				}
				fields = append(fields, value.Field{Name: def.Name, Value: cv})
				continue
			}
			if def.DefaultValue != nil {
				fields = append(fields, value.Field{Name: def.Name, Value: defaultValue(s, def)})
				continue
			}
			if def.Type.IsNonNull() {
				return value.Null(), fmt.Errorf("field %s.%s of required type %s was not provided", t.Name, def.Name, def.Type)
			}
		}
		obj := value.Object(fields...)
		if t.OneOf {
			if err := checkOneOf(t, obj); err != nil {
				return value.Null(), err
			}
		}
		return obj, nil
	case schema.TypeKindEnum:
		if val.Kind() != value.KindString && val.Kind() != value.KindEnum {
			return value.Null(), fmt.Errorf("enum %s cannot represent non-string value: %s", t.Name, val)
		}
		if t.EnumValue(val.Str()) == nil {
			return value.Null(), fmt.Errorf("value %q does not exist in enum %s", val.Str(), t.Name)
		}
		return value.Enum(val.Str()), nil
	case schema.TypeKindScalar:
		if t.ParseValue == nil {
			return val, nil
		}
		return t.ParseValue(val)
	}
	return value.Null(), fmt.Errorf("%s is not an input type", t.Name)
}

func checkOneOf(t *schema.Type, obj value.Value) error {
	if obj.Len() != 1 {
		return fmt.Errorf("oneOf input object %s must specify exactly one field", t.Name)
	}
	if obj.Fields()[0].Value.IsNull() {
		return fmt.Errorf("field %s.%s must be non-null", t.Name, obj.Fields()[0].Name)
	}
	return nil
}
