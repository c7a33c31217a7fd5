// Package introspection answers __schema, __type and the fields of the
// introspection types from a built schema.
package introspection

import (
	"strings"

	schema "github.com/hanpama/gqlexec/internal/schema"
)

// Resolver resolves introspection fields against one schema.
type Resolver struct {
	schema *schema.Schema
}

func New(sch *schema.Schema) *Resolver {
	return &Resolver{schema: sch}
}

// Handles reports whether field of objectType is answered by the resolver:
// the __schema and __type meta fields of the query root, and every field of
// the introspection types.
func (r *Resolver) Handles(objectType, field string) bool {
	if strings.HasPrefix(objectType, "__") {
		return true
	}
	if field != schema.SchemaMetaField.Name && field != schema.TypeMetaField.Name {
		return false
	}
	query := r.schema.QueryType()
	return query != nil && objectType == query.Name
}

// Resolve returns the value of field on source. ok is false for fields the
// resolver does not know.
func (r *Resolver) Resolve(objectType, field string, source any, args map[string]any) (v any, ok bool) {
	if query := r.schema.QueryType(); query != nil && objectType == query.Name {
		switch field {
		case schema.SchemaMetaField.Name:
			return r.schema, true
		case schema.TypeMetaField.Name:
			name, _ := args["name"].(string)
			return nullableType(r.schema.Type(name)), true
		}
	}

	switch src := source.(type) {
	case *schema.Schema:
		return r.schemaField(src, field)
	case *schema.Type:
		return r.typeField(src, field, args)
	case *schema.TypeRef:
		return r.wrapperField(src, field)
	case *schema.Field:
		return r.fieldField(src, field, args)
	case *schema.InputValue:
		return r.inputValueField(src, field)
	case *schema.EnumValue:
		return enumValueField(src, field)
	case *schema.Directive:
		return r.directiveField(src, field, args)
	}
	return nil, false
}

func (r *Resolver) schemaField(s *schema.Schema, field string) (any, bool) {
	switch field {
	case "description":
		return optional(s.Description()), true
	case "types":
		return s.Types(), true
	case "queryType":
		return s.QueryType(), true
	case "mutationType":
		return nullableType(s.MutationType()), true
	case "subscriptionType":
		return nullableType(s.SubscriptionType()), true
	case "directives":
		return s.Directives(), true
	}
	return nil, false
}

func (r *Resolver) typeField(t *schema.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return optional(t.Description), true
	case "specifiedByURL":
		if t.Kind != schema.TypeKindScalar || t.SpecifiedByURL == nil {
			return nil, true
		}
		return *t.SpecifiedByURL, true
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		out := make([]*schema.Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			if f.IsDeprecated && !includeDeprecated(args) {
				continue
			}
			out = append(out, f)
		}
		return out, true
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, true
		}
		out := make([]*schema.Type, 0, len(t.Interfaces))
		for _, name := range t.Interfaces {
			if it := r.schema.Type(name); it != nil {
				out = append(out, it)
			}
		}
		return out, true
	case "possibleTypes":
		if !t.IsAbstract() {
			return nil, true
		}
		return r.schema.PossibleTypes(t), true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		out := make([]*schema.EnumValue, 0, len(t.EnumValues))
		for _, ev := range t.EnumValues {
			if ev.IsDeprecated && !includeDeprecated(args) {
				continue
			}
			out = append(out, ev)
		}
		return out, true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return filterInputValues(t.InputFields, args), true
	case "ofType":
		return nil, true
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return t.OneOf, true
	}
	return nil, false
}

// wrapperField answers __Type fields for LIST and NON_NULL references. Named
// references never reach here; typeValue turns them into *schema.Type.
func (r *Resolver) wrapperField(ref *schema.TypeRef, field string) (any, bool) {
	switch field {
	case "kind":
		return string(ref.Kind), true
	case "ofType":
		return r.typeValue(ref.OfType), true
	case "name", "description", "specifiedByURL", "fields", "interfaces",
		"possibleTypes", "enumValues", "inputFields", "isOneOf":
		return nil, true
	}
	return nil, false
}

func (r *Resolver) fieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return optional(f.Description), true
	case "args":
		return filterInputValues(f.Arguments, args), true
	case "type":
		return r.typeValue(f.Type), true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func (r *Resolver) inputValueField(v *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return optional(v.Description), true
	case "type":
		return r.typeValue(v.Type), true
	case "defaultValue":
		if v.DefaultValue == nil {
			return nil, true
		}
		return v.DefaultValue.String(), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func enumValueField(ev *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return optional(ev.Description), true
	case "isDeprecated":
		return ev.IsDeprecated, true
	case "deprecationReason":
		return deprecationReason(ev.IsDeprecated, ev.DeprecationReason), true
	}
	return nil, false
}

func (r *Resolver) directiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return optional(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		return d.Locations, true
	case "args":
		return filterInputValues(d.Arguments, args), true
	}
	return nil, false
}

// typeValue maps a reference onto the value a __Type field resolves from:
// the named *schema.Type, or the reference itself for wrappers.
func (r *Resolver) typeValue(ref *schema.TypeRef) any {
	if ref == nil {
		return nil
	}
	if ref.Kind == schema.TypeRefKindNamed {
		return nullableType(r.schema.Type(ref.Named))
	}
	return ref
}

func filterInputValues(values []*schema.InputValue, args map[string]any) []*schema.InputValue {
	out := make([]*schema.InputValue, 0, len(values))
	for _, v := range values {
		if v.IsDeprecated && !includeDeprecated(args) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func includeDeprecated(args map[string]any) bool {
	b, _ := args["includeDeprecated"].(bool)
	return b
}

func deprecationReason(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	return reason
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableType(t *schema.Type) any {
	if t == nil {
		return nil
	}
	return t
}
