package executor

import (
	schema "github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/validator"
)

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*validator.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{
		fields: make([]collectedField, 0),
		index:  make(map[string]int),
	}
}

func (cfm *collectedFieldMap) add(field *validator.Field) {
	responseName := field.ResponseKey()
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*validator.Field{field},
	})
}

// collectFields groups the selections that apply to objectType by response
// key, in order of first appearance.
func (s *executionState) collectFields(objectType *schema.Type, selectionSet validator.SelectionSet) []collectedField {
	groupedFields := newCollectedFieldMap()
	s.collectFieldsImpl(objectType, selectionSet, groupedFields, map[string]bool{})
	return groupedFields.fields
}

func (s *executionState) collectFieldsImpl(objectType *schema.Type, selectionSet validator.SelectionSet, groupedFields *collectedFieldMap, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *validator.Field:
			if !shouldIncludeNode(sel.Directives) {
				continue
			}
			groupedFields.add(sel)

		case *validator.Fragment:
			if !shouldIncludeNode(sel.Directives) {
				continue
			}
			if sel.Name != "" {
				if visitedFragments[sel.Name] {
					continue
				}
				visitedFragments[sel.Name] = true
			}
			if !s.doesFragmentTypeApply(objectType, sel.TypeCondition) {
				continue
			}
			s.collectFieldsImpl(objectType, sel.SelectionSet, groupedFields, visitedFragments)
		}
	}
}

// doesFragmentTypeApply matches the concrete type itself, an interface it
// implements or a union it belongs to.
func (s *executionState) doesFragmentTypeApply(objectType, condition *schema.Type) bool {
	if condition == nil || condition == objectType {
		return true
	}
	return s.schema.IsPossibleType(condition, objectType)
}

// shouldIncludeNode evaluates @skip and @include. Their arguments were
// coerced during validation, variables included.
func shouldIncludeNode(directives []*validator.Directive) bool {
	for _, d := range directives {
		cond, ok := d.Arguments["if"]
		if !ok {
			continue
		}
		switch d.Name {
		case "skip":
			if cond.Bool() {
				return false
			}
		case "include":
			if !cond.Bool() {
				return false
			}
		}
	}
	return true
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*validator.Field) validator.SelectionSet {
	if len(fields) == 1 {
		return fields[0].SelectionSet
	}
	var merged validator.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}
