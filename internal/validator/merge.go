package validator

import (
	"fmt"

	"github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/value"
)

// checkFieldMerging reports selections that share a response key but could
// not be merged into a single response value.
func (v *validation) checkFieldMerging(set SelectionSet) {
	groups, order := collectByKey(set)
	for _, key := range order {
		fields := groups[key]
		for i := 0; i < len(fields); i++ {
			for j := i + 1; j < len(fields); j++ {
				if reason := v.conflict(fields[i], fields[j], false); reason != "" {
					v.errorf(RuleFieldsConflict, fields[j].Position,
						"fields %q conflict because %s. Use different aliases on the fields to fetch both if this was intentional.", key, reason)
				}
			}
		}
	}
	for _, key := range order {
		for _, f := range groups[key] {
			if len(f.SelectionSet) > 0 && !v.merged[f] {
				v.merged[f] = true
				v.checkFieldMerging(f.SelectionSet)
			}
		}
	}
}

// collectByKey flattens fragments and groups fields by response key. A named
// fragment spread more than once contributes its fields once.
func collectByKey(set SelectionSet) (map[string][]*Field, []string) {
	groups := map[string][]*Field{}
	var order []string
	spread := map[string]bool{}
	seen := map[*Field]bool{}
	var walk func(SelectionSet)
	walk = func(set SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *Field:
				if seen[sel] {
					continue
				}
				seen[sel] = true
				key := sel.ResponseKey()
				if _, ok := groups[key]; !ok {
					order = append(order, key)
				}
				groups[key] = append(groups[key], sel)
			case *Fragment:
				if sel.Name != "" {
					if spread[sel.Name] {
						continue
					}
					spread[sel.Name] = true
				}
				walk(sel.SelectionSet)
			}
		}
	}
	walk(set)
	return groups, order
}

type fieldPair struct {
	a, b      *Field
	exclusive bool
}

// conflict explains why a and b cannot share a response key, or returns "".
// Results are memoized per pair.
func (v *validation) conflict(a, b *Field, exclusive bool) string {
	if a == b {
		return ""
	}
	key := fieldPair{a, b, exclusive}
	if reason, ok := v.conflicts[key]; ok {
		return reason
	}
	reason := v.fieldsConflict(a, b, exclusive)
	v.conflicts[key] = reason
	return reason
}

func (v *validation) fieldsConflict(a, b *Field, exclusive bool) string {
	exclusive = exclusive || (a.ParentType != b.ParentType &&
		a.ParentType.Kind == schema.TypeKindObject && b.ParentType.Kind == schema.TypeKindObject)

	if !exclusive {
		if a.Name != b.Name {
			return fmt.Sprintf("%s and %s are different fields", a.Name, b.Name)
		}
		if !sameArguments(a.Arguments, b.Arguments) {
			return "they have differing arguments"
		}
	}
	if v.typesConflict(a.Definition.Type, b.Definition.Type) {
		return fmt.Sprintf("they return conflicting types %s and %s", a.Definition.Type, b.Definition.Type)
	}

	if len(a.SelectionSet) == 0 || len(b.SelectionSet) == 0 {
		return ""
	}
	ga, _ := collectByKey(a.SelectionSet)
	gb, order := collectByKey(b.SelectionSet)
	for _, key := range order {
		for _, x := range ga[key] {
			for _, y := range gb[key] {
				if reason := v.conflict(x, y, exclusive); reason != "" {
					return fmt.Sprintf("subfields %q conflict because %s", key, reason)
				}
			}
		}
	}
	return ""
}

func (v *validation) typesConflict(a, b *schema.TypeRef) bool {
	if a.IsNonNull() || b.IsNonNull() {
		if !a.IsNonNull() || !b.IsNonNull() {
			return true
		}
		return v.typesConflict(a.OfType, b.OfType)
	}
	if a.Kind == schema.TypeRefKindList || b.Kind == schema.TypeRefKindList {
		if a.Kind != b.Kind {
			return true
		}
		return v.typesConflict(a.OfType, b.OfType)
	}
	ta, tb := v.schema.Type(a.Named), v.schema.Type(b.Named)
	if ta == nil || tb == nil {
		return false
	}
	if ta.IsLeaf() || tb.IsLeaf() {
		return ta != tb
	}
	return false
}

func sameArguments(a, b map[string]value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for name, av := range a {
		bv, ok := b[name]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}
