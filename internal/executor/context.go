package executor

import (
	"context"

	"github.com/hanpama/gqlexec/internal/validator"
	"github.com/hanpama/gqlexec/internal/value"
)

// FieldInfo describes the field being resolved. The Executor attaches it to
// the context passed to Runtime.ResolveField.
type FieldInfo struct {
	ParentType  string
	FieldName   string
	ResponseKey string
	Path        Path
	// Fields are the merged selections of the field, giving resolvers a view
	// of the requested sub-selection.
	Fields []*validator.Field
	// Variables are the coerced operation variables.
	Variables map[string]value.Value
}

type fieldInfoKey struct{}

func withFieldInfo(ctx context.Context, info *FieldInfo) context.Context {
	return context.WithValue(ctx, fieldInfoKey{}, info)
}

// FieldInfoFromContext returns the FieldInfo of the field being resolved.
func FieldInfoFromContext(ctx context.Context) (*FieldInfo, bool) {
	info, ok := ctx.Value(fieldInfoKey{}).(*FieldInfo)
	return info, ok
}

// SubSelection lists the response keys selected below the field, in
// selection order and without applying type conditions.
func (i *FieldInfo) SubSelection() []string {
	var keys []string
	seen := map[string]bool{}
	var walk func(validator.SelectionSet)
	walk = func(set validator.SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *validator.Field:
				if key := sel.ResponseKey(); !seen[key] {
					seen[key] = true
					keys = append(keys, key)
				}
			case *validator.Fragment:
				walk(sel.SelectionSet)
			}
		}
	}
	for _, f := range i.Fields {
		walk(f.SelectionSet)
	}
	return keys
}
