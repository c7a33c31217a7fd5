// Package validator checks a parsed query document against a schema and
// produces the validated, flattened operation the executor runs.
//
// Validation is a pure function of its inputs. Argument and variable values
// are coerced exactly once, here, so the executor never sees raw literals.
package validator

import (
	"fmt"

	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/value"
)

// Rule tags carried by validation errors.
const (
	RuleUnknownOperation      = "UnknownOperation"
	RuleFieldNotFound         = "FieldNotFound"
	RuleScalarLeafs           = "ScalarLeafs"
	RuleKnownTypeNames        = "KnownTypeNames"
	RuleFragmentOnComposite   = "FragmentsOnCompositeTypes"
	RuleFragmentTypeMismatch  = "FragmentTypeMismatch"
	RuleKnownFragmentNames    = "KnownFragmentNames"
	RuleUniqueFragmentNames   = "UniqueFragmentNames"
	RuleNoUnusedFragments     = "NoUnusedFragments"
	RuleFragmentCycle         = "FragmentCycle"
	RuleKnownArgumentNames    = "KnownArgumentNames"
	RuleUniqueArgumentNames   = "UniqueArgumentNames"
	RuleArgumentCoercion      = "ArgumentCoercion"
	RuleVariableCoercion      = "VariableCoercion"
	RuleVariableUsage         = "VariableUsage"
	RuleVariableInputTypes    = "VariablesAreInputTypes"
	RuleKnownDirectives       = "KnownDirectives"
	RuleDirectiveLocation     = "DirectivesInValidLocations"
	RuleUniqueDirectives      = "UniqueDirectivesPerLocation"
	RuleFieldsConflict        = "FieldsConflict"
	RuleSingleFieldSubscript  = "SingleFieldSubscriptions"
	RuleDepthLimit            = "DepthLimit"
	RuleComplexityLimit       = "ComplexityLimit"
	RuleIntrospectionDisabled = "IntrospectionDisabled"
)

// Operation is a validated operation ready for execution.
type Operation struct {
	Name         string
	Kind         language.Operation
	RootType     *schema.Type
	SelectionSet SelectionSet
	Variables    map[string]value.Value
	Directives   []*Directive
	Depth        int
	Complexity   int
	Definition   *language.OperationDefinition
}

type SelectionSet []Selection

// Selection is either a *Field or a *Fragment.
type Selection interface {
	selection()
}

// Field is a selected field with its definition resolved and its arguments
// coerced.
type Field struct {
	Alias        string
	Name         string
	Definition   *schema.Field
	ParentType   *schema.Type
	Arguments    map[string]value.Value
	Directives   []*Directive
	SelectionSet SelectionSet
	Position     *language.Position
}

// ResponseKey is the key the field's value is stored under in the response.
func (f *Field) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Fragment is a named fragment spread or an inline fragment. Name is empty
// for inline fragments.
type Fragment struct {
	Name          string
	TypeCondition *schema.Type
	Directives    []*Directive
	SelectionSet  SelectionSet
	Position      *language.Position
}

func (*Field) selection()    {}
func (*Fragment) selection() {}

// Directive is an applied directive with coerced arguments.
type Directive struct {
	Name      string
	Arguments map[string]value.Value
	Position  *language.Position
}

type Options struct {
	MaxDepth             int
	MaxComplexity        int
	DisableIntrospection bool
}

type Option func(*Options)

// WithMaxDepth rejects operations nesting fields deeper than n.
func WithMaxDepth(n int) Option {
	return func(o *Options) { o.MaxDepth = n }
}

// WithMaxComplexity rejects operations selecting more than n fields.
func WithMaxComplexity(n int) Option {
	return func(o *Options) { o.MaxComplexity = n }
}

// WithoutIntrospection rejects __schema and __type selections.
func WithoutIntrospection() Option {
	return func(o *Options) { o.DisableIntrospection = true }
}

type validation struct {
	schema    *schema.Schema
	doc       *language.QueryDocument
	opts      Options
	errs      language.ErrorList
	reported  map[string]bool
	fragments map[string]*language.FragmentDefinition
	bodies    map[string]*fragmentBody

	varDefs  map[string]*language.VariableDefinition
	vars     map[string]value.Value
	usedVars map[string]bool

	depth      int
	complexity int

	merged    map[*Field]bool
	conflicts map[fieldPair]string
}

// Validate selects operationName from doc, coerces variables and checks the
// operation against s. On failure the operation is nil and the list holds
// every error found.
func Validate(s *schema.Schema, doc *language.QueryDocument, operationName string, variables map[string]any, opts ...Option) (*Operation, language.ErrorList) {
	v := &validation{
		schema:    s,
		doc:       doc,
		reported:  map[string]bool{},
		fragments: map[string]*language.FragmentDefinition{},
		bodies:    map[string]*fragmentBody{},
		varDefs:   map[string]*language.VariableDefinition{},
		vars:      map[string]value.Value{},
		usedVars:  map[string]bool{},
		merged:    map[*Field]bool{},
		conflicts: map[fieldPair]string{},
	}
	for _, opt := range opts {
		opt(&v.opts)
	}

	def := v.selectOperation(operationName)
	if def == nil {
		return nil, v.errs
	}
	root := s.RootType(def.Operation)
	if root == nil {
		v.errorf(RuleUnknownOperation, def.Position, "schema does not support %s operations", def.Operation)
		return nil, v.errs
	}

	v.checkFragmentDefinitions()
	if len(v.errs) > 0 {
		// cyclic or unknown spreads would make the walk diverge
		return nil, v.errs
	}

	v.coerceVariables(def, variables)

	op := &Operation{
		Name:       def.Name,
		Kind:       def.Operation,
		RootType:   root,
		Definition: def,
	}
	op.Directives = v.directives(def.Directives, operationLocation(def.Operation))
	op.SelectionSet = v.selectionSet(root, def.SelectionSet, 0)
	op.Variables = v.vars
	op.Depth = v.depth
	op.Complexity = v.complexity

	v.checkUnusedVariables(def)
	v.checkFieldMerging(op.SelectionSet)
	if def.Operation == language.Subscription {
		v.checkSingleRootField(def, op.SelectionSet)
	}
	if v.opts.MaxDepth > 0 && op.Depth > v.opts.MaxDepth {
		v.errorf(RuleDepthLimit, def.Position, "query depth %d exceeds the maximum of %d", op.Depth, v.opts.MaxDepth)
	}
	if v.opts.MaxComplexity > 0 && op.Complexity > v.opts.MaxComplexity {
		v.errorf(RuleComplexityLimit, def.Position, "query complexity %d exceeds the maximum of %d", op.Complexity, v.opts.MaxComplexity)
	}

	if len(v.errs) > 0 {
		return nil, v.errs
	}
	return op, nil
}

func (v *validation) errorf(rule string, pos *language.Position, format string, args ...any) {
	err := language.Errorf(rule, pos, format, args...)
	key := err.Message
	if pos != nil {
		key = fmt.Sprintf("%s@%d:%d", key, pos.Line, pos.Column)
	}
	if v.reported[key] {
		return
	}
	v.reported[key] = true
	v.errs = append(v.errs, err)
}

func (v *validation) selectOperation(name string) *language.OperationDefinition {
	ops := v.doc.Operations
	seen := map[string]bool{}
	for _, op := range ops {
		if op.Name == "" {
			continue
		}
		if seen[op.Name] {
			v.errorf(RuleUnknownOperation, op.Position, "there can be only one operation named %q", op.Name)
		}
		seen[op.Name] = true
	}
	if len(v.errs) > 0 {
		return nil
	}
	if name == "" {
		switch len(ops) {
		case 0:
			v.errorf(RuleUnknownOperation, nil, "document does not contain any operations")
			return nil
		case 1:
			return ops[0]
		}
		v.errorf(RuleUnknownOperation, nil, "must provide operation name if query contains multiple operations")
		return nil
	}
	if op := ops.ForName(name); op != nil {
		return op
	}
	v.errorf(RuleUnknownOperation, nil, "unknown operation named %q", name)
	return nil
}

func (v *validation) checkSingleRootField(def *language.OperationDefinition, set SelectionSet) {
	if _, keys := collectByKey(set); len(keys) == 1 {
		return
	}
	if def.Name == "" {
		v.errorf(RuleSingleFieldSubscript, def.Position, "anonymous subscription must select only one top level field")
		return
	}
	v.errorf(RuleSingleFieldSubscript, def.Position, "subscription %q must select only one top level field", def.Name)
}

func operationLocation(op language.Operation) string {
	switch op {
	case language.Mutation:
		return string(language.LocationMutation)
	case language.Subscription:
		return string(language.LocationSubscription)
	}
	return string(language.LocationQuery)
}
