package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
	"github.com/hanpama/gqlexec/internal/introspection"
	language "github.com/hanpama/gqlexec/internal/language"
	schema "github.com/hanpama/gqlexec/internal/schema"
	"github.com/hanpama/gqlexec/internal/validator"
	"github.com/hanpama/gqlexec/internal/value"
)

// errCancelled is reported once when a request's context ends during
// execution.
const errCancelled = "request cancelled"

// executionState holds the state of one operation's execution. It is owned
// by a single request; errors are appended under mu since sibling fields may
// complete on different goroutines.
type executionState struct {
	runtime    Runtime
	schema     *schema.Schema
	introspect *introspection.Resolver
	variables  map[string]value.Value
	sequential bool

	mu        sync.Mutex
	errors    []GraphQLError
	cancelled atomic.Bool
}

type Executor struct {
	runtime    Runtime
	schema     *schema.Schema
	introspect *introspection.Resolver
	opts       Options
}

func NewExecutor(runtime Runtime, schema *schema.Schema, opts ...Option) *Executor {
	e := &Executor{runtime: runtime, schema: schema, introspect: introspection.New(schema)}
	for _, opt := range opts {
		opt(&e.opts)
	}
	return e
}

// Schema returns the schema operations are executed against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

// Runtime returns the runtime fields are resolved with.
func (e *Executor) Runtime() Runtime { return e.runtime }

// Validate selects and validates an operation of document, coercing
// variableValues, with the executor's validation options.
func (e *Executor) Validate(document *language.QueryDocument, operationName string, variableValues map[string]any) (*validator.Operation, language.ErrorList) {
	return validator.Validate(e.schema, document, operationName, variableValues, e.opts.Validation...)
}

// ExecuteRequest validates the requested operation and executes it.
// Validation failures produce null data and no resolver is invoked.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation, errs := e.Validate(document, operationName, variableValues)
	if len(errs) > 0 {
		return &ExecutionResult{Errors: ErrorsFrom(errs)}
	}
	return e.Execute(ctx, operation, initialValue)
}

// Execute runs a validated operation. Mutation root fields are resolved one
// at a time in selection order; all other fields may be resolved
// concurrently.
func (e *Executor) Execute(ctx context.Context, operation *validator.Operation, initialValue any) *ExecutionResult {
	state := e.newState(operation)
	serial := operation.Kind == language.Mutation
	data, ok := state.executeSelectionSet(ctx, operation.RootType, operation.SelectionSet, initialValue, Path{}, serial)
	return state.result(data, ok)
}

func (e *Executor) newState(operation *validator.Operation) *executionState {
	return &executionState{
		runtime:    e.runtime,
		schema:     e.schema,
		introspect: e.introspect,
		variables:  operation.Variables,
		sequential: e.opts.Sequential,
	}
}

func (s *executionState) result(data value.Value, ok bool) *ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled.Load() {
		return &ExecutionResult{Errors: append(s.errors, GraphQLError{Message: errCancelled})}
	}
	if !ok {
		data = value.Null()
	}
	return &ExecutionResult{Data: data, Errors: s.errors}
}

// executeSelectionSet resolves the fields of set on objectValue. ok is false
// when a non-null field failed and the null must propagate to the parent.
func (s *executionState) executeSelectionSet(ctx context.Context, objectType *schema.Type, selectionSet validator.SelectionSet, objectValue any, path Path, serial bool) (value.Value, bool) {
	groupedFields := s.collectFields(objectType, selectionSet)
	results := make([]value.Field, len(groupedFields))
	fieldOK := make([]bool, len(groupedFields))

	execute := func(i int) bool {
		cf := groupedFields[i]
		v, ok := s.executeField(ctx, objectType, objectValue, cf, appendPath(path, cf.ResponseName))
		results[i] = value.Field{Name: cf.ResponseName, Value: v}
		fieldOK[i] = ok
		return ok
	}

	switch {
	case serial:
		for i := range groupedFields {
			if !execute(i) {
				return value.Null(), false
			}
		}
	case s.sequential:
		for i := range groupedFields {
			execute(i)
		}
	default:
		var wg sync.WaitGroup
		for i, cf := range groupedFields {
			if !s.isAsync(objectType, cf) {
				execute(i)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				execute(i)
			}()
		}
		wg.Wait()
	}

	for _, ok := range fieldOK {
		if !ok {
			return value.Null(), false
		}
	}
	return value.Object(results...), true
}

func (s *executionState) isAsync(objectType *schema.Type, cf collectedField) bool {
	def := fieldDefinition(objectType, cf.Fields[0])
	return def != nil && def.Async
}

// fieldDefinition prefers the concrete type's definition over the one the
// selection was validated against, which may belong to an interface.
func fieldDefinition(objectType *schema.Type, field *validator.Field) *schema.Field {
	if def := objectType.Field(field.Name); def != nil {
		return def
	}
	return field.Definition
}

func (s *executionState) executeField(ctx context.Context, objectType *schema.Type, objectValue any, cf collectedField, path Path) (value.Value, bool) {
	field := cf.Fields[0]
	if field.Name == schema.TypeNameMetaField.Name {
		return value.String(objectType.Name), true
	}
	def := fieldDefinition(objectType, field)
	if def == nil {
		s.addMessage(cf, path, fmt.Sprintf("field '%s' not found on type %s", field.Name, objectType.Name))
		return value.Null(), true
	}
	if s.checkCancelled(ctx) {
		return value.Null(), true
	}

	fctx := withFieldInfo(ctx, &FieldInfo{
		ParentType:  objectType.Name,
		FieldName:   field.Name,
		ResponseKey: cf.ResponseName,
		Path:        path,
		Fields:      cf.Fields,
		Variables:   s.variables,
	})
	args := argumentValues(field.Arguments)

	// introspection is answered from the schema, never by the runtime
	if s.introspect.Handles(objectType.Name, field.Name) {
		if resolved, ok := s.introspect.Resolve(objectType.Name, field.Name, objectValue, args); ok {
			return s.completeValue(fctx, objectType, cf, def.Type, resolved, path)
		}
	}

	start := time.Now()
	resolved, err := guard(objectType.Name, field.Name, func() (any, error) {
		return s.runtime.ResolveField(fctx, objectType.Name, field.Name, objectValue, args)
	})
	eventbus.Publish(fctx, events.FieldResolved{
		ParentType: objectType.Name,
		FieldName:  field.Name,
		Path:       []any(path),
		Err:        err,
		Duration:   time.Since(start),
	})

	if s.checkCancelled(ctx) {
		return value.Null(), true
	}
	if err != nil {
		s.addError(cf, path, err)
		return value.Null(), !def.Type.IsNonNull()
	}
	return s.completeValue(fctx, objectType, cf, def.Type, resolved, path)
}

// completeValue completes a resolved value against fieldType. A false ok
// reports a null in a non-null position that the caller must propagate.
func (s *executionState) completeValue(ctx context.Context, parentType *schema.Type, cf collectedField, fieldType *schema.TypeRef, result any, path Path) (value.Value, bool) {
	if fieldType.IsNonNull() {
		completed, ok := s.completeNullableValue(ctx, parentType, cf, fieldType.OfType, result, path)
		if !ok {
			return value.Null(), false
		}
		if completed.IsNull() {
			s.addMessage(cf, path, fmt.Sprintf("Cannot return null for non-nullable field %s.%s", parentType.Name, cf.Fields[0].Name))
			return value.Null(), false
		}
		return completed, true
	}
	completed, ok := s.completeNullableValue(ctx, parentType, cf, fieldType, result, path)
	if !ok {
		return value.Null(), true
	}
	return completed, true
}

func (s *executionState) completeNullableValue(ctx context.Context, parentType *schema.Type, cf collectedField, fieldType *schema.TypeRef, result any, path Path) (value.Value, bool) {
	if isNullish(result) {
		return value.Null(), true
	}
	if fieldType.IsList() {
		return s.completeListValue(ctx, parentType, cf, fieldType, result, path)
	}

	typeObj := s.schema.Type(fieldType.Named)
	if typeObj == nil {
		s.addMessage(cf, path, fmt.Sprintf("Unknown type: %s", fieldType.Named))
		return value.Null(), false
	}
	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		return s.completeLeafValue(ctx, parentType, cf, typeObj, result, path)
	case schema.TypeKindObject:
		return s.completeObjectValue(ctx, cf, typeObj, result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return s.completeAbstractValue(ctx, parentType, cf, typeObj, result, path)
	}
	s.addMessage(cf, path, fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind))
	return value.Null(), false
}

func (s *executionState) completeLeafValue(ctx context.Context, parentType *schema.Type, cf collectedField, leafType *schema.Type, result any, path Path) (value.Value, bool) {
	serialized, err := guard(parentType.Name, cf.Fields[0].Name, func() (any, error) {
		return s.runtime.SerializeLeafValue(ctx, leafType.Name, result)
	})
	if err != nil {
		s.addError(cf, path, err)
		return value.Null(), false
	}
	completed, err := value.FromGo(serialized)
	if err != nil {
		s.addMessage(cf, path, fmt.Sprintf("%s cannot represent value: %v", leafType.Name, err))
		return value.Null(), false
	}
	return completed, true
}

func (s *executionState) completeListValue(ctx context.Context, parentType *schema.Type, cf collectedField, listType *schema.TypeRef, result any, path Path) (value.Value, bool) {
	items, ok := listItems(result)
	if !ok {
		s.addMessage(cf, path, fmt.Sprintf("Expected Iterable, but did not find one for field %s.%s", parentType.Name, cf.Fields[0].Name))
		return value.Null(), false
	}

	inner := listType.OfType
	completed := make([]value.Value, len(items))
	itemOK := make([]bool, len(items))
	complete := func(i int) {
		completed[i], itemOK[i] = s.completeValue(ctx, parentType, cf, inner, items[i], appendPath(path, i))
	}

	named := s.schema.NamedType(inner)
	if s.sequential || len(items) < 2 || named == nil || !named.IsComposite() {
		for i := range items {
			complete(i)
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(len(items))
		for i := range items {
			go func() {
				defer wg.Done()
				complete(i)
			}()
		}
		wg.Wait()
	}

	for _, ok := range itemOK {
		if !ok {
			return value.Null(), false
		}
	}
	return value.List(completed...), true
}

func (s *executionState) completeObjectValue(ctx context.Context, cf collectedField, objectType *schema.Type, result any, path Path) (value.Value, bool) {
	return s.executeSelectionSet(ctx, objectType, mergeSelectionSets(cf.Fields), result, path, false)
}

func (s *executionState) completeAbstractValue(ctx context.Context, parentType *schema.Type, cf collectedField, abstractType *schema.Type, result any, path Path) (value.Value, bool) {
	typeName, err := guard(parentType.Name, cf.Fields[0].Name, func() (string, error) {
		return s.runtime.ResolveType(ctx, abstractType.Name, result)
	})
	if err != nil {
		s.addError(cf, path, err)
		return value.Null(), false
	}
	objectType := s.schema.Type(typeName)
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		s.addMessage(cf, path, fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime for field %s.%s. Got: %q", abstractType.Name, parentType.Name, cf.Fields[0].Name, typeName))
		return value.Null(), false
	}
	if !s.schema.IsPossibleType(abstractType, objectType) {
		s.addMessage(cf, path, fmt.Sprintf("Runtime Object type %q is not a possible type for %q", objectType.Name, abstractType.Name))
		return value.Null(), false
	}
	return s.completeObjectValue(ctx, cf, objectType, result, path)
}

// checkCancelled records the first observation of the request's
// cancellation.
func (s *executionState) checkCancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		s.cancelled.Store(true)
		return true
	}
	return s.cancelled.Load()
}

func (s *executionState) addMessage(cf collectedField, path Path, message string) {
	s.appendError(GraphQLError{Message: message, Locations: fieldLocations(cf), Path: path})
}

func (s *executionState) addError(cf collectedField, path Path, err error) {
	ge := GraphQLError{Message: err.Error(), Locations: fieldLocations(cf), Path: path}
	var gqlErr *language.Error
	if errors.As(err, &gqlErr) {
		ge.Message = gqlErr.Message
		ge.Extensions = gqlErr.Extensions
	}
	s.appendError(ge)
}

func (s *executionState) appendError(ge GraphQLError) {
	s.mu.Lock()
	s.errors = append(s.errors, ge)
	s.mu.Unlock()
}

func fieldLocations(cf collectedField) []Location {
	pos := cf.Fields[0].Position
	if pos == nil {
		return nil
	}
	return []Location{{Line: pos.Line, Column: pos.Column}}
}

// guard runs a runtime call, converting a panic into an error.
func guard[T any](parentType, fieldName string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("executor: panic resolving %s.%s: %v\n%s", parentType, fieldName, r, debug.Stack())
			var zero T
			out, err = zero, fmt.Errorf("internal error: panic resolving %s.%s: %v", parentType, fieldName, r)
		}
	}()
	return fn()
}

func argumentValues(args map[string]value.Value) map[string]any {
	out := make(map[string]any, len(args))
	for name, v := range args {
		out[name] = v.Interface()
	}
	return out
}

// listItems returns the elements of a list-like resolved value.
func listItems(result any) ([]any, bool) {
	switch v := result.(type) {
	case []any:
		return v, true
	case value.Value:
		if v.Kind() != value.KindList {
			return nil, false
		}
		items := make([]any, v.Len())
		for i, item := range v.Items() {
			items[i] = item
		}
		return items, true
	}
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// isNullish returns true for nil interfaces, typed nils (map, slice, ptr,
// interface) and null values.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	if val, ok := v.(value.Value); ok {
		return val.IsNull()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
