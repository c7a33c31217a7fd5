package executor

import (
	"context"
)

// Runtime defines the host integration surface for field resolution,
// abstract type resolution, and leaf-value serialization used by the
// Executor.
//
// General contract
//   - The Executor calls ResolveField once per merged field group and parent
//     value. Fields marked Async in the schema, and the elements of lists of
//     composite type, may be resolved concurrently from several goroutines.
//     Implementations must be safe for concurrent use.
//   - Errors returned from any method are converted into located GraphQL
//     errors at the field's response path. If the field's return type is
//     Non-Null, the Executor propagates the null up to the nearest nullable
//     ancestor.
//   - A panic inside any method is recovered by the Executor and reported as
//     an error at the field's path.
//   - Implementations must not mutate source or args values.
//
// Object/field identifiers
//   - objectType is the GraphQL type name (e.g. "User").
//   - field is the GraphQL field name on that type (e.g. "posts").
//   - For root fields, objectType is the root type name (e.g. "Query") and
//     source is the root value passed to Execute.
//   - args holds the coerced arguments, including defaults, as plain Go data
//     (int, float64, string, bool, []any, map[string]any). Enum arguments are
//     passed as their name.
//
// Cancellation
//   - ctx is the request context extended with the field's FieldInfo.
//     Long-running resolvers should respect ctx; once the Executor observes
//     cancellation it discards their results.
type Runtime interface {
	// ResolveField returns the raw value of a field, completed afterwards by
	// the Executor against the field's type and sub-selection. Return
	// (nil, nil) to produce a GraphQL null.
	ResolveField(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// ResolveType determines the concrete runtime type name for a value of an
	// abstract GraphQL type (interface or union). The Executor rejects names
	// that are not possible types of abstractType.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue serializes a scalar or enum value to JSON-safe Go
	// data or a value.Value. For enums, return the symbolic name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// Subscriber is implemented by runtimes that can open subscription source
// streams. The returned channel is closed by the implementation when the
// stream ends; it should also stop sending once ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, objectType string, field string, source any, args map[string]any) (<-chan any, error)
}
