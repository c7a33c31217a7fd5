// Package executor executes validated GraphQL operations against a Runtime
// that supplies field resolution, abstract-type resolution and leaf
// serialization.
//
// # Preparation
//
// ExecuteRequest validates the requested operation with the validator
// package, which selects the operation, coerces variables and arguments and
// annotates every field with its definition. Validation failures produce a
// result with null data and the validation errors; no resolver runs.
// Execute and Subscribe accept an already validated operation.
//
// # Execution Model
//
// Execution is depth first. For an object value the executor:
//
//  1. Collects fields: selections are grouped by response key in order of
//     first appearance. @skip and @include are evaluated from their coerced
//     arguments and excluded selections are absent from the group. A fragment
//     applies when its type condition is the concrete type, an interface it
//     implements or a union it belongs to.
//  2. Resolves each group once through Runtime.ResolveField, passing a
//     context that carries the field's FieldInfo.
//  3. Completes the resolved value against the field type, recursing into
//     merged sub-selections of object values.
//
// # Concurrency
//
// Sibling fields whose definition is marked Async are resolved on their own
// goroutines; the elements of lists of composite type are completed
// concurrently. Every field writes into a slot pre-allocated for it and the
// parent is assembled once all siblings finished, so the response keeps
// selection order whatever the completion order. Mutation root fields are
// resolved one at a time in selection order. WithConcurrency(false) makes all
// resolution sequential.
//
// # Value Completion
//
//   - Non-Null: complete the inner type. A null result records
//     "Cannot return null for non-nullable field Parent.field" and propagates
//     null upwards.
//   - Null: nil, typed nils and value.Null() produce GraphQL null.
//   - List: complete each element with index-aware paths. A null element in
//     a Non-Null element position nullifies the entire list.
//   - Leaf (Scalar/Enum): Runtime.SerializeLeafValue.
//   - Abstract (Interface/Union): Runtime.ResolveType picks the concrete
//     object type, which must be a possible type of the abstract type.
//   - Object: execute the merged sub-selection on the value.
//
// # Errors and Partial Success
//
// Errors are accumulated as located GraphQL errors (message, path and the
// field's location in the document). A failing nullable field becomes null
// without affecting its siblings; a failing Non-Null field nullifies the
// nearest nullable ancestor, or the whole data when there is none. Panics
// raised by the runtime are recovered and reported at the field's path.
//
// # Cancellation
//
// The request context is checked before and after every resolver call. Once
// cancellation is observed, results are discarded: data is null and a single
// "request cancelled" error is appended.
//
// # Subscriptions
//
// Subscribe opens the source stream of the subscription's root field through
// the Subscriber interface and completes every event as the value of that
// field.
package executor
