package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hanpama/gqlexec/internal/eventbus"
	"github.com/hanpama/gqlexec/internal/events"
	language "github.com/hanpama/gqlexec/internal/language"
	"github.com/hanpama/gqlexec/internal/validator"
	"github.com/hanpama/gqlexec/internal/value"
)

// ErrSubscriptionsUnsupported is returned by Subscribe when the runtime does
// not implement Subscriber.
var ErrSubscriptionsUnsupported = errors.New("runtime does not support subscriptions")

// Subscribe opens the source stream of a subscription's root field. Each
// event is taken as the value of that field, completed against its
// sub-selection and delivered as one ExecutionResult. The returned channel is
// closed when the source stream closes or ctx is done.
func (e *Executor) Subscribe(ctx context.Context, operation *validator.Operation, initialValue any) (<-chan *ExecutionResult, error) {
	if operation.Kind != language.Subscription {
		return nil, fmt.Errorf("cannot subscribe to a %s operation", operation.Kind)
	}
	sub, ok := e.runtime.(Subscriber)
	if !ok {
		return nil, ErrSubscriptionsUnsupported
	}

	rootType := operation.RootType
	fields := e.newState(operation).collectFields(rootType, operation.SelectionSet)
	if len(fields) != 1 {
		return nil, fmt.Errorf("subscription must select exactly one top level field, got %d", len(fields))
	}
	cf := fields[0]
	field := cf.Fields[0]

	fctx := withFieldInfo(ctx, &FieldInfo{
		ParentType:  rootType.Name,
		FieldName:   field.Name,
		ResponseKey: cf.ResponseName,
		Path:        Path{cf.ResponseName},
		Fields:      cf.Fields,
		Variables:   operation.Variables,
	})
	stream, err := guard(rootType.Name, field.Name, func() (<-chan any, error) {
		return sub.Subscribe(fctx, rootType.Name, field.Name, initialValue, argumentValues(field.Arguments))
	})
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, fmt.Errorf("subscription field %s.%s returned no stream", rootType.Name, field.Name)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.SubscriptionStart{OperationName: operation.Name, Field: field.Name})

	out := make(chan *ExecutionResult)
	go func() {
		delivered := 0
		defer func() {
			close(out)
			eventbus.Publish(ctx, events.SubscriptionFinish{
				OperationName: operation.Name,
				Field:         field.Name,
				Events:        delivered,
				Err:           ctx.Err(),
				Duration:      time.Since(start),
			})
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-stream:
				if !ok {
					return
				}
				result := e.executeEvent(fctx, operation, cf, event)
				select {
				case out <- result:
					delivered++
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// executeEvent completes one source event as the value of the subscription
// root field. An error event becomes a field error.
func (e *Executor) executeEvent(ctx context.Context, operation *validator.Operation, cf collectedField, event any) *ExecutionResult {
	state := e.newState(operation)
	rootType := operation.RootType
	path := Path{cf.ResponseName}
	def := fieldDefinition(rootType, cf.Fields[0])

	var (
		completed value.Value
		ok        bool
	)
	if err, isErr := event.(error); isErr {
		state.addError(cf, path, err)
		completed, ok = value.Null(), !def.Type.IsNonNull()
	} else {
		completed, ok = state.completeValue(ctx, rootType, cf, def.Type, event, path)
	}
	if !ok {
		return state.result(value.Null(), false)
	}
	return state.result(value.Object(value.Field{Name: cf.ResponseName, Value: completed}), true)
}
