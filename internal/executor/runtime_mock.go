package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockResolver resolves a single field in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// MockStream opens a subscription source stream in tests.
type MockStream func(ctx context.Context, source any, args map[string]any) (<-chan any, error)

// NewMockValueResolver returns a MockResolver that always returns the provided value.
func NewMockValueResolver(val any) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return val, nil
	}
}

// NewMockErrorResolver returns a MockResolver that always returns the provided error.
func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}

// Call represents a single ResolveField invocation.
type Call struct {
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
}

// MockRuntime implements Runtime and Subscriber with a resolver registry and
// a call log. Fields without a registered resolver fall back to
// ResolveProperty on the source value.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	streams   map[string]MockStream
	calls     []Call

	typeResolver func(value any) (string, error)
	serializer   func(typeName string, val any) (any, error)
}

var (
	_ Runtime    = (*MockRuntime)(nil)
	_ Subscriber = (*MockRuntime)(nil)
)

// NewMockRuntime creates a MockRuntime with the provided resolvers.
// The resolvers map keys are of the form "ObjectType.Field".
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers: make(map[string]MockResolver, len(resolvers)),
		streams:   make(map[string]MockStream),
		typeResolver: func(value any) (string, error) {
			if name, ok := TypeNameOf(value); ok {
				return name, nil
			}
			return "", fmt.Errorf("cannot resolve type")
		},
		serializer: func(typeName string, val any) (any, error) {
			return val, nil
		},
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or updates a resolver for the given object type and field.
func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetStream registers the subscription source of the given root field.
func (m *MockRuntime) SetStream(objectType, field string, stream MockStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[objectType+"."+field] = stream
}

func (m *MockRuntime) SetTypeResolver(f func(value any) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typeResolver = f
}

func (m *MockRuntime) SetSerializer(f func(typeName string, val any) (any, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serializer = f
}

// ResolveField implements Runtime.ResolveField and records the call.
func (m *MockRuntime) ResolveField(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.calls = append(m.calls, Call{ObjectType: objectType, Field: field, Source: source, Args: args})
	m.mu.Unlock()

	if r == nil {
		return ResolveProperty(source, field)
	}
	return r(ctx, source, args)
}

// Subscribe implements Subscriber.
func (m *MockRuntime) Subscribe(ctx context.Context, objectType string, field string, source any, args map[string]any) (<-chan any, error) {
	m.mu.Lock()
	s := m.streams[objectType+"."+field]
	m.mu.Unlock()
	if s == nil {
		return nil, fmt.Errorf("no stream for %s.%s", objectType, field)
	}
	return s(ctx, source, args)
}

// ResolveType implements Runtime.ResolveType
func (m *MockRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	m.mu.Lock()
	f := m.typeResolver
	m.mu.Unlock()
	if f == nil {
		return "", fmt.Errorf("type resolver not configured")
	}
	return f(value)
}

// SerializeLeafValue implements Runtime.SerializeLeafValue
func (m *MockRuntime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.serializer
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(scalarOrEnumTypeName, value)
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount counts the recorded calls of ObjectType.Field.
func (m *MockRuntime) CallCount(objectType, field string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.ObjectType == objectType && c.Field == field {
			n++
		}
	}
	return n
}

// Reset clears recorded calls (resolvers remain).
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
