package events

import "time"

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing a GraphQL operation.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// FieldResolved is emitted after a resolver returns, including resolvers
// that failed or panicked.
type FieldResolved struct {
	ParentType string
	FieldName  string
	Path       []any
	Err        error
	Duration   time.Duration
}

// SubscriptionStart is emitted when a subscription source stream opens.
type SubscriptionStart struct {
	OperationName string
	Field         string
}

// SubscriptionFinish is emitted when a subscription ends. Events counts the
// results delivered to the client.
type SubscriptionFinish struct {
	OperationName string
	Field         string
	Events        int
	Err           error
	Duration      time.Duration
}
