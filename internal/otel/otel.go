package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	eventbus "github.com/hanpama/gqlexec/internal/eventbus"
	events "github.com/hanpama/gqlexec/internal/events"
	executor "github.com/hanpama/gqlexec/internal/executor"
	reqid "github.com/hanpama/gqlexec/internal/reqid"
)

const instrumentationName = "github.com/hanpama/gqlexec"

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unregister := Register(tp)
	return func(ctx context.Context) error {
		unregister()
		return tp.Shutdown(ctx)
	}, nil
}

// Register attaches span-producing subscribers for the request lifecycle
// events to the global event bus, installing one if none is set. Spans are
// correlated by request ID.
func Register(tp trace.TracerProvider) (unregister func()) {
	if eventbus.Global() == nil {
		eventbus.Use(eventbus.New())
	}
	s := &subscriber{tracer: tp.Tracer(instrumentationName)}
	return s.register()
}

type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	gqlSpans  sync.Map // rid -> trace.Span
	subSpans  sync.Map // rid/operation/field -> trace.Span
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(s.httpStart),
		eventbus.Subscribe(s.httpFinish),
		eventbus.Subscribe(s.graphqlStart),
		eventbus.Subscribe(s.graphqlFinish),
		eventbus.Subscribe(s.fieldResolved),
		eventbus.Subscribe(s.subscriptionStart),
		eventbus.Subscribe(s.subscriptionFinish),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *subscriber) httpStart(ctx context.Context, e events.HTTPStart) {
	rid := requestID(ctx, e.RequestID)
	_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Request.Method),
		attribute.String("http.target", e.Request.URL.Path),
		attribute.String("http.request_id", rid),
	)
	s.httpSpans.Store(rid, span)
}

func (s *subscriber) httpFinish(ctx context.Context, e events.HTTPFinish) {
	v, ok := s.httpSpans.LoadAndDelete(requestID(ctx, e.RequestID))
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		semconv.HTTPStatusCodeKey.Int(e.Status),
		attribute.Int("http.response_content_length", e.Bytes),
	)
	if e.Status >= 500 {
		span.SetStatus(codes.Error, "")
	}
	span.End()
}

// requestID prefers the ID carried by the event over the context's.
func requestID(ctx context.Context, id string) string {
	if id != "" {
		return id
	}
	rid, _ := reqid.FromContext(ctx)
	return rid
}

func (s *subscriber) graphqlStart(ctx context.Context, e events.GraphQLStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, rid, &s.httpSpans), "graphql.operation")
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.String("graphql.operation.type", e.OperationType),
		attribute.String("graphql.document", e.Query),
	)
	s.gqlSpans.Store(rid, span)
}

func (s *subscriber) graphqlFinish(ctx context.Context, e events.GraphQLFinish) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.gqlSpans.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
	if len(e.Errors) > 0 {
		span.SetStatus(codes.Error, e.Errors[0].Error())
	}
	span.End()
}

// fieldResolved records a finished resolver call as a span that ends now and
// started Duration ago.
func (s *subscriber) fieldResolved(ctx context.Context, e events.FieldResolved) {
	rid, _ := reqid.FromContext(ctx)
	end := time.Now()
	_, span := s.tracer.Start(s.parent(ctx, rid, &s.gqlSpans, &s.httpSpans), "graphql.resolve",
		trace.WithTimestamp(end.Add(-e.Duration)))
	span.SetAttributes(
		attribute.String("graphql.field.parent", e.ParentType),
		attribute.String("graphql.field.name", e.FieldName),
		attribute.String("graphql.field.path", executor.Path(e.Path).String()),
	)
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.End(trace.WithTimestamp(end))
}

func (s *subscriber) subscriptionStart(ctx context.Context, e events.SubscriptionStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, rid, &s.gqlSpans, &s.httpSpans), "graphql.subscription")
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.String("graphql.field.name", e.Field),
	)
	s.subSpans.Store(subscriptionKey(rid, e.OperationName, e.Field), span)
}

func (s *subscriber) subscriptionFinish(ctx context.Context, e events.SubscriptionFinish) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.subSpans.LoadAndDelete(subscriptionKey(rid, e.OperationName, e.Field))
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attribute.Int("graphql.subscription.events", e.Events))
	if e.Err != nil && e.Err != context.Canceled {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.End()
}

// parent returns ctx carrying the first span registered for rid in spans.
func (s *subscriber) parent(ctx context.Context, rid string, spans ...*sync.Map) context.Context {
	for _, m := range spans {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func subscriptionKey(rid, operation, field string) string {
	return rid + "/" + operation + "/" + field
}
