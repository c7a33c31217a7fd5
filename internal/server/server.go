package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc/metadata"

	eventbus "github.com/hanpama/gqlexec/internal/eventbus"
	events "github.com/hanpama/gqlexec/internal/events"
	executor "github.com/hanpama/gqlexec/internal/executor"
	language "github.com/hanpama/gqlexec/internal/language"
	reqid "github.com/hanpama/gqlexec/internal/reqid"
	schema "github.com/hanpama/gqlexec/internal/schema"
)

// Handler is an http.Handler that serves a GraphQL endpoint over HTTP and
// WebSocket. It parses requests, runs the executor, and formats responses
// as {"data": ..., "errors": [...]} envelopes.
type Handler struct {
	exec     *executor.Executor
	opt      Options
	upgrader websocket.Upgrader
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout. WebSocket connections are not limited.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata.
	// Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	// RootValue is the source value of root fields.
	RootValue any

	// KeepAlive is the WebSocket heartbeat interval. 0 disables heartbeats.
	KeepAlive time.Duration

	// InitTimeout bounds the wait for connection_init on a new WebSocket.
	InitTimeout time.Duration

	// Executor options applied when building the executor.
	Executor []executor.Option
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }
func WithRootValue(v any) Option      { return func(o *Options) { o.RootValue = v } }
func WithKeepAlive(d time.Duration) Option {
	return func(o *Options) { o.KeepAlive = d }
}
func WithInitTimeout(d time.Duration) Option {
	return func(o *Options) { o.InitTimeout = d }
}
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(o *Options) { o.Executor = append(o.Executor, opts...) }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a new GraphQL HTTP handler using the given runtime and schema.
func New(runtime executor.Runtime, schema *schema.Schema, opts ...Option) (*Handler, error) {
	if runtime == nil || schema == nil {
		return nil, errors.New("server: runtime and schema are required")
	}
	op := Options{
		Timeout:     10 * time.Second,
		GraphiQL:    true,
		KeepAlive:   15 * time.Second,
		InitTimeout: 3 * time.Second,
	}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{exec: executor.NewExecutor(runtime, schema, op.Executor...), opt: op}
	h.upgrader = websocket.Upgrader{
		Subprotocols: []string{protocolTransportWS, protocolGraphQLWS},
		CheckOrigin:  h.checkOrigin,
	}
	return h, nil
}

// Executor returns the executor requests are run with.
func (h *Handler) Executor() *executor.Executor { return h.exec }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := reqid.WithID(r.Context(), r.Header.Get(reqid.Header))
	rid, _ := reqid.FromContext(ctx)
	w.Header().Set(reqid.Header, rid)
	ctx = h.forwardMetadata(ctx, r, rid)

	if websocket.IsWebSocketUpgrade(r) {
		h.serveWS(ctx, w, r)
		return
	}

	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	status := http.StatusOK
	start := time.Now()
	cw := &countingWriter{ResponseWriter: w}
	w = cw
	eventbus.Publish(ctx, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{
			Request:   r,
			RequestID: rid,
			Status:    status,
			Bytes:     cw.n,
			Duration:  time.Since(start),
		})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeJSON(w, status, transportError("method not allowed"), h.opt.Pretty)
		return
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	req, batch, err := parseRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		status = http.StatusBadRequest
		if err == errBodyTooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, transportError(err.Error()), h.opt.Pretty)
		return
	}

	if batch != nil {
		out := make([]*executor.ExecutionResult, len(batch))
		for i := range batch {
			out[i], _ = h.executeOne(ctx, batch[i], r.Method)
		}
		status = writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	res, code := h.executeOne(ctx, req, r.Method)
	status = writeJSON(w, code, res, h.opt.Pretty)
}

// forwardMetadata copies the configured headers and the request ID into the
// outgoing gRPC metadata of ctx.
func (h *Handler) forwardMetadata(ctx context.Context, r *http.Request, rid string) context.Context {
	md := metadata.MD{}
	if len(h.opt.MetadataHeaders) > 0 {
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	md["graphql-request-id"] = []string{rid}
	return metadata.NewOutgoingContext(ctx, md)
}

// executeOne runs a single request and returns its envelope with the HTTP
// status it should be sent with.
func (h *Handler) executeOne(ctx context.Context, req GraphQLRequest, method string) (*executor.ExecutionResult, int) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return executor.ErrorResult(err), http.StatusOK
	}

	opType := operationType(doc, req.OperationName)
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})

	result, status := h.run(ctx, doc, req, method)

	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return result, status
}

func (h *Handler) run(ctx context.Context, doc *language.QueryDocument, req GraphQLRequest, method string) (*executor.ExecutionResult, int) {
	op, errs := h.exec.Validate(doc, req.OperationName, req.Variables)
	if len(errs) > 0 {
		return &executor.ExecutionResult{Errors: executor.ErrorsFrom(errs)}, http.StatusOK
	}
	switch op.Kind {
	case language.Mutation:
		if method == http.MethodGet {
			return transportError("mutations are not allowed over GET"), http.StatusMethodNotAllowed
		}
	case language.Subscription:
		return transportError("subscriptions require a WebSocket connection"), http.StatusBadRequest
	}
	return h.exec.Execute(ctx, op, h.opt.RootValue), http.StatusOK
}

// operationType reports the kind of the named (or only) operation, or "" if
// it cannot be determined before validation.
func operationType(doc *language.QueryDocument, name string) string {
	opDef := doc.Operations.ForName(name)
	if opDef == nil && name == "" && len(doc.Operations) == 1 {
		opDef = doc.Operations[0]
	}
	if opDef == nil {
		return ""
	}
	return string(opDef.Operation)
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

var (
	errBodyTooLarge   = errors.New("body too large")
	errMissingQuery   = errors.New("missing 'query'")
	errInvalidJSON    = errors.New("invalid JSON")
	errEmptyBatch     = errors.New("empty batch")
	errInvalidVars    = errors.New("invalid 'variables' JSON")
	errContentType    = errors.New("unsupported Content-Type")
	errReadBodyFailed = errors.New("failed to read body")
)

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, errMissingQuery
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := decodeJSON([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, errInvalidVars
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, errContentType
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, errReadBodyFailed
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, errBodyTooLarge
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := decodeJSON(body, &arr); err != nil {
			return GraphQLRequest{}, nil, errInvalidJSON
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, errEmptyBatch
		}
		return GraphQLRequest{}, arr, nil
	}
	var req GraphQLRequest
	if err := decodeJSON(body, &req); err != nil {
		return GraphQLRequest{}, nil, errInvalidJSON
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, errMissingQuery
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, nil
}

// decodeJSON decodes with json.Number so that integer variables keep their
// exact value.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// ------------------ Response formatting ------------------

func transportError(message string) *executor.ExecutionResult {
	return executor.ErrorResult(&language.Error{Message: message})
}

// countingWriter counts the response body bytes.
type countingWriter struct {
	http.ResponseWriter
	n int
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

// writeJSON encodes v before writing the header, so an unencodable result
// becomes a 500 transport error instead of a truncated body. It returns the
// status actually written.
func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) int {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = enc.Encode(transportError("failed to encode response: " + err.Error()))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
	return status
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" || !originAllowed(opts.AllowedOrigins, origin) {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Expose-Headers", reqid.Header)
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

// checkOrigin admits WebSocket upgrades from same-origin pages, from any
// page when CORS is disabled, and from allowed origins otherwise.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opt.CORS.AllowedOrigins) == 0 {
		return true
	}
	return originAllowed(h.opt.CORS.AllowedOrigins, origin)
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func acceptsHTML(accept string) bool {
	if accept == "" {
		return false
	}
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
