package server

// WebSocket transport. Two sub-protocols are spoken:
//   - graphql-transport-ws: the graphql-ws library protocol (subscribe/next/complete).
//   - graphql-ws: the legacy subscriptions-transport-ws protocol (start/data/stop).

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	eventbus "github.com/hanpama/gqlexec/internal/eventbus"
	events "github.com/hanpama/gqlexec/internal/events"
	executor "github.com/hanpama/gqlexec/internal/executor"
	language "github.com/hanpama/gqlexec/internal/language"
)

const (
	protocolTransportWS = "graphql-transport-ws"
	protocolGraphQLWS   = "graphql-ws"
)

// Close codes of the graphql-transport-ws protocol.
const (
	closeBadRequest       = 4400
	closeUnauthorized     = 4401
	closeInitTimeout      = 4408
	closeDuplicateID      = 4409
	closeTooManyInitCalls = 4429
)

const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionError     = "connection_error"
	msgConnectionTerminate = "connection_terminate"
	msgKeepAlive           = "ka"
	msgPing                = "ping"
	msgPong                = "pong"
	msgSubscribe           = "subscribe"
	msgStart               = "start"
	msgNext                = "next"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
	msgStop                = "stop"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsConnection struct {
	conn   *websocket.Conn
	h      *Handler
	legacy bool

	writeMu sync.Mutex

	mu  sync.Mutex
	ops map[string]*wsOperation
	wg  sync.WaitGroup
}

type wsOperation struct {
	cancel  context.CancelFunc
	stopped bool
}

// serveWS upgrades the request and runs the connection until the client
// leaves or a protocol violation closes it. ctx carries the request ID and
// forwarded metadata of the upgrade request.
func (h *Handler) serveWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	c := &wsConnection{
		conn:   conn,
		h:      h,
		legacy: conn.Subprotocol() == protocolGraphQLWS,
		ops:    map[string]*wsOperation{},
	}
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.wg.Wait()
		_ = conn.Close()
	}()

	if !c.init() {
		return
	}
	if h.opt.KeepAlive > 0 {
		_ = c.extendDeadline()
		conn.SetPongHandler(func(string) error { return c.extendDeadline() })
		c.wg.Add(1)
		go c.keepAlive(ctx)
	}

	for {
		msg, err := c.read()
		if err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				c.close(closeBadRequest, "Invalid message received")
			}
			return
		}
		switch msg.Type {
		case msgSubscribe, msgStart:
			if !c.start(ctx, msg) {
				return
			}
		case msgComplete, msgStop:
			c.stop(msg.ID)
		case msgPing:
			c.send(wsMessage{Type: msgPong, Payload: msg.Payload})
		case msgPong, msgKeepAlive:
		case msgConnectionInit:
			c.close(closeTooManyInitCalls, "Too many initialisation requests")
			return
		case msgConnectionTerminate:
			c.close(websocket.CloseNormalClosure, "")
			return
		default:
			c.close(closeBadRequest, fmt.Sprintf("Unexpected message type %q", msg.Type))
			return
		}
	}
}

// init waits InitTimeout for connection_init and acknowledges it.
func (c *wsConnection) init() bool {
	if c.h.opt.InitTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.h.opt.InitTimeout))
	}
	msg, err := c.read()
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			c.close(closeInitTimeout, "Connection initialisation timeout")
			return false
		}
		c.close(closeBadRequest, "Invalid message received")
		return false
	}
	switch msg.Type {
	case msgConnectionInit:
	case msgConnectionTerminate:
		c.close(websocket.CloseNormalClosure, "")
		return false
	default:
		if c.legacy {
			c.send(wsMessage{Type: msgConnectionError})
		}
		c.close(closeUnauthorized, "Unauthorized")
		return false
	}
	_ = c.conn.SetReadDeadline(time.Time{})
	c.send(wsMessage{Type: msgConnectionAck})
	if c.legacy {
		c.send(wsMessage{Type: msgKeepAlive})
	}
	return true
}

// extendDeadline gives the client two heartbeat intervals to show activity.
func (c *wsConnection) extendDeadline() error {
	if c.h.opt.KeepAlive <= 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(2 * c.h.opt.KeepAlive))
}

// keepAlive sends heartbeats until ctx is done: websocket pings, answered by
// pongs that extend the read deadline, plus "ka" messages on the legacy
// protocol.
func (c *wsConnection) keepAlive(ctx context.Context) {
	defer c.wg.Done()
	interval := c.h.opt.KeepAlive
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(interval))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
			if c.legacy {
				c.send(wsMessage{Type: msgKeepAlive})
			}
		}
	}
}

// start registers and launches one operation. It returns false when the
// connection was closed for a protocol violation.
func (c *wsConnection) start(ctx context.Context, msg *wsMessage) bool {
	if msg.ID == "" {
		c.close(closeBadRequest, "Operation id is required")
		return false
	}
	var req GraphQLRequest
	if err := decodeJSON(msg.Payload, &req); err != nil {
		c.close(closeBadRequest, "Invalid subscribe payload")
		return false
	}

	c.mu.Lock()
	if _, exists := c.ops[msg.ID]; exists {
		c.mu.Unlock()
		c.close(closeDuplicateID, fmt.Sprintf("Subscriber for %s already exists", msg.ID))
		return false
	}
	opCtx, cancel := context.WithCancel(ctx)
	op := &wsOperation{cancel: cancel}
	c.ops[msg.ID] = op
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		failed := c.execute(opCtx, msg.ID, req)
		c.finish(msg.ID, op, failed)
	}()
	return true
}

// execute runs one operation and streams its results. It reports whether
// the operation failed before execution and an error message was sent.
func (c *wsConnection) execute(ctx context.Context, id string, req GraphQLRequest) bool {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		c.sendErrors(id, executor.ErrorResult(err))
		return true
	}
	opType := operationType(doc, req.OperationName)
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	var errs []error
	defer func() {
		eventbus.Publish(ctx, events.GraphQLFinish{
			Query:         req.Query,
			OperationName: req.OperationName,
			OperationType: opType,
			Errors:        errs,
			Duration:      time.Since(start),
		})
	}()

	exec := c.h.exec
	op, verrs := exec.Validate(doc, req.OperationName, req.Variables)
	if len(verrs) > 0 {
		res := &executor.ExecutionResult{Errors: executor.ErrorsFrom(verrs)}
		errs = resultErrors(res)
		c.sendErrors(id, res)
		return true
	}

	if op.Kind != language.Subscription {
		res := exec.Execute(ctx, op, c.h.opt.RootValue)
		errs = resultErrors(res)
		c.next(id, res)
		return false
	}

	results, err := exec.Subscribe(ctx, op, c.h.opt.RootValue)
	if err != nil {
		res := executor.ErrorResult(err)
		errs = resultErrors(res)
		c.sendErrors(id, res)
		return true
	}
	for res := range results {
		errs = append(errs, resultErrors(res)...)
		c.next(id, res)
	}
	return false
}

// finish removes the operation and tells the client it completed. On
// graphql-transport-ws no complete follows an error or a client stop.
func (c *wsConnection) finish(id string, op *wsOperation, failed bool) {
	op.cancel()
	c.mu.Lock()
	stopped := op.stopped
	delete(c.ops, id)
	c.mu.Unlock()
	if !c.legacy && (stopped || failed) {
		return
	}
	c.send(wsMessage{Type: msgComplete, ID: id})
}

func (c *wsConnection) stop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op, ok := c.ops[id]; ok {
		op.stopped = true
		op.cancel()
	}
}

func (c *wsConnection) next(id string, res *executor.ExecutionResult) {
	typ := msgNext
	if c.legacy {
		typ = msgData
	}
	c.sendPayload(typ, id, res)
}

// sendErrors reports an operation that failed before execution. The legacy
// protocol carries such errors in a data message.
func (c *wsConnection) sendErrors(id string, res *executor.ExecutionResult) {
	if c.legacy {
		c.sendPayload(msgData, id, res)
		return
	}
	c.sendPayload(msgError, id, res.Errors)
}

func (c *wsConnection) sendPayload(typ, id string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("websocket encode %s: %v", typ, err)
		if typ != msgError {
			c.sendPayload(msgError, id, []executor.GraphQLError{{Message: "failed to encode response: " + err.Error()}})
		}
		return
	}
	c.send(wsMessage{Type: typ, ID: id, Payload: b})
}

func (c *wsConnection) send(msg wsMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("websocket write: %v", err)
	}
}

func (c *wsConnection) close(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func (c *wsConnection) read() (*wsMessage, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.extendDeadline()
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func resultErrors(res *executor.ExecutionResult) []error {
	errs := make([]error, len(res.Errors))
	for i := range res.Errors {
		errs[i] = res.Errors[i]
	}
	return errs
}
