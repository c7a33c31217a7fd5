package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the server accepts a GraphQL request over plain
// HTTP. WebSocket upgrades are reported through the subscription events.
type HTTPStart struct {
	Request   *http.Request
	RequestID string
}

// HTTPFinish is emitted after the response has been written. Bytes counts
// the response body.
type HTTPFinish struct {
	Request   *http.Request
	RequestID string
	Status    int
	Bytes     int
	Duration  time.Duration
}
