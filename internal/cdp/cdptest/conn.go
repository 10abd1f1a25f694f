// Package cdptest provides a scripted in-memory cdp.Conn.
package cdptest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/coder/websocket"
	"github.com/grantcarthew/loadsum/internal/cdp"
)

// ErrClosed is returned by Read and Write once the connection is closed.
var ErrClosed = errors.New("cdptest: connection closed")

// Call is a command as the browser would see it.
type Call struct {
	ID        int64
	Method    string
	SessionID string
	Params    json.RawMessage
}

// Decode unmarshals the call parameters into v.
func (c Call) Decode(v any) error {
	return json.Unmarshal(c.Params, v)
}

// Reply is what the scripted browser answers. Drop leaves the call pending.
type Reply struct {
	Result any
	Err    *cdp.Error
	Drop   bool
}

// Handler scripts the browser side of a conversation.
type Handler func(Call) Reply

// OK replies with an empty result object.
func OK(Call) Reply { return Reply{Result: struct{}{}} }

// Conn is an in-memory cdp.Conn driven by a Handler.
type Conn struct {
	handler Handler

	mu      sync.Mutex
	frames  chan []byte
	calls   []Call
	closed  bool
	closeCh chan struct{}
}

// NewConn returns a connection that answers every write with handler.
// A nil handler answers every call with OK.
func NewConn(handler Handler) *Conn {
	if handler == nil {
		handler = OK
	}
	return &Conn{
		handler: handler,
		frames:  make(chan []byte, 256),
		closeCh: make(chan struct{}),
	}
}

func (c *Conn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case data := <-c.frames:
		return websocket.MessageText, data, nil
	case <-c.closeCh:
		return 0, nil, ErrClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *Conn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	var frame struct {
		ID        int64           `json:"id"`
		Method    string          `json:"method"`
		SessionID string          `json:"sessionId"`
		Params    json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	call := Call{ID: frame.ID, Method: frame.Method, SessionID: frame.SessionID, Params: frame.Params}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.calls = append(c.calls, call)
	c.mu.Unlock()

	reply := c.handler(call)
	if reply.Drop {
		return nil
	}

	resp := map[string]any{"id": call.ID}
	if reply.Err != nil {
		resp["error"] = reply.Err
	} else {
		resp["result"] = reply.Result
	}
	return c.push(resp)
}

// Emit queues an event frame as if the browser had sent it.
func (c *Conn) Emit(method, sessionID string, params any) error {
	evt := map[string]any{"method": method, "params": params}
	if sessionID != "" {
		evt["sessionId"] = sessionID
	}
	return c.push(evt)
}

// EmitRaw queues a frame verbatim.
func (c *Conn) EmitRaw(data []byte) {
	c.frames <- data
}

// Calls returns every command written so far, in order.
func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallsTo filters Calls by method.
func (c *Conn) CallsTo(method string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Close(code websocket.StatusCode, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closeCh)
	}
	return nil
}

func (c *Conn) push(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.frames <- data
	return nil
}
