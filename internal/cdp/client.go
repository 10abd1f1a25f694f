package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// DefaultTimeout bounds a single command when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// ErrClientClosed is returned for commands issued after the connection went away.
var ErrClientClosed = errors.New("cdp client closed")

// Client multiplexes commands and events over one browser connection.
type Client struct {
	conn    Conn
	writeMu sync.Mutex
	nextID  atomic.Int64

	pending   sync.Map // int64 -> chan *Response
	listeners sync.Map // string -> *handlerList

	closed   atomic.Bool
	closedCh chan struct{}
	closeMu  sync.Mutex
	closeErr error

	done chan struct{}
}

// NewClient starts reading from conn immediately.
func NewClient(conn Conn) *Client {
	c := &Client{
		conn:     conn,
		closedCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial opens a WebSocket to a browser debugging endpoint.
func Dial(ctx context.Context, wsURL string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial cdp endpoint: %w", err)
	}
	// Resource timing payloads for heavy pages exceed the 32KiB default.
	conn.SetReadLimit(64 << 20)
	return NewClient(conn), nil
}

// SendContext sends a browser-level command and returns its raw result.
func (c *Client) SendContext(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.SendToSession(ctx, "", method, params)
}

// SendToSession sends a command to an attached target. An empty sessionID
// addresses the browser itself.
func (c *Client) SendToSession(ctx context.Context, sessionID, method string, params any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	data, err := json.Marshal(Request{
		ID:        id,
		Method:    method,
		Params:    params,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}

	// Register before writing so a fast reply is never dropped.
	respCh := make(chan *Response, 1)
	c.pending.Store(id, respCh)
	defer c.pending.Delete(id)

	c.writeMu.Lock()
	err = c.conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	case <-c.closedCh:
		return nil, fmt.Errorf("%s: %w", method, ErrClientClosed)
	}
}

// Call is SendToSession followed by decoding the result into out.
// A nil out discards the result.
func (c *Client) Call(ctx context.Context, sessionID, method string, params, out any) error {
	raw, err := c.SendToSession(ctx, sessionID, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Subscribe registers handler for every event named method. Handlers run on
// the read goroutine, so they must not issue commands synchronously.
func (c *Client) Subscribe(method string, handler func(Event)) {
	actual, _ := c.listeners.LoadOrStore(method, &handlerList{})
	actual.(*handlerList).add(handler)
}

// Done is closed once the read loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection and waits for the read loop.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.closedCh)

	c.closeMu.Lock()
	err := c.conn.Close(websocket.StatusNormalClosure, "client closing")
	c.closeMu.Unlock()

	<-c.done
	return err
}

// Err reports the read error that terminated the connection, if any.
func (c *Client) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}

func (c *Client) readLoop() {
	defer close(c.done)

	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if !c.closed.Swap(true) {
				c.closeMu.Lock()
				c.closeErr = err
				c.closeMu.Unlock()
				close(c.closedCh)
			}
			return
		}

		resp, evt, err := decodeFrame(data)
		if err != nil {
			continue
		}
		if resp != nil {
			c.deliver(resp)
			continue
		}
		c.fanOut(evt)
	}
}

func (c *Client) deliver(resp *Response) {
	ch, ok := c.pending.Load(resp.ID)
	if !ok {
		return
	}
	select {
	case ch.(chan *Response) <- resp:
	default:
	}
}

func (c *Client) fanOut(evt *Event) {
	if list, ok := c.listeners.Load(evt.Method); ok {
		list.(*handlerList).call(*evt)
	}
}

type handlerList struct {
	mu       sync.RWMutex
	handlers []func(Event)
}

func (h *handlerList) add(fn func(Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

func (h *handlerList) call(evt Event) {
	h.mu.RLock()
	handlers := h.handlers
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(evt)
	}
}
