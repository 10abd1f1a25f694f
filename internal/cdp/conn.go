// Package cdp implements the small slice of the Chrome DevTools Protocol
// that loadsum needs: command round-trips and event fan-out over a single
// browser-level WebSocket, with flattened page sessions.
package cdp

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is the WebSocket surface the client reads from and writes to.
// Tests substitute a scripted implementation.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}
