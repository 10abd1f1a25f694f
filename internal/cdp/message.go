package cdp

import (
	"encoding/json"
	"fmt"
)

// Request is a CDP command. SessionID routes it to an attached target.
type Request struct {
	ID        int64  `json:"id"`
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Response is the reply to a Request with the same ID.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Event is an unsolicited notification from the browser.
type Event struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId,omitempty"`
}

// Error is a protocol-level failure reported by the browser.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

// envelope is the union of every field a CDP frame may carry.
type envelope struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// decodeFrame classifies a raw frame. Frames with an id are responses,
// frames with only a method are events.
func decodeFrame(data []byte) (*Response, *Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("decode cdp frame: %w", err)
	}

	switch {
	case env.ID != 0:
		return &Response{ID: env.ID, Result: env.Result, Error: env.Error}, nil, nil
	case env.Method != "":
		return nil, &Event{Method: env.Method, Params: env.Params, SessionID: env.SessionID}, nil
	default:
		return nil, nil, fmt.Errorf("unrecognised cdp frame: %s", string(data))
	}
}
