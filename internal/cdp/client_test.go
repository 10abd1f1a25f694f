package cdp_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/grantcarthew/loadsum/internal/cdp"
	"github.com/grantcarthew/loadsum/internal/cdp/cdptest"
)

func TestClient_SendContext_CorrelatesResponseByID(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(func(call cdptest.Call) cdptest.Reply {
		return cdptest.Reply{Result: map[string]string{"frameId": "ABC123"}}
	})
	client := cdp.NewClient(conn)
	defer client.Close()

	result, err := client.SendContext(context.Background(), "Page.navigate", map[string]string{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `{"frameId":"ABC123"}` {
		t.Errorf("result = %s", result)
	}

	calls := conn.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].ID != 1 {
		t.Errorf("ID = %d, want 1", calls[0].ID)
	}
	if calls[0].Method != "Page.navigate" {
		t.Errorf("Method = %s", calls[0].Method)
	}
	if calls[0].SessionID != "" {
		t.Errorf("browser-level call carried sessionId %q", calls[0].SessionID)
	}
}

func TestClient_SendToSession_TagsSessionID(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(nil)
	client := cdp.NewClient(conn)
	defer client.Close()

	if _, err := client.SendToSession(context.Background(), "SESSION-1", "Runtime.enable", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := conn.CallsTo("Runtime.enable")
	if len(calls) != 1 || calls[0].SessionID != "SESSION-1" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestClient_SendContext_ProtocolError(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(func(cdptest.Call) cdptest.Reply {
		return cdptest.Reply{Err: &cdp.Error{Code: -32000, Message: "Target closed"}}
	})
	client := cdp.NewClient(conn)
	defer client.Close()

	_, err := client.SendContext(context.Background(), "Page.navigate", nil)
	var cdpErr *cdp.Error
	if !errors.As(err, &cdpErr) {
		t.Fatalf("expected *cdp.Error, got %T: %v", err, err)
	}
	if cdpErr.Code != -32000 || cdpErr.Message != "Target closed" {
		t.Errorf("unexpected error: %+v", cdpErr)
	}
}

func TestClient_SendContext_Timeout(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(func(cdptest.Call) cdptest.Reply { return cdptest.Reply{Drop: true} })
	client := cdp.NewClient(conn)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.SendContext(ctx, "Page.navigate", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestClient_Call_DecodesResult(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(func(cdptest.Call) cdptest.Reply {
		return cdptest.Reply{Result: map[string]string{"browserContextId": "CTX"}}
	})
	client := cdp.NewClient(conn)
	defer client.Close()

	var out struct {
		BrowserContextID string `json:"browserContextId"`
	}
	if err := client.Call(context.Background(), "", "Target.createBrowserContext", nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.BrowserContextID != "CTX" {
		t.Errorf("BrowserContextID = %q", out.BrowserContextID)
	}

	if err := client.Call(context.Background(), "", "Target.createBrowserContext", nil, nil); err != nil {
		t.Errorf("nil out: unexpected error: %v", err)
	}
}

func TestClient_Subscribe_DispatchesToHandlers(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(nil)
	client := cdp.NewClient(conn)
	defer client.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	var got []cdp.Event
	handler := func(e cdp.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		wg.Done()
	}
	client.Subscribe("Network.loadingFinished", handler)
	client.Subscribe("Network.loadingFinished", handler)

	if err := conn.Emit("Network.loadingFinished", "S1", map[string]any{"requestId": "1"}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handlers")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 handler calls, got %d", len(got))
	}
	if got[0].SessionID != "S1" {
		t.Errorf("SessionID = %q, want S1", got[0].SessionID)
	}
	var params struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(got[0].Params, &params); err != nil || params.RequestID != "1" {
		t.Errorf("params = %s (%v)", got[0].Params, err)
	}
}

func TestClient_IgnoresUnknownIDsAndGarbage(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(func(cdptest.Call) cdptest.Reply {
		return cdptest.Reply{Result: map[string]bool{"success": true}}
	})
	conn.EmitRaw([]byte(`{"id":9999,"result":{}}`))
	conn.EmitRaw([]byte(`garbage`))

	client := cdp.NewClient(conn)
	defer client.Close()

	result, err := client.SendContext(context.Background(), "Test.method", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `{"success":true}` {
		t.Errorf("result = %s", result)
	}
}

func TestClient_ConcurrentSends(t *testing.T) {
	t.Parallel()

	const n = 10

	client := cdp.NewClient(cdptest.NewConn(nil))
	defer client.Close()

	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.SendContext(context.Background(), "Test.method", nil); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent send: %v", err)
	}
}

func TestClient_CloseWhileWaiting(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(func(cdptest.Call) cdptest.Reply { return cdptest.Reply{Drop: true} })
	client := cdp.NewClient(conn)

	go func() {
		time.Sleep(20 * time.Millisecond)
		client.Close()
	}()

	_, err := client.SendContext(context.Background(), "Page.navigate", nil)
	if !errors.Is(err, cdp.ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestClient_Close_Idempotent(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(nil)
	client := cdp.NewClient(conn)

	if err := client.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !conn.Closed() {
		t.Error("expected connection to be closed")
	}
	if err := client.Close(); err != nil {
		t.Errorf("double close returned error: %v", err)
	}

	select {
	case <-client.Done():
	default:
		t.Error("Done not closed after Close")
	}

	if _, err := client.SendContext(context.Background(), "Page.enable", nil); !errors.Is(err, cdp.ErrClientClosed) {
		t.Errorf("send after close: got %v", err)
	}
}

func TestClient_RemoteDisconnectRecordsErr(t *testing.T) {
	t.Parallel()

	conn := cdptest.NewConn(nil)
	client := cdp.NewClient(conn)

	// Closing the conn directly simulates the browser going away.
	_ = conn.Close(1000, "")

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("read loop did not exit")
	}
	if !errors.Is(client.Err(), cdptest.ErrClosed) {
		t.Errorf("Err() = %v, want cdptest.ErrClosed", client.Err())
	}
	_ = client.Close()
}
