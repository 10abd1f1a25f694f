package cdp

import (
	"testing"
)

func TestDecodeFrame_Response(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantID     int64
		wantResult string
	}{
		{"result object", `{"id":1,"result":{"frameId":"ABC123"}}`, 1, `{"frameId":"ABC123"}`},
		{"null result", `{"id":42,"result":null}`, 42, `null`},
		{"empty result", `{"id":5,"result":{}}`, 5, `{}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, evt, err := decodeFrame([]byte(tt.input))
			if err != nil {
				t.Fatalf("decodeFrame() error = %v", err)
			}
			if evt != nil {
				t.Errorf("expected no event, got %+v", evt)
			}
			if resp == nil {
				t.Fatal("expected response, got nil")
			}
			if resp.ID != tt.wantID {
				t.Errorf("ID = %d, want %d", resp.ID, tt.wantID)
			}
			if string(resp.Result) != tt.wantResult {
				t.Errorf("Result = %s, want %s", resp.Result, tt.wantResult)
			}
		})
	}
}

func TestDecodeFrame_ResponseError(t *testing.T) {
	t.Parallel()

	resp, _, err := decodeFrame([]byte(`{"id":1,"error":{"code":-32000,"message":"Target closed","data":"extra info"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected protocol error")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Code = %d, want -32000", resp.Error.Code)
	}
	if got, want := resp.Error.Error(), "cdp error -32000: Target closed (extra info)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestDecodeFrame_Event(t *testing.T) {
	t.Parallel()

	input := `{"method":"Network.loadingFinished","params":{"requestId":"7.2","encodedDataLength":512},"sessionId":"S1"}`

	resp, evt, err := decodeFrame([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected no response, got %+v", resp)
	}
	if evt == nil {
		t.Fatal("expected event, got nil")
	}
	if evt.Method != "Network.loadingFinished" {
		t.Errorf("Method = %s", evt.Method)
	}
	if evt.SessionID != "S1" {
		t.Errorf("SessionID = %q, want S1", evt.SessionID)
	}
	if string(evt.Params) != `{"requestId":"7.2","encodedDataLength":512}` {
		t.Errorf("Params = %s", evt.Params)
	}
}

func TestDecodeFrame_Invalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`not json`, `{}`, `{"params":{}}`} {
		if _, _, err := decodeFrame([]byte(input)); err == nil {
			t.Errorf("decodeFrame(%q) expected error", input)
		}
	}
}

func TestError_WithoutData(t *testing.T) {
	t.Parallel()

	e := &Error{Code: -32601, Message: "'Foo.bar' wasn't found"}
	if got, want := e.Error(), "cdp error -32601: 'Foo.bar' wasn't found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
