// Package session owns one isolated, cache-disabled Chrome page for the
// lifetime of a single analysis: browser process, CDP connection, browser
// context and attached target, released together by Close.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grantcarthew/loadsum/internal/browser"
	"github.com/grantcarthew/loadsum/internal/cdp"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

var (
	// ErrClosed is returned for operations on a session after Close.
	ErrClosed = errors.New("session closed")

	// ErrDisconnected is returned when the browser connection drops mid-operation.
	ErrDisconnected = errors.New("browser connection lost")
)

// clearStorageScript runs before any page script on every new document.
const clearStorageScript = `try { localStorage.clear(); sessionStorage.clear(); } catch (e) {}`

// clearCacheStorageScript empties the Cache Storage API for the current origin.
const clearCacheStorageScript = `caches.keys().then(keys => Promise.all(keys.map(k => caches.delete(k))))`

// noCacheHeaders are forced onto every outgoing request.
var noCacheHeaders = []header{
	{Name: "Cache-Control", Value: "no-cache"},
	{Name: "Pragma", Value: "no-cache"},
}

const teardownTimeout = 5 * time.Second

// Options configures Open.
type Options struct {
	Launch browser.LaunchOptions
	Log    zerolog.Logger
}

// Finished describes one completed network request.
type Finished struct {
	RequestID    string
	EncodedBytes int64
}

// NavigationError is a navigation the browser refused or could not complete,
// such as net::ERR_NAME_NOT_RESOLVED.
type NavigationError struct {
	URL  string
	Text string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %s", e.URL, e.Text)
}

// EvalError is a JavaScript exception thrown by an evaluated expression.
type EvalError struct {
	Text string
}

func (e *EvalError) Error() string {
	return "javascript: " + e.Text
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session is a single page in its own browser context.
type Session struct {
	log     zerolog.Logger
	browser *browser.Browser
	client  *cdp.Client

	contextID string
	targetID  string
	sessionID string

	mu         sync.Mutex
	finished   []func(Finished)
	loadWaiter chan struct{}

	// continuations tracks in-flight Fetch.continueRequest goroutines.
	continuations sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open launches Chrome and prepares an isolated page. On failure everything
// acquired so far is released before returning.
func Open(ctx context.Context, opts Options) (*Session, error) {
	launch := opts.Launch
	launch.DisableCache = true

	b, err := browser.Start(ctx, launch)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	opts.Log.Debug().Int("pid", b.PID()).Int("port", b.Port()).Msg("browser started")

	version, err := b.Version(ctx)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("browser version: %w", err), b.Close())
	}

	client, err := cdp.Dial(ctx, version.WebSocketURL)
	if err != nil {
		return nil, multierr.Append(err, b.Close())
	}

	s := newSession(client, opts.Log)
	s.browser = b
	if err := s.setup(ctx); err != nil {
		return nil, multierr.Append(err, s.Close())
	}

	return s, nil
}

func newSession(client *cdp.Client, log zerolog.Logger) *Session {
	return &Session{client: client, log: log}
}

// setup creates the browser context and target, attaches to it and enables
// the domains the analyzer depends on.
func (s *Session) setup(ctx context.Context) error {
	var created struct {
		BrowserContextID string `json:"browserContextId"`
	}
	if err := s.client.Call(ctx, "", "Target.createBrowserContext", map[string]any{
		"disposeOnDetach": true,
	}, &created); err != nil {
		return fmt.Errorf("create browser context: %w", err)
	}
	s.contextID = created.BrowserContextID

	var target struct {
		TargetID string `json:"targetId"`
	}
	if err := s.client.Call(ctx, "", "Target.createTarget", map[string]any{
		"url":              "about:blank",
		"browserContextId": s.contextID,
	}, &target); err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	s.targetID = target.TargetID

	var attached struct {
		SessionID string `json:"sessionId"`
	}
	if err := s.client.Call(ctx, "", "Target.attachToTarget", map[string]any{
		"targetId": s.targetID,
		"flatten":  true,
	}, &attached); err != nil {
		return fmt.Errorf("attach to target: %w", err)
	}
	s.sessionID = attached.SessionID

	s.subscribe()

	steps := []struct {
		method string
		params any
	}{
		{"Page.enable", nil},
		{"Runtime.enable", nil},
		{"Network.enable", nil},
		{"Network.setCacheDisabled", map[string]any{"cacheDisabled": true}},
		{"Fetch.enable", map[string]any{
			"patterns": []map[string]any{{"urlPattern": "*", "requestStage": "Request"}},
		}},
		{"Page.addScriptToEvaluateOnNewDocument", map[string]any{"source": clearStorageScript}},
	}
	for _, step := range steps {
		if err := s.client.Call(ctx, s.sessionID, step.method, step.params, nil); err != nil {
			return fmt.Errorf("%s: %w", step.method, err)
		}
	}

	s.log.Debug().
		Str("context", s.contextID).
		Str("target", s.targetID).
		Str("session", s.sessionID).
		Msg("page ready")
	return nil
}

func (s *Session) subscribe() {
	s.client.Subscribe("Network.loadingFinished", func(evt cdp.Event) {
		if evt.SessionID != s.sessionID {
			return
		}
		var params struct {
			RequestID         string  `json:"requestId"`
			EncodedDataLength float64 `json:"encodedDataLength"`
		}
		if err := json.Unmarshal(evt.Params, &params); err != nil {
			return
		}

		s.mu.Lock()
		handlers := s.finished
		s.mu.Unlock()

		f := Finished{RequestID: params.RequestID, EncodedBytes: int64(params.EncodedDataLength)}
		for _, fn := range handlers {
			fn(f)
		}
	})

	s.client.Subscribe("Page.loadEventFired", func(evt cdp.Event) {
		if evt.SessionID != s.sessionID {
			return
		}
		s.mu.Lock()
		ch := s.loadWaiter
		s.mu.Unlock()
		if ch != nil {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	})

	// Continuing a request is a command, which cannot be awaited on the
	// read goroutine.
	s.client.Subscribe("Fetch.requestPaused", func(evt cdp.Event) {
		if evt.SessionID != s.sessionID {
			return
		}
		s.continuations.Add(1)
		go func() {
			defer s.continuations.Done()
			s.continueRequest(evt.Params)
		}()
	})
}

func (s *Session) continueRequest(raw json.RawMessage) {
	var params struct {
		RequestID string `json:"requestId"`
		Request   struct {
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		} `json:"request"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cdp.DefaultTimeout)
	defer cancel()

	err := s.client.Call(ctx, s.sessionID, "Fetch.continueRequest", map[string]any{
		"requestId": params.RequestID,
		"headers":   withNoCache(params.Request.Headers),
	}, nil)
	if err != nil {
		// Requests cancelled by the page or a closing session land here.
		s.log.Debug().Err(err).Str("url", params.Request.URL).Msg("continue request failed")
	}
}

// withNoCache returns the request headers with the no-cache pair replacing
// any existing values of the same names.
func withNoCache(in map[string]string) []header {
	out := make([]header, 0, len(in)+len(noCacheHeaders))
	for name, value := range in {
		overridden := false
		for _, h := range noCacheHeaders {
			if strings.EqualFold(name, h.Name) {
				overridden = true
				break
			}
		}
		if !overridden {
			out = append(out, header{Name: name, Value: value})
		}
	}
	return append(out, noCacheHeaders...)
}

// OnRequestFinished registers fn for every request the page completes.
// fn runs on the connection's read goroutine and must return quickly.
func (s *Session) OnRequestFinished(fn func(Finished)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, fn)
}

// Navigate loads url and waits for the page's load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.loadWaiter = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loadWaiter = nil
		s.mu.Unlock()
	}()

	var nav struct {
		FrameID   string `json:"frameId"`
		LoaderID  string `json:"loaderId"`
		ErrorText string `json:"errorText"`
	}
	if err := s.client.Call(ctx, s.sessionID, "Page.navigate", map[string]any{"url": url}, &nav); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if nav.ErrorText != "" {
		return &NavigationError{URL: url, Text: nav.ErrorText}
	}
	// Same-document navigations have no loader and fire no load event.
	if nav.LoaderID == "" {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for load event: %w", ctx.Err())
	case <-s.client.Done():
		return s.lostConnection()
	}
}

// Evaluate runs expression in the page, awaiting a returned promise, and
// decodes the by-value result into out. A nil out discards the value.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	if s.closed.Load() {
		return ErrClosed
	}

	var resp struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := s.client.Call(ctx, s.sessionID, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	}, &resp); err != nil {
		return err
	}

	if d := resp.ExceptionDetails; d != nil {
		text := d.Text
		if d.Exception != nil && d.Exception.Description != "" {
			text = d.Exception.Description
		}
		return &EvalError{Text: text}
	}

	if out == nil || len(resp.Result.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result.Value, out); err != nil {
		return fmt.Errorf("decode evaluation result: %w", err)
	}
	return nil
}

// ClearCacheStorage deletes every Cache Storage entry visible to the page.
func (s *Session) ClearCacheStorage(ctx context.Context) error {
	return s.Evaluate(ctx, clearCacheStorageScript, nil)
}

// Close disposes the browser context, closes the connection and stops the
// browser. Every step runs even if an earlier one fails. Safe to call twice.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var err error

		if s.client != nil && s.disconnected() {
			s.log.Debug().Err(s.lostConnection()).Msg("skipping context dispose")
		}
		if s.client != nil && s.contextID != "" && !s.disconnected() {
			ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
			_, disposeErr := s.client.SendContext(ctx, "Target.disposeBrowserContext", map[string]any{
				"browserContextId": s.contextID,
			})
			cancel()
			if disposeErr != nil {
				err = multierr.Append(err, fmt.Errorf("dispose browser context: %w", disposeErr))
			}
		}

		if s.client != nil {
			if closeErr := s.client.Close(); closeErr != nil {
				err = multierr.Append(err, fmt.Errorf("close cdp connection: %w", closeErr))
			}
			s.continuations.Wait()
		}

		if s.browser != nil {
			if closeErr := s.browser.Close(); closeErr != nil {
				err = multierr.Append(err, fmt.Errorf("stop browser: %w", closeErr))
			}
		}

		s.closeErr = err
	})
	return s.closeErr
}

func (s *Session) disconnected() bool {
	select {
	case <-s.client.Done():
		return true
	default:
		return false
	}
}

// lostConnection is ErrDisconnected carrying the read error that ended the
// connection, when there was one.
func (s *Session) lostConnection() error {
	if err := s.client.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return ErrDisconnected
}
