package analyzer

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/grantcarthew/loadsum/internal/session"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock advances only when After is called. Scheduled callbacks run
// once the clock reaches their instant.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []scheduled
}

type scheduled struct {
	at time.Time
	fn func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []scheduled
	rest := c.pending[:0]
	for _, s := range c.pending {
		if !s.at.After(now) {
			due = append(due, s)
		} else {
			rest = append(rest, s)
		}
	}
	c.pending = rest
	c.mu.Unlock()

	for _, s := range due {
		s.fn()
	}

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// at schedules fn for offset after epoch.
func (c *fakeClock) at(offset time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, scheduled{at: epoch.Add(offset), fn: fn})
	sort.Slice(c.pending, func(i, j int) bool { return c.pending[i].at.Before(c.pending[j].at) })
}

// fakePage is a scripted Page.
type fakePage struct {
	mu       sync.Mutex
	handlers []func(session.Finished)
	closed   int
	visited  []string

	clearErr    error
	navigateErr error
	evalErr     error
	// onNavigate runs inside Navigate, after handlers are registered.
	onNavigate func(p *fakePage)
	// blockNavigate makes Navigate wait for ctx.
	blockNavigate bool

	navigation string
	resources  string
}

func (p *fakePage) ClearCacheStorage(context.Context) error { return p.clearErr }

func (p *fakePage) OnRequestFinished(fn func(session.Finished)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

func (p *fakePage) finish(id string) {
	p.mu.Lock()
	handlers := p.handlers
	p.mu.Unlock()
	for _, fn := range handlers {
		fn(session.Finished{RequestID: id})
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.visited = append(p.visited, url)
	p.mu.Unlock()
	if p.blockNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	if p.navigateErr != nil {
		return p.navigateErr
	}
	if p.onNavigate != nil {
		p.onNavigate(p)
	}
	return nil
}

func (p *fakePage) Evaluate(_ context.Context, expression string, out any) error {
	if p.evalErr != nil {
		return p.evalErr
	}
	var raw string
	switch expression {
	case navigationTimingScript:
		raw = p.navigation
	case resourceTimingScript:
		raw = p.resources
	}
	if raw == "" {
		raw = "null"
	}
	return json.Unmarshal([]byte(raw), out)
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePage) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func openerFor(p *fakePage) Opener {
	return OpenerFunc(func(context.Context) (Page, error) { return p, nil })
}
