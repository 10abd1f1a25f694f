// Package testsite serves a small page with known resources for exercising
// loadsum against a real browser.
package testsite

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Options shapes the served page.
type Options struct {
	// Assets is the number of stylesheet resources linked from the page.
	Assets int
	// AssetSize is the body size of each stylesheet in bytes.
	AssetSize int
	// Straggler, when positive, makes the page fetch /late after its load
	// event and delays that response by this long.
	Straggler time.Duration
}

// Request is what the site saw of one incoming request.
type Request struct {
	Path         string
	CacheControl string
	Pragma       string
	At           time.Time
}

// Site is an http.Handler that records every request it serves.
type Site struct {
	opts Options
	mux  *http.ServeMux

	mu       sync.Mutex
	requests []Request
}

func New(opts Options) *Site {
	if opts.AssetSize <= 0 {
		opts.AssetSize = 1024
	}
	s := &Site{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("/", s.page)
	s.mux.HandleFunc("/asset/", s.asset)
	s.mux.HandleFunc("/late", s.late)
	return s
}

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Path:         r.URL.Path,
		CacheControl: r.Header.Get("Cache-Control"),
		Pragma:       r.Header.Get("Pragma"),
		At:           time.Now(),
	})
	s.mu.Unlock()

	// Everything is cacheable so a missing no-cache setup shows up as
	// requests that never arrive.
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.mux.ServeHTTP(w, r)
}

// Requests returns the requests served so far, optionally filtered to paths
// with prefix.
func (s *Site) Requests(prefix string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// PageRequests is the number of requests a full load of "/" makes.
func (s *Site) PageRequests() int {
	n := 1 + s.opts.Assets
	if s.opts.Straggler > 0 {
		n++
	}
	return n
}

func (s *Site) page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"UTF-8\">\n<title>loadsum test site</title>\n")
	for i := 0; i < s.opts.Assets; i++ {
		fmt.Fprintf(&b, "<link rel=\"stylesheet\" href=\"/asset/%d.css\">\n", i)
	}
	b.WriteString("</head>\n<body>\n<h1>loadsum test site</h1>\n")
	if s.opts.Straggler > 0 {
		b.WriteString("<script>addEventListener('load', () => fetch('/late'));</script>\n")
	}
	b.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, b.String())
}

func (s *Site) asset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	rule := "body{margin:0}\n"
	body := strings.Repeat(rule, s.opts.AssetSize/len(rule)+1)[:s.opts.AssetSize]
	_, _ = fmt.Fprint(w, body)
}

func (s *Site) late(w http.ResponseWriter, r *http.Request) {
	select {
	case <-time.After(s.opts.Straggler):
	case <-r.Context().Done():
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprint(w, `{"late":true}`)
}
