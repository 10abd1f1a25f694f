//go:build integration

package analyzer

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/grantcarthew/loadsum/internal/browser"
	"github.com/grantcarthew/loadsum/internal/session"
	"github.com/grantcarthew/loadsum/internal/testsite"
	"github.com/rs/zerolog"
)

func newSite(t *testing.T, opts testsite.Options) (*httptest.Server, *testsite.Site) {
	t.Helper()
	site := testsite.New(opts)
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	return srv, site
}

func chromeOpener() Opener {
	return Chrome(session.Options{
		Launch: browser.LaunchOptions{Headless: true},
		Log:    zerolog.Nop(),
	})
}

func TestIntegration_AnalyzeLocalSite(t *testing.T) {
	srv, site := newSite(t, testsite.Options{Assets: 3, AssetSize: 4096})

	a := New(chromeOpener(), Options{MaxWait: time.Minute, Log: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	res, err := a.Analyze(ctx, srv.URL+"/")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.Requests < site.PageRequests() {
		t.Errorf("Requests = %d, want at least %d", res.Requests, site.PageRequests())
	}
	if res.TransferredBytes <= 0 || res.DecodedBytes < 3*4096 {
		t.Errorf("sizes = %d / %d", res.TransferredBytes, res.DecodedBytes)
	}
	if res.DOMContentLoaded <= 0 || res.Load < res.DOMContentLoaded {
		t.Errorf("timing = %v / %v", res.DOMContentLoaded, res.Load)
	}
	if res.Completion <= 0 {
		t.Errorf("Completion = %v", res.Completion)
	}

	for _, r := range site.Requests("") {
		if r.CacheControl != "no-cache" || r.Pragma != "no-cache" {
			t.Errorf("request without no-cache headers: %+v", r)
		}
	}
}

func TestIntegration_StragglerExtendsCompletion(t *testing.T) {
	const straggler = 500 * time.Millisecond
	srv, site := newSite(t, testsite.Options{Assets: 1, Straggler: straggler})

	a := New(chromeOpener(), Options{MaxWait: time.Minute, Log: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	res, err := a.Analyze(ctx, srv.URL+"/")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(site.Requests("/late")) != 1 {
		t.Fatalf("late requests = %d", len(site.Requests("/late")))
	}
	load := time.Duration(res.Load * float64(time.Millisecond))
	if res.Completion < load+straggler {
		t.Errorf("Completion = %v, want at least load %v + %v", res.Completion, load, straggler)
	}
}

func TestIntegration_SecondRunIsNotCached(t *testing.T) {
	srv, site := newSite(t, testsite.Options{Assets: 2})
	a := New(chromeOpener(), Options{MaxWait: time.Minute, Log: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	first, err := a.Analyze(ctx, srv.URL+"/")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	seen := len(site.Requests("/asset/"))

	second, err := a.Analyze(ctx, srv.URL+"/")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := len(site.Requests("/asset/")) - seen; got != seen {
		t.Errorf("second run fetched %d assets, first run %d", got, seen)
	}
	if second.Requests != first.Requests {
		t.Errorf("request counts differ: %d vs %d", first.Requests, second.Requests)
	}
}

func TestIntegration_UnreachableHost(t *testing.T) {
	a := New(chromeOpener(), Options{MaxWait: time.Minute, Log: zerolog.Nop()})

	_, err := a.Analyze(context.Background(), "http://127.0.0.1:1/")
	var aerr *Error
	if !errors.As(err, &aerr) || aerr.Stage != StageNavigate {
		t.Fatalf("expected navigate-stage error, got %v", err)
	}
}
