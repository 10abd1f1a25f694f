package analyzer

import (
	"context"
	"sync"
	"time"
)

// RequestRecord is one finished network request.
type RequestRecord struct {
	RequestID    string
	EncodedBytes int64
	FinishedAt   time.Time
}

// tracker accumulates finished requests. It is written from the CDP read
// goroutine and read by the idle loop.
type tracker struct {
	mu      sync.Mutex
	start   time.Time
	last    time.Time
	records []RequestRecord
}

func newTracker(start time.Time) *tracker {
	return &tracker{start: start, last: start}
}

func (t *tracker) add(rec RequestRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
	if rec.FinishedAt.After(t.last) {
		t.last = rec.FinishedAt
	}
}

// lastFinished is the latest finish instant, or the start when nothing
// has finished.
func (t *tracker) lastFinished() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *tracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// completion is the span from start to the last finished request.
func (t *tracker) completion() time.Duration {
	return t.lastFinished().Sub(t.start)
}

// waitIdle returns at the first poll where no request has finished for
// threshold. The check precedes the first sleep.
func waitIdle(ctx context.Context, clock Clock, t *tracker, threshold, poll time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if clock.Now().Sub(t.lastFinished()) >= threshold {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(poll):
		}
	}
}
