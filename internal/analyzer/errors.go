package analyzer

import (
	"errors"
	"fmt"
)

// ErrEmptyURL is returned when Analyze is given blank input.
var ErrEmptyURL = errors.New("url is empty")

// Stage names the step of a run that failed.
type Stage string

const (
	StageOpen     Stage = "open"
	StageNavigate Stage = "navigate"
	StageIdle     Stage = "idle"
	StageMetrics  Stage = "metrics"
)

// Error is a fatal analysis failure.
type Error struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CleanupError is a failure while clearing state or releasing the browser.
// It never fails a run.
type CleanupError struct {
	Op  string
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Op, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// IsIgnorable reports whether err is only a cleanup failure.
func IsIgnorable(err error) bool {
	var cleanup *CleanupError
	return errors.As(err, &cleanup)
}
