// Package report renders analysis results and status lines as the plain
// text a display shows.
package report

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/grantcarthew/loadsum/internal/analyzer"
)

// Status lines shown in place of a summary.
const (
	Placeholder   = "尚未分析"
	Loading       = "讀取中，請稍候..."
	FailurePrefix = "分析失敗："
	// CancelledReason follows FailurePrefix when the user cancels a run.
	CancelledReason = "已取消"
)

const bytesPerMB = 1024 * 1024

// Line is one label/value row of the summary.
type Line struct {
	Label string
	Value string
	Unit  string
}

// Lines is the summary of r, one metric per row.
func Lines(r *analyzer.Result) []Line {
	return []Line{
		{"要求數量：", strconv.Itoa(r.Requests), ""},
		{"已轉移：", MB(r.TransferredBytes), " MB"},
		{"資源大小：", MB(r.DecodedBytes), " MB"},
		{"DOMContentLoaded：", Millis(r.DOMContentLoaded), " 毫秒"},
		{"載入：", Millis(r.Load), " 毫秒"},
		{"完成：", Seconds(r.Completion), " 秒"},
	}
}

// SummaryText is the six-line summary without a trailing newline.
func SummaryText(r *analyzer.Result) string {
	lines := Lines(r)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Label + l.Value + l.Unit
	}
	return strings.Join(out, "\n")
}

// Failure is the error state shown when a run fails.
func Failure(reason string) string {
	return FailurePrefix + reason
}

// Reason is the user-facing part of a run error. The stage wrapper is
// dropped because it repeats the URL the user just entered.
func Reason(err error) string {
	var aerr *analyzer.Error
	if errors.As(err, &aerr) && aerr.Err != nil {
		return aerr.Err.Error()
	}
	return err.Error()
}

// Outcome is what the display shows for a finished run: the summary, or
// the error state for a failure or cancellation.
func Outcome(r *analyzer.Result, err error) string {
	switch {
	case err == nil:
		return SummaryText(r)
	case analyzer.Cancelled(err):
		return Failure(CancelledReason)
	default:
		return Failure(Reason(err))
	}
}

// MB converts bytes to mebibytes rounded to two decimals.
func MB(bytes int64) string {
	return roundedFloat(float64(bytes) / bytesPerMB)
}

// Seconds renders d in seconds rounded to two decimals.
func Seconds(d time.Duration) string {
	return roundedFloat(d.Seconds())
}

// Millis truncates a millisecond offset to an integer.
func Millis(ms float64) string {
	return strconv.FormatInt(int64(ms), 10)
}

// roundedFloat rounds v to two decimals and prints the shortest form that
// keeps at least one decimal place: 2.5, 5.0, 2.31.
func roundedFloat(v float64) string {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
