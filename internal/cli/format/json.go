package format

import (
	"strconv"

	"github.com/grantcarthew/loadsum/internal/analyzer"
	"github.com/grantcarthew/loadsum/internal/report"
)

// SummaryData is the JSON form of a result.
type SummaryData struct {
	RunID             string  `json:"run_id,omitempty"`
	URL               string  `json:"url"`
	Requests          int     `json:"requests"`
	TransferredBytes  int64   `json:"transferred_bytes"`
	TransferredMB     float64 `json:"transferred_mb"`
	DecodedBytes      int64   `json:"decoded_bytes"`
	DecodedMB         float64 `json:"decoded_mb"`
	DOMContentLoaded  int64   `json:"dom_content_loaded_ms"`
	Load              int64   `json:"load_ms"`
	CompletionSeconds float64 `json:"completion_s"`
}

// NewSummaryData converts a result using the same rounding as the text form.
func NewSummaryData(runID string, r *analyzer.Result) SummaryData {
	return SummaryData{
		RunID:             runID,
		URL:               r.URL,
		Requests:          r.Requests,
		TransferredBytes:  r.TransferredBytes,
		TransferredMB:     mustFloat(report.MB(r.TransferredBytes)),
		DecodedBytes:      r.DecodedBytes,
		DecodedMB:         mustFloat(report.MB(r.DecodedBytes)),
		DOMContentLoaded:  int64(r.DOMContentLoaded),
		Load:              int64(r.Load),
		CompletionSeconds: mustFloat(report.Seconds(r.Completion)),
	}
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
