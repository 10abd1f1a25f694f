package analyzer

import "math"

const (
	navigationTimingScript = `(() => { const n = performance.getEntriesByType('navigation')[0]; return n ? n.toJSON() : null; })()`
	resourceTimingScript   = `performance.getEntriesByType('resource').map(r => r.toJSON())`
)

// NavigationTiming holds the navigation entry offsets, in milliseconds from
// navigation start.
type NavigationTiming struct {
	DOMContentLoadedEventEnd float64 `json:"domContentLoadedEventEnd"`
	LoadEventEnd             float64 `json:"loadEventEnd"`
}

// ResourceEntry is the subset of a resource timing entry that is summed.
// Absent sizes decode as zero.
type ResourceEntry struct {
	Name            string  `json:"name"`
	TransferSize    float64 `json:"transferSize"`
	DecodedBodySize float64 `json:"decodedBodySize"`
}

// sumSizes totals transfer and decoded sizes across entries.
func sumSizes(entries []ResourceEntry) (transferred, decoded int64) {
	var t, d float64
	for _, e := range entries {
		t += nonNegative(e.TransferSize)
		d += nonNegative(e.DecodedBodySize)
	}
	return int64(t), int64(d)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
