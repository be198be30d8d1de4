// Package insights buckets span activity over a fixed time window into
// equal-width resolution buckets (§4.6). It is pure computation: no I/O, no
// dependency on the store or the bus.
package insights

import (
	"time"

	"github.com/localtrace/studio/internal/model"
)

// DataPoint is one bucket of the insights overview.
type DataPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalRequests  int       `json:"total_requests"`
	FailedRequests int       `json:"failed_requests"`
}

// Overview is the full /insights/overview response body.
type Overview struct {
	TotalRequest  int         `json:"total_request"`
	FailedRequest int         `json:"failed_request"`
	Requests      []DataPoint `json:"requests"`
}

// Bucket assigns spans in [min, max] to resolution equal-width buckets and
// returns exactly resolution DataPoints, sorted by timestamp ascending,
// even when every count is zero.
//
// Boundary convention (§9 Open Question 3, an intentional deviation from
// the source this spec was distilled from): bucket i owns the half-open
// interval [boundary(i), boundary(i+1)), and a span with start time == max
// is placed in the last bucket rather than dropped.
func Bucket(spans []model.Span, min, max time.Time, resolution int) Overview {
	points := make([]DataPoint, resolution)
	if resolution <= 0 {
		return Overview{Requests: points}
	}

	width := max.Sub(min) / time.Duration(resolution)
	for i := range points {
		points[i].Timestamp = min.Add(width * time.Duration(i))
	}

	var total, failed int
	for i := range spans {
		sp := &spans[i]
		t := sp.StartTime.Time
		if t.Before(min) || t.After(max) {
			continue
		}
		idx := bucketIndex(t, min, width, resolution)
		points[idx].TotalRequests++
		total++
		if sp.IsFailed() {
			points[idx].FailedRequests++
			failed++
		}
	}

	return Overview{TotalRequest: total, FailedRequest: failed, Requests: points}
}

// bucketIndex returns the largest i such that boundary(i) <= t, clamped to
// the last bucket for t == max (and for any floating point slop that would
// otherwise push it one past the end).
func bucketIndex(t, min time.Time, width time.Duration, resolution int) int {
	if width <= 0 {
		return 0
	}
	idx := int(t.Sub(min) / width)
	if idx < 0 {
		idx = 0
	}
	if idx >= resolution {
		idx = resolution - 1
	}
	return idx
}
