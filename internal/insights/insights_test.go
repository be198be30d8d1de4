package insights

import (
	"testing"
	"time"

	"github.com/localtrace/studio/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func span(t time.Time, failed bool) model.Span {
	sp := model.Span{
		StartTime: model.NewTimestamp(t),
		EndTime:   model.NewTimestamp(t),
	}
	if failed {
		sp.Status = &model.Status{Code: model.StatusCodeError}
	}
	return sp
}

func TestBucketAlwaysReturnsResolutionPoints(t *testing.T) {
	min := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	max := min.Add(time.Hour)

	overview := Bucket(nil, min, max, 60)
	require.Len(t, overview.Requests, 60)
	for i, p := range overview.Requests {
		assert.Equal(t, 0, p.TotalRequests, "bucket %d", i)
	}
}

func TestBucketStrictlyIncreasingTimestamps(t *testing.T) {
	min := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	max := min.Add(time.Hour)

	overview := Bucket(nil, min, max, 10)
	for i := 1; i < len(overview.Requests); i++ {
		assert.True(t, overview.Requests[i].Timestamp.After(overview.Requests[i-1].Timestamp))
	}
}

func TestBucketExampleFromSpec(t *testing.T) {
	min := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	max := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)

	spans := []model.Span{
		span(min.Add(30*time.Second), false),
		span(min.Add(35*time.Second), false),
	}

	overview := Bucket(spans, min, max, 60)
	require.Len(t, overview.Requests, 60)
	assert.Equal(t, 2, overview.Requests[0].TotalRequests)
	for i := 1; i < 60; i++ {
		assert.Equal(t, 0, overview.Requests[i].TotalRequests, "bucket %d", i)
	}
	assert.Equal(t, 2, overview.TotalRequest)
	assert.Equal(t, 0, overview.FailedRequest)
}

func TestBucketLeftBoundaryInclusiveRightExclusive(t *testing.T) {
	min := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	max := min.Add(10 * time.Second)

	spans := []model.Span{
		span(min, false),                     // exactly boundary(0) -> bucket 0
		span(min.Add(time.Second), false),     // boundary(1) -> bucket 1
		span(max, false),                      // == max -> last bucket
	}
	overview := Bucket(spans, min, max, 10)
	assert.Equal(t, 1, overview.Requests[0].TotalRequests)
	assert.Equal(t, 1, overview.Requests[1].TotalRequests)
	assert.Equal(t, 1, overview.Requests[9].TotalRequests)
}

func TestBucketFailedClassification(t *testing.T) {
	min := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	max := min.Add(time.Minute)

	spans := []model.Span{
		span(min, true),
		span(min, false),
	}
	overview := Bucket(spans, min, max, 1)
	assert.Equal(t, 2, overview.Requests[0].TotalRequests)
	assert.Equal(t, 1, overview.Requests[0].FailedRequests)
	assert.Equal(t, 1, overview.FailedRequest)
}

func TestBucketSumNeverExceedsInputCount(t *testing.T) {
	min := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	max := min.Add(time.Minute)

	spans := []model.Span{
		span(min.Add(-time.Second), false), // before window: excluded
		span(min, false),
		span(max.Add(time.Second), false), // after window: excluded
	}
	overview := Bucket(spans, min, max, 5)
	assert.LessOrEqual(t, overview.TotalRequest, len(spans))
	assert.Equal(t, 1, overview.TotalRequest)
}
