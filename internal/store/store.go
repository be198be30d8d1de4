// Package store is the only component that touches durable state (§4.1). It
// exposes a transactional contract that both an in-memory SQLite database
// and a file-backed one satisfy identically — callers never see which.
package store

import (
	"context"
	"time"

	"github.com/localtrace/studio/internal/model"
)

// Tx is a started transaction. A read-write Tx must be explicitly
// committed; one that is never committed is rolled back only by Rollback
// or by cancellation of the context it was begun with (as with
// database/sql's own *sql.Tx), so callers defer Rollback.
type Tx interface {
	Commit() error
	Rollback() error
}

// Store is the contract every backend (in-memory or file-backed SQLite)
// implements identically (§4.1).
type Store interface {
	BeginRO(ctx context.Context) (Tx, error)
	BeginRW(ctx context.Context) (Tx, error)

	// SpanCreate inserts one span and returns the stored row. It returns an
	// apierr.Conflict error (never a hard failure) on a (trace_id, span_id)
	// primary-key collision — callers that want idempotent-ingest semantics
	// handle that kind explicitly.
	SpanCreate(ctx context.Context, tx Tx, span model.Span) (model.Span, error)

	// SpanGet returns apierr.NotFound if no such span exists.
	SpanGet(ctx context.Context, tx Tx, traceID model.TraceID, spanID model.SpanID) (model.Span, error)

	// SpanListByTrace returns spans in insertion order; no span-tree order
	// is implied.
	SpanListByTrace(ctx context.Context, tx Tx, traceID model.TraceID) ([]model.Span, error)

	// TracesList returns at most limit trace summaries ordered by
	// MAX(end_time) DESC, trace_id ASC as a tiebreaker.
	TracesList(ctx context.Context, tx Tx, limit int) ([]model.TraceSummary, error)

	// TraceGet returns the summary for one trace, or apierr.NotFound if it
	// has no spans.
	TraceGet(ctx context.Context, tx Tx, traceID model.TraceID) (model.TraceSummary, error)

	SpanDelete(ctx context.Context, tx Tx, traceID model.TraceID, spanID model.SpanID) (int64, error)
	SpanDeleteByTrace(ctx context.Context, tx Tx, traceID model.TraceID) (int64, error)

	// InsightsListAll returns spans with start_time >= newerThan, in no
	// particular order.
	InsightsListAll(ctx context.Context, tx Tx, newerThan time.Time) ([]model.Span, error)

	Close() error
}

// DefaultTracesListLimit is the limit applied by TracesList callers that
// don't specify one, per §4.1 / §9 Open Question 2.
const DefaultTracesListLimit = 20
