// Package ingest implements the Ingestor (§4.3): it turns one OTLP export
// into persisted spans and Bus notifications.
package ingest

import (
	"context"
	"log/slog"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"github.com/localtrace/studio/internal/apierr"
	"github.com/localtrace/studio/internal/bus"
	"github.com/localtrace/studio/internal/model"
	"github.com/localtrace/studio/internal/otlp"
	"github.com/localtrace/studio/internal/store"
)

// SpanAdded is published on the Bus once per span that actually lands in the
// Store — never for a span dropped as a duplicate (§4.3, §8 ordering
// properties).
type SpanAdded struct {
	TraceID model.TraceID
	SpanID  model.SpanID
}

// Ingestor flattens OTLP exports, writes them through a Store in one
// transaction, and notifies a Bus after commit.
type Ingestor struct {
	store  store.Store
	bus    *bus.Bus
	logger *slog.Logger
}

func New(s store.Store, b *bus.Bus, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: s, bus: b, logger: logger}
}

// Export implements the core of §4.3: flatten, insert in one rw transaction
// (absorbing duplicates, failing hard on anything else), commit, then
// publish one SpanAdded per span actually inserted.
func (in *Ingestor) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	var flat []otlp.FlatSpan
	for _, rs := range req.GetResourceSpans() {
		flat = append(flat, otlp.Flatten(rs)...)
	}

	tx, err := in.store.BeginRW(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var inserted []SpanAdded
	var skippedInvalid int
	for _, fs := range flat {
		sp := fs.Span

		if fs.HasInvalidIDs {
			// §3: every persisted span has well-formed hex ids. A span with
			// an empty trace_id or span_id never reaches the Store; it's
			// dropped the same way a duplicate is, not a hard failure for
			// the rest of the export.
			skippedInvalid++
			in.logger.Warn("dropping span with empty trace_id or span_id")
			continue
		}

		start, err := model.FromUnixNano(fs.StartUnixNano)
		if err != nil {
			return nil, apierr.Internalf(err, "converting start_time_unix_nano for span %s/%s", sp.TraceID, sp.SpanID)
		}
		end, err := model.FromUnixNano(fs.EndUnixNano)
		if err != nil {
			return nil, apierr.Internalf(err, "converting end_time_unix_nano for span %s/%s", sp.TraceID, sp.SpanID)
		}
		sp.StartTime = start
		sp.EndTime = end

		_, err = in.store.SpanCreate(ctx, tx, sp)
		if err != nil {
			if apierr.Is(err, apierr.Conflict) {
				in.logger.Debug("dropping duplicate span on ingest", "trace_id", sp.TraceID, "span_id", sp.SpanID)
				continue
			}
			return nil, err
		}
		inserted = append(inserted, SpanAdded{TraceID: sp.TraceID, SpanID: sp.SpanID})
	}

	if err := tx.Commit(); err != nil {
		return nil, apierr.Internalf(err, "committing export transaction")
	}

	for _, sa := range inserted {
		in.bus.Publish(sa)
	}

	in.logger.Info("ingested export",
		"spans_received", len(flat), "spans_inserted", len(inserted), "spans_skipped_invalid", skippedInvalid)
	return &coltracepb.ExportTraceServiceResponse{}, nil
}
