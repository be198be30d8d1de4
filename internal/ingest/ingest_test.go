package ingest

import (
	"context"
	"testing"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/localtrace/studio/internal/bus"
	"github.com/localtrace/studio/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIngestor(t *testing.T) (*Ingestor, store.Store, *bus.Receiver) {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := bus.New()
	rcv := b.Subscribe()
	return New(s, b, nil), s, rcv
}

func exportRequest(traceID, spanID byte, name string) *coltracepb.ExportTraceServiceRequest {
	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{
					{Key: "service.name", Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "svc"}}},
				}},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Scope: &commonpb.InstrumentationScope{Name: "scope"},
						Spans: []*tracepb.Span{
							{
								TraceId:           []byte{traceID},
								SpanId:            []byte{spanID},
								Name:              name,
								Kind:              tracepb.Span_SPAN_KIND_SERVER,
								StartTimeUnixNano: 1_000_000_000,
								EndTimeUnixNano:   2_000_000_000,
							},
						},
					},
				},
			},
		},
	}
}

func TestExportPersistsSpanAndPublishes(t *testing.T) {
	in, s, rcv := newTestIngestor(t)
	ctx := context.Background()

	resp, err := in.Export(ctx, exportRequest(0x01, 0x02, "op"))
	require.NoError(t, err)
	assert.Nil(t, resp.PartialSuccess)

	result := rcv.Recv()
	require.False(t, result.Closed)
	require.Zero(t, result.Lag)
	sa, ok := result.Msg.(SpanAdded)
	require.True(t, ok)
	assert.Equal(t, "01", string(sa.TraceID))
	assert.Equal(t, "02", string(sa.SpanID))

	tx, err := s.BeginRO(ctx)
	require.NoError(t, err)
	defer tx.Commit()
	spans, err := s.SpanListByTrace(ctx, tx, "01")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name)
}

func TestExportDuplicateIsSilentlyAbsorbed(t *testing.T) {
	in, s, _ := newTestIngestor(t)
	ctx := context.Background()

	req := exportRequest(0x01, 0x02, "op")
	_, err := in.Export(ctx, req)
	require.NoError(t, err)

	resp, err := in.Export(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, resp.PartialSuccess)

	tx, err := s.BeginRO(ctx)
	require.NoError(t, err)
	defer tx.Commit()
	spans, err := s.SpanListByTrace(ctx, tx, "01")
	require.NoError(t, err)
	assert.Len(t, spans, 1)
}

func TestExportSkipsSpanWithEmptyIDs(t *testing.T) {
	in, s, rcv := newTestIngestor(t)
	ctx := context.Background()

	req := exportRequest(0x01, 0x02, "valid")
	req.ResourceSpans[0].ScopeSpans[0].Spans = append(req.ResourceSpans[0].ScopeSpans[0].Spans,
		&tracepb.Span{
			TraceId:           nil,
			SpanId:            nil,
			Name:              "missing-ids",
			StartTimeUnixNano: 1_000_000_000,
			EndTimeUnixNano:   2_000_000_000,
		})

	resp, err := in.Export(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, resp.PartialSuccess)

	result := rcv.Recv()
	require.False(t, result.Closed)
	sa := result.Msg.(SpanAdded)
	assert.Equal(t, "01", string(sa.TraceID))

	tx, err := s.BeginRO(ctx)
	require.NoError(t, err)
	defer tx.Commit()
	spans, err := s.SpanListByTrace(ctx, tx, "")
	require.NoError(t, err)
	assert.Empty(t, spans, "a span with empty ids must never be persisted")
}

func TestExportEmptyRequestIsNoop(t *testing.T) {
	in, _, _ := newTestIngestor(t)
	resp, err := in.Export(context.Background(), &coltracepb.ExportTraceServiceRequest{})
	require.NoError(t, err)
	assert.Nil(t, resp.PartialSuccess)
}

func TestExportPublishesOneSpanAddedPerInsertedSpanNotSkipped(t *testing.T) {
	in, _, rcv := newTestIngestor(t)
	ctx := context.Background()

	req := exportRequest(0x03, 0x04, "first")
	_, err := in.Export(ctx, req)
	require.NoError(t, err)
	first := rcv.Recv()
	require.False(t, first.Closed)

	// Re-exporting the same span skips it as a duplicate; no SpanAdded
	// may be published for it.
	_, err = in.Export(ctx, req)
	require.NoError(t, err)

	req2 := exportRequest(0x03, 0x05, "second")
	_, err = in.Export(ctx, req2)
	require.NoError(t, err)
	second := rcv.Recv()
	require.False(t, second.Closed)
	sa := second.Msg.(SpanAdded)
	assert.Equal(t, "05", string(sa.SpanID))
}
