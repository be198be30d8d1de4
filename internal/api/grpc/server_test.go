package grpc

import (
	"context"
	"testing"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/localtrace/studio/internal/bus"
	"github.com/localtrace/studio/internal/ingest"
	"github.com/localtrace/studio/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportReturnsEmptyPartialSuccessOnSuccess(t *testing.T) {
	s, err := store.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	in := ingest.New(s, bus.New(), nil)
	srv := NewTraceServiceServer(in)

	req := &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{ScopeSpans: []*tracepb.ScopeSpans{{Spans: []*tracepb.Span{
				{TraceId: []byte{0x01}, SpanId: []byte{0x02}, Name: "op"},
			}}}},
		},
	}

	resp, err := srv.Export(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, resp.PartialSuccess)
}
