// Package grpc serves the OTLP TraceService.Export RPC (§6) on its own TCP
// address, delegating straight to the Ingestor.
package grpc

import (
	"context"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/localtrace/studio/internal/apierr"
	"github.com/localtrace/studio/internal/ingest"
)

// TraceServiceServer implements coltracepb.TraceServiceServer.
type TraceServiceServer struct {
	coltracepb.UnimplementedTraceServiceServer
	ingestor *ingest.Ingestor
}

func NewTraceServiceServer(in *ingest.Ingestor) *TraceServiceServer {
	return &TraceServiceServer{ingestor: in}
}

func (s *TraceServiceServer) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	resp, err := s.ingestor.Export(ctx, req)
	if err != nil {
		return nil, toGRPCStatus(err)
	}
	return resp, nil
}

// toGRPCStatus mirrors the HTTP layer's apierr.Kind mapping (§7) in gRPC
// terms: validation is InvalidArgument, not-found is NotFound, and
// everything else surfaces as Internal without leaking the underlying cause
// to the caller.
func toGRPCStatus(err error) error {
	switch apierr.KindOf(err) {
	case apierr.Validation:
		return status.Error(codes.InvalidArgument, err.Error())
	case apierr.NotFound:
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// Register builds a *grpc.Server with the trace service registered. Callers
// (cmd/studiod) own listening and Serve/GracefulStop.
func Register(in *ingest.Ingestor) *grpc.Server {
	server := grpc.NewServer()
	coltracepb.RegisterTraceServiceServer(server, NewTraceServiceServer(in))
	return server
}
