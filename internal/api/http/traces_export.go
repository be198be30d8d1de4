package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
)

const (
	contentTypeJSON     = "application/json"
	contentTypeProtobuf = "application/x-protobuf"
)

// handleExportTraces implements POST /v1/traces (§4.4): it decodes an OTLP
// ExportTraceServiceRequest in whichever of the two supported encodings the
// client used, and replies in that same encoding.
func (s *Server) handleExportTraces(c *gin.Context) {
	contentType := c.ContentType()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body: " + err.Error()})
		return
	}

	var req coltracepb.ExportTraceServiceRequest
	switch contentType {
	case contentTypeJSON:
		if err := protojson.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decoding json export request: " + err.Error()})
			return
		}
	case contentTypeProtobuf:
		if err := proto.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decoding protobuf export request: " + err.Error()})
			return
		}
	default:
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type " + contentType})
		return
	}

	resp, err := s.ingestor.Export(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	switch contentType {
	case contentTypeJSON:
		out, err := protojson.Marshal(resp)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Data(http.StatusOK, contentTypeJSON, out)
	case contentTypeProtobuf:
		out, err := proto.Marshal(resp)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Data(http.StatusOK, contentTypeProtobuf, out)
	}
}
