package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localtrace/studio/internal/apierr"
	"github.com/localtrace/studio/internal/model"
	"github.com/localtrace/studio/internal/store"
)

func (s *Server) handleListTraces(c *gin.Context) {
	ctx := c.Request.Context()
	tx, err := s.store.BeginRO(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer tx.Commit()

	summaries, err := s.store.TracesList(ctx, tx, store.DefaultTracesListLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if summaries == nil {
		summaries = []model.TraceSummary{}
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGetTrace(c *gin.Context) {
	traceID, ok := s.parseTraceID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tx, err := s.store.BeginRO(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer tx.Commit()

	summary, err := s.store.TraceGet(ctx, tx, traceID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleDeleteTrace(c *gin.Context) {
	traceID, ok := s.parseTraceID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tx, err := s.store.BeginRW(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer tx.Rollback()

	if _, err := s.store.SpanDeleteByTrace(ctx, tx, traceID); err != nil {
		s.writeError(c, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListSpans(c *gin.Context) {
	traceID, ok := s.parseTraceID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tx, err := s.store.BeginRO(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer tx.Commit()

	spans, err := s.store.SpanListByTrace(ctx, tx, traceID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if spans == nil {
		spans = []model.Span{}
	}
	c.JSON(http.StatusOK, spans)
}

func (s *Server) handleGetSpan(c *gin.Context) {
	traceID, ok := s.parseTraceID(c)
	if !ok {
		return
	}
	spanID, ok := s.parseSpanID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tx, err := s.store.BeginRO(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer tx.Commit()

	sp, err := s.store.SpanGet(ctx, tx, traceID, spanID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

func (s *Server) handleDeleteSpan(c *gin.Context) {
	traceID, ok := s.parseTraceID(c)
	if !ok {
		return
	}
	spanID, ok := s.parseSpanID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tx, err := s.store.BeginRW(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer tx.Rollback()

	if _, err := s.store.SpanDelete(ctx, tx, traceID, spanID); err != nil {
		s.writeError(c, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) parseTraceID(c *gin.Context) (model.TraceID, bool) {
	id, err := model.ParseTraceID(c.Param("trace_id"))
	if err != nil {
		s.writeError(c, apierr.Coded(apierr.Validation, "invalidTraceId", err.Error(), err))
		return "", false
	}
	return id, true
}

func (s *Server) parseSpanID(c *gin.Context) (model.SpanID, bool) {
	id, err := model.ParseSpanID(c.Param("span_id"))
	if err != nil {
		s.writeError(c, apierr.Coded(apierr.Validation, "invalidSpanId", err.Error(), err))
		return "", false
	}
	return id, true
}
