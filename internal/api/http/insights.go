package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localtrace/studio/internal/insights"
)

// defaultInsightsResolution and defaultInsightsWindow match the original
// implementation's fixed last-hour-at-60-buckets overview: there is no
// client-configurable window (§4.6, §8 example 6).
const (
	defaultInsightsResolution = 60
	defaultInsightsWindow     = time.Hour
)

func (s *Server) handleInsightsOverview(c *gin.Context) {
	ctx := c.Request.Context()
	tx, err := s.store.BeginRO(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer tx.Commit()

	now := time.Now().UTC()
	min := now.Add(-defaultInsightsWindow)

	spans, err := s.store.InsightsListAll(ctx, tx, min)
	if err != nil {
		s.writeError(c, err)
		return
	}

	overview := insights.Bucket(spans, min, now, defaultInsightsResolution)
	c.JSON(http.StatusOK, overview)
}
