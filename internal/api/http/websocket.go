package http

import (
	"github.com/gin-gonic/gin"

	"github.com/localtrace/studio/internal/ws"
)

func (s *Server) handleWebSocket(c *gin.Context) {
	ws.Handler(s.bus, s.logger)(c)
}
