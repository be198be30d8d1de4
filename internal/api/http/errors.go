package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localtrace/studio/internal/apierr"
)

// writeError maps an apierr.Kind to the HTTP status table in §4.4/§7. An
// Internal error's message is never sent to the client; only its Kind
// determines the status, and the cause is logged by the caller instead.
func (s *Server) writeError(c *gin.Context, err error) {
	kind := apierr.KindOf(err)
	status := http.StatusInternalServerError
	message := "internal error"

	switch kind {
	case apierr.Validation:
		status = http.StatusBadRequest
		message = apierr.CodeOrMessage(err)
	case apierr.NotFound:
		status = http.StatusNotFound
		message = apierr.CodeOrMessage(err)
	case apierr.Conflict:
		status = http.StatusConflict
		message = apierr.CodeOrMessage(err)
	default:
		s.logger.Error("internal error", "error", err)
	}

	c.JSON(status, gin.H{"error": message})
}
