package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epimap/epimap-api/workflow"
)

// handleEvent is the conversational boundary: the chat layer calls it
// exactly once per user turn and must treat the returned mode_signal as
// authoritative, discarding any locally cached mode flag.
func (s *Server) handleEvent(c *gin.Context) {
	sessionID := c.Param("session_id")

	var event workflow.Event
	if err := c.BindJSON(&event); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}
	if event.Kind == "" {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
		return
	}

	outcome, err := s.machine.HandleEvent(c.Request.Context(), sessionID, event)
	if err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorWorkflowEvent, err)
		return
	}
	if outcome.Stale {
		staleTransitionsTotal.Inc()
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":       outcome.Reply,
		"mode_signal": outcome.Signal,
		"stage":       outcome.Stage,
	})
}

func (s *Server) deleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := s.store.DeleteSession(c.Request.Context(), sessionID); err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "OK"})
}
