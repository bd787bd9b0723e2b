package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// riskTable is the result boundary: the ranked table of unit, rate,
// composite score, reduced score and allocation, plus references to any
// generated artifacts. Rendering maps or reports from it is an external
// collaborator's job.
func (s *Server) riskTable(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("session_id")

	state, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}
	if state == nil {
		abortWithEncoding(c, http.StatusNotFound, errorSessionNotFound)
		return
	}

	scores, err := s.store.ListScores(ctx, sessionID)
	if err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}
	if len(scores) == 0 {
		abortWithEncoding(c, http.StatusNotFound, errorNoRiskScores)
		return
	}

	rates, err := s.store.ListResults(ctx, sessionID)
	if err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}

	artifacts := state.Artifacts

	c.JSON(http.StatusOK, gin.H{
		"ranking":   scores,
		"rates":     rates,
		"artifacts": artifacts,
	})
}
