package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/epimap/epimap-api/store"
)

// resolveUnit maps a point, typically a user's GPS fix, to the unit whose
// boundary contains it, so the chat layer can preselect the ward under
// discussion without shipping geometry to the client.
func (s *Server) resolveUnit(c *gin.Context) {
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}

	unit, err := s.store.FindUnitByPoint(c.Request.Context(), lon, lat)
	if err != nil {
		if errors.Is(err, store.ErrUnitNotFound) {
			abortWithEncoding(c, http.StatusNotFound, errorUnitNotFound)
			return
		}
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unit": unit})
}
