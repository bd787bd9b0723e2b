package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epimap/epimap-api/share/geojson"
)

// importBoundaries loads a GeoJSON vector layer of unit geometries. Units
// are reference data shared across sessions, upserted by identifier.
func (s *Server) importBoundaries(c *gin.Context) {
	units, err := geojson.ParseUnits(c.Request.Body)
	if err != nil {
		abortWithEncoding(c, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    errorBoundaryParse.Code,
			Message: err.Error(),
		})
		return
	}

	if err := s.store.UpsertUnits(c.Request.Context(), units); err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": "OK",
		"units":  len(units),
	})
}
