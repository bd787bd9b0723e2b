package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/epimap/epimap-api/rate"
)

// uploadSurveillance is the upload boundary for tabular extracts. The
// table is parsed through the versioned column-synonym table; a table
// whose required columns cannot be resolved is rejected whole, with the
// missing fields named in the response.
func (s *Server) uploadSurveillance(c *gin.Context) {
	sessionID := c.Param("session_id")

	synonyms := rate.DefaultSynonyms()
	if path := viper.GetString("rate.synonyms"); path != "" {
		loaded, err := rate.LoadSynonyms(path)
		if err != nil {
			abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
			return
		}
		synonyms = loaded
	}

	records, err := rate.ParseTable(c.Request.Context(), c.Request.Body, synonyms)
	if err != nil {
		var unresolved *rate.SchemaUnresolvedError
		if errors.As(err, &unresolved) {
			abortWithEncoding(c, http.StatusUnprocessableEntity, ErrorResponse{
				Code:    errorSchemaUnresolved.Code,
				Message: unresolved.Error(),
			})
			return
		}
		abortWithEncoding(c, http.StatusBadRequest, errorTableParse, err)
		return
	}

	if err := s.store.ReplaceRecords(c.Request.Context(), sessionID, records); err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":  "OK",
		"records": len(records),
	})
}
