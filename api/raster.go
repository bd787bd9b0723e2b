package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/epimap/epimap-api/covariate"
	"github.com/epimap/epimap-api/raster"
)

type composeRequest struct {
	Dir         string `json:"dir" binding:"required"`
	Variable    string `json:"variable" binding:"required"`
	Period      string `json:"period" binding:"required"`
	DeleteTiles bool   `json:"delete_tiles"`
}

type covariateLayer struct {
	Dir      string `json:"dir" binding:"required"`
	Variable string `json:"variable" binding:"required"`
	Period   string `json:"period" binding:"required"`
}

type extractRequest struct {
	Layers []covariateLayer `json:"layers" binding:"required"`
}

// composeRasters is the raster input boundary: it assembles the tile
// group matching the requested variable into a cached composite. Groups
// with incompatible reference systems fail individually without blocking
// others.
func (s *Server) composeRasters(c *gin.Context) {
	var req composeRequest
	if err := c.BindJSON(&req); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}

	composite, err := s.composite(c.Request.Context(), req.Dir, req.Variable, req.Period, req.DeleteTiles)
	if err != nil {
		abortComposeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"composite": composite.Meta,
	})
}

// extractCovariates evaluates the requested composite layers against
// every loaded unit and replaces the session's covariate vectors.
func (s *Server) extractCovariates(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req extractRequest
	if err := c.BindJSON(&req); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}

	ctx := c.Request.Context()
	grids := make(map[string]*raster.Grid, len(req.Layers))
	var artifacts []string
	for _, layer := range req.Layers {
		composite, err := s.composite(ctx, layer.Dir, layer.Variable, layer.Period, false)
		if err != nil {
			abortComposeError(c, err)
			return
		}
		grids[layer.Variable] = composite.Grid
		artifacts = append(artifacts, composite.Meta.Path)
	}

	units, err := s.store.ListUnits(ctx)
	if err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}
	if len(units) == 0 {
		abortWithEncoding(c, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    errorInvalidParameters.Code,
			Message: "no spatial units loaded; import a boundary layer first",
		})
		return
	}

	vectors, err := covariate.ExtractAll(ctx, grids, units, viper.GetInt("covariate.parallelism"))
	if err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}

	if err := s.store.ReplaceVectors(ctx, sessionID, vectors); err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}

	if state, err := s.store.GetSession(ctx, sessionID); err == nil && state != nil {
		state.Artifacts = artifacts
		if err := s.store.SaveSession(ctx, state); err != nil {
			log.WithError(err).Warn("cannot record session artifacts")
		}
	}

	incomplete := 0
	for _, vector := range vectors {
		if len(vector.Missing) > 0 {
			incomplete++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"result":     "OK",
		"units":      len(vectors),
		"incomplete": incomplete,
		"artifacts":  artifacts,
	})
}

// composite resolves one (variable, period, tile set) through the shared
// cache, building at most once regardless of concurrent callers.
func (s *Server) composite(ctx context.Context, dir, variable, period string, deleteTiles bool) (*raster.Composite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read tile directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	groups := raster.DetectGroups(names, raster.DefaultStrategies())
	var target *raster.TileGroup
	for i := range groups {
		if groups[i].Prefix == variable {
			target = &groups[i]
			break
		}
	}
	if target == nil {
		return nil, &unknownTileGroupError{Variable: variable, Dir: dir}
	}

	hash, err := raster.TileSetHash(dir, target.Files)
	if err != nil {
		return nil, err
	}

	return s.rasterCache.GetOrBuild(ctx, variable, period, hash, func(buildCtx context.Context) (*raster.Grid, string, error) {
		result := raster.MergeGroup(buildCtx, dir, *target, raster.MergeOptions{
			DeleteTiles: deleteTiles,
		})
		if result.Err != nil {
			return nil, "", result.Err
		}
		compositeBuildsTotal.Inc()
		return result.Grid, result.Path, nil
	})
}

type unknownTileGroupError struct {
	Variable string
	Dir      string
}

func (e *unknownTileGroupError) Error() string {
	return fmt.Sprintf("no tile group named %s in %s", e.Variable, e.Dir)
}

func abortComposeError(c *gin.Context, err error) {
	var mismatch *raster.ReferenceMismatchError
	var unknown *unknownTileGroupError
	switch {
	case errors.As(err, &mismatch):
		abortWithEncoding(c, http.StatusUnprocessableEntity, ErrorResponse{
			Code:    errorReferenceMismatch.Code,
			Message: mismatch.Error(),
		})
	case errors.As(err, &unknown):
		abortWithEncoding(c, http.StatusNotFound, ErrorResponse{
			Code:    errorUnknownTileGroup.Code,
			Message: unknown.Error(),
		})
	default:
		abortWithEncoding(c, http.StatusInternalServerError, errorTileDirectory, err)
	}
}
