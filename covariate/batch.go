package covariate

import (
	"context"
	"errors"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/epimap/epimap-api/raster"
	"github.com/epimap/epimap-api/schema"
)

const covariateLogPrefix = "covariate"

// ExtractAll evaluates every requested raster against every unit. Units
// are processed in parallel, but each unit's accumulation is the same
// serial Extract used in single-unit mode, so batch values are identical
// to per-unit extraction. Variables with no coverage for a unit are
// recorded in the vector's Missing list, never written as zero.
func ExtractAll(ctx context.Context, grids map[string]*raster.Grid, units []schema.SpatialUnit, parallelism int) ([]schema.CovariateVector, error) {
	variables := make([]string, 0, len(grids))
	for name := range grids {
		variables = append(variables, name)
	}
	sort.Strings(variables)

	vectors := make([]schema.CovariateVector, len(units))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism < 1 {
		parallelism = 1
	}
	g.SetLimit(parallelism)

	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vector := schema.CovariateVector{
				UnitID: unit.ID,
				Values: make(map[string]float64, len(variables)),
			}
			for _, name := range variables {
				value, err := Extract(grids[name], unit)
				if err != nil {
					var noCoverage *NoCoverageError
					if errors.As(err, &noCoverage) {
						vector.Missing = append(vector.Missing, name)
						log.WithFields(log.Fields{
							"prefix":   covariateLogPrefix,
							"unit":     unit.ID,
							"variable": name,
						}).Warn("no raster coverage for unit")
						continue
					}
					return err
				}
				vector.Values[name] = value
			}
			vectors[i] = vector
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
