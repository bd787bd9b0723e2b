// Package score fuses positivity results and covariate vectors into
// ranked composite and reduced risk scores, and derives resource
// allocations from them.
package score

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/epimap/epimap-api/schema"
)

const scoreLogPrefix = "score"

// Config is the caller-supplied scoring configuration. Weights maps
// covariate names (and schema.RateVariable for the positivity rate) to
// their contribution in the composite score; an empty map means equal
// weighting. TotalResource is the quantity to allocate across units whose
// composite score reaches RiskThreshold.
type Config struct {
	Weights       map[string]float64
	RiskThreshold float64
	TotalResource float64
}

// Compute builds one RiskScore per unit with a PositivityResult, plus a
// stable set-wide ranking. Units missing any covariate are excluded from
// composite scoring and ranking, reported with their rate and an explicit
// incomplete flag, never silently imputed.
func Compute(results []schema.PositivityResult, vectors []schema.CovariateVector, units []schema.SpatialUnit, cfg Config) ([]schema.RiskScore, error) {
	variables := variableSet(vectors)

	vectorByUnit := make(map[string]schema.CovariateVector, len(vectors))
	for _, vector := range vectors {
		vectorByUnit[vector.UnitID] = vector
	}
	unitByID := make(map[string]schema.SpatialUnit, len(units))
	for _, unit := range units {
		unitByID[unit.ID] = unit
	}

	rateByUnit := make(map[string]float64)
	var unitIDs []string
	for _, result := range results {
		if _, seen := rateByUnit[result.UnitID]; seen {
			continue
		}
		rateByUnit[result.UnitID] = result.Rate
		unitIDs = append(unitIDs, result.UnitID)
	}
	sort.Strings(unitIDs)

	var complete, incomplete []string
	for _, id := range unitIDs {
		vector, ok := vectorByUnit[id]
		if ok && vector.Complete(variables) {
			complete = append(complete, id)
		} else {
			incomplete = append(incomplete, id)
		}
	}

	scores := make(map[string]*schema.RiskScore, len(unitIDs))
	for _, id := range unitIDs {
		scores[id] = &schema.RiskScore{
			UnitID: id,
			Rate:   rateByUnit[id],
			Flags:  []schema.ScoreFlag{schema.ScoreOK},
		}
	}
	for _, id := range incomplete {
		scores[id].Flags = []schema.ScoreFlag{schema.ScoreIncomplete}
		log.WithFields(log.Fields{
			"prefix": scoreLogPrefix,
			"unit":   id,
		}).Warn("unit excluded from composite scoring: missing covariates")
	}

	if len(complete) > 0 {
		if err := scoreComplete(complete, variables, rateByUnit, vectorByUnit, cfg, scores); err != nil {
			return nil, err
		}
	}

	rank(complete, scores)
	allocate(complete, unitByID, cfg, scores)

	ordered := make([]schema.RiskScore, 0, len(unitIDs))
	for _, id := range complete {
		ordered = append(ordered, *scores[id])
	}
	for _, id := range incomplete {
		ordered = append(ordered, *scores[id])
	}
	sort.Slice(ordered, func(i, j int) bool {
		ri, rj := ordered[i].CompositeRank, ordered[j].CompositeRank
		if ri == 0 && rj == 0 {
			return ordered[i].UnitID < ordered[j].UnitID
		}
		if ri == 0 {
			return false
		}
		if rj == 0 {
			return true
		}
		return ri < rj
	})
	return ordered, nil
}

func variableSet(vectors []schema.CovariateVector) []string {
	seen := map[string]bool{}
	for _, vector := range vectors {
		for name := range vector.Values {
			seen[name] = true
		}
		for _, name := range vector.Missing {
			seen[name] = true
		}
	}
	variables := make([]string, 0, len(seen))
	for name := range seen {
		variables = append(variables, name)
	}
	sort.Strings(variables)
	return variables
}

// scoreComplete normalizes each column over the complete unit set and
// fills in composite and reduced scores.
func scoreComplete(complete, variables []string, rateByUnit map[string]float64, vectorByUnit map[string]schema.CovariateVector, cfg Config, scores map[string]*schema.RiskScore) error {
	n := len(complete)
	cols := len(variables) + 1 // covariates plus the positivity rate

	columns := make([][]float64, cols)
	for j, name := range variables {
		column := make([]float64, n)
		for i, id := range complete {
			column[i] = vectorByUnit[id].Values[name]
		}
		columns[j] = minMax(column)
	}
	rates := make([]float64, n)
	for i, id := range complete {
		rates[i] = rateByUnit[id]
	}
	columns[cols-1] = minMax(rates)

	weights, err := resolveWeights(variables, cfg.Weights)
	if err != nil {
		return err
	}

	for i, id := range complete {
		var composite float64
		for j, name := range variables {
			composite += weights[name] * columns[j][i]
		}
		composite += weights[schema.RateVariable] * columns[cols-1][i]
		scores[id].Composite = composite
	}

	if n < 2 {
		// a single observation has no principal component; fall back to
		// the composite so the unit still carries a reduced value
		scores[complete[0]].Reduced = scores[complete[0]].Composite
		return nil
	}

	data := make([]float64, 0, n*cols)
	for i := 0; i < n; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, columns[j][i])
		}
	}
	projection, err := firstComponent(data, n, cols)
	if err != nil {
		return err
	}
	canonicalizeSign(projection, rates)
	for i, id := range complete {
		scores[id].Reduced = projection[i]
	}
	return nil
}

// resolveWeights fills defaults: with no explicit weights every variable
// and the rate contribute equally.
func resolveWeights(variables []string, explicit map[string]float64) (map[string]float64, error) {
	weights := make(map[string]float64, len(variables)+1)
	if len(explicit) == 0 {
		equal := 1.0 / float64(len(variables)+1)
		for _, name := range variables {
			weights[name] = equal
		}
		weights[schema.RateVariable] = equal
		return weights, nil
	}

	for name, w := range explicit {
		if name != schema.RateVariable && !containsString(variables, name) {
			return nil, fmt.Errorf("weight configured for unknown variable %q", name)
		}
		weights[name] = w
	}
	return weights, nil
}

func containsString(list []string, want string) bool {
	for _, have := range list {
		if have == want {
			return true
		}
	}
	return false
}

// rank orders complete units descending by score, breaking ties by unit
// identifier. Ranks start at 1; excluded units keep rank 0.
func rank(complete []string, scores map[string]*schema.RiskScore) {
	byComposite := append([]string(nil), complete...)
	sort.Slice(byComposite, func(i, j int) bool {
		si, sj := scores[byComposite[i]], scores[byComposite[j]]
		if si.Composite != sj.Composite {
			return si.Composite > sj.Composite
		}
		return si.UnitID < sj.UnitID
	})
	for i, id := range byComposite {
		scores[id].CompositeRank = i + 1
	}

	byReduced := append([]string(nil), complete...)
	sort.Slice(byReduced, func(i, j int) bool {
		si, sj := scores[byReduced[i]], scores[byReduced[j]]
		if si.Reduced != sj.Reduced {
			return si.Reduced > sj.Reduced
		}
		return si.UnitID < sj.UnitID
	})
	for i, id := range byReduced {
		scores[id].ReducedRank = i + 1
	}
}

// allocate splits cfg.TotalResource proportionally to population-weighted
// risk among complete units at or above the risk threshold. Units without
// population stay in the ranking but receive nothing, flagged explicitly.
func allocate(complete []string, unitByID map[string]schema.SpatialUnit, cfg Config, scores map[string]*schema.RiskScore) {
	if cfg.TotalResource <= 0 {
		return
	}

	var eligible []string
	var totalShare float64
	for _, id := range complete {
		s := scores[id]
		if s.Composite < cfg.RiskThreshold {
			continue
		}
		unit, ok := unitByID[id]
		if !ok || unit.Population == nil || *unit.Population <= 0 {
			s.Flags = append(s.Flags, schema.AllocationSkippedNoPop)
			log.WithFields(log.Fields{
				"prefix": scoreLogPrefix,
				"unit":   id,
			}).Warn("unit skipped for allocation: no population")
			continue
		}
		eligible = append(eligible, id)
		totalShare += *unit.Population * s.Composite
	}

	if totalShare <= 0 {
		return
	}
	for _, id := range eligible {
		unit := unitByID[id]
		s := scores[id]
		s.Allocation = cfg.TotalResource * (*unit.Population * s.Composite) / totalShare
	}
}
