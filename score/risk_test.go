package score_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimap/epimap-api/schema"
	"github.com/epimap/epimap-api/score"
)

func result(unit string, rate float64) schema.PositivityResult {
	return schema.PositivityResult{
		UnitID:  unit,
		Formula: schema.FormulaPrimary,
		Flag:    schema.RateOK,
		Rate:    rate,
	}
}

func vector(unit string, values map[string]float64, missing ...string) schema.CovariateVector {
	return schema.CovariateVector{UnitID: unit, Values: values, Missing: missing}
}

func unit(id string, population float64) schema.SpatialUnit {
	return schema.SpatialUnit{ID: id, Population: &population}
}

func scoreByUnit(scores []schema.RiskScore) map[string]schema.RiskScore {
	m := make(map[string]schema.RiskScore, len(scores))
	for _, s := range scores {
		m[s.UnitID] = s
	}
	return m
}

func TestComputeEqualWeightComposite(t *testing.T) {
	results := []schema.PositivityResult{
		result("a", 10), result("b", 20), result("c", 30),
	}
	vectors := []schema.CovariateVector{
		vector("a", map[string]float64{"rainfall": 1}),
		vector("b", map[string]float64{"rainfall": 2}),
		vector("c", map[string]float64{"rainfall": 3}),
	}

	scores, err := score.Compute(results, vectors, nil, score.Config{})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	byUnit := scoreByUnit(scores)
	assert.InDelta(t, 0.0, byUnit["a"].Composite, 1e-9)
	assert.InDelta(t, 0.5, byUnit["b"].Composite, 1e-9)
	assert.InDelta(t, 1.0, byUnit["c"].Composite, 1e-9)

	// output is ordered by composite rank, highest risk first
	assert.Equal(t, "c", scores[0].UnitID)
	assert.Equal(t, 1, scores[0].CompositeRank)
	assert.Equal(t, "a", scores[2].UnitID)
	assert.Equal(t, 3, scores[2].CompositeRank)
}

func TestComputeReducedTracksCompositeOnMonotoneData(t *testing.T) {
	// rate and covariates all increase together, so the first principal
	// component must rank units the same way the composite does
	results := []schema.PositivityResult{
		result("a", 5), result("b", 15), result("c", 30), result("d", 60),
	}
	vectors := []schema.CovariateVector{
		vector("a", map[string]float64{"rainfall": 100, "elevation": 10}),
		vector("b", map[string]float64{"rainfall": 200, "elevation": 20}),
		vector("c", map[string]float64{"rainfall": 300, "elevation": 30}),
		vector("d", map[string]float64{"rainfall": 400, "elevation": 40}),
	}

	scores, err := score.Compute(results, vectors, nil, score.Config{})
	require.NoError(t, err)

	byUnit := scoreByUnit(scores)
	for id, s := range byUnit {
		assert.Equal(t, s.CompositeRank, s.ReducedRank, "unit %s", id)
	}
	// canonical sign: the reduced score rises with the positivity rate
	assert.Greater(t, byUnit["d"].Reduced, byUnit["a"].Reduced)
}

func TestComputeRankTieBreakByUnitID(t *testing.T) {
	results := []schema.PositivityResult{result("b", 10), result("a", 10)}
	vectors := []schema.CovariateVector{
		vector("a", map[string]float64{"rainfall": 5}),
		vector("b", map[string]float64{"rainfall": 5}),
	}

	scores, err := score.Compute(results, vectors, nil, score.Config{})
	require.NoError(t, err)

	byUnit := scoreByUnit(scores)
	assert.Equal(t, byUnit["a"].Composite, byUnit["b"].Composite)
	assert.Equal(t, 1, byUnit["a"].CompositeRank)
	assert.Equal(t, 2, byUnit["b"].CompositeRank)
}

func TestComputeExcludesIncompleteUnits(t *testing.T) {
	results := []schema.PositivityResult{
		result("a", 10), result("b", 20), result("gap", 90),
	}
	vectors := []schema.CovariateVector{
		vector("a", map[string]float64{"rainfall": 1}),
		vector("b", map[string]float64{"rainfall": 2}),
		vector("gap", map[string]float64{}, "rainfall"),
	}

	scores, err := score.Compute(results, vectors, nil, score.Config{})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	byUnit := scoreByUnit(scores)
	gap := byUnit["gap"]
	assert.True(t, gap.HasFlag(schema.ScoreIncomplete))
	assert.Equal(t, 0, gap.CompositeRank)
	assert.Equal(t, 0.0, gap.Composite)
	assert.Equal(t, 90.0, gap.Rate)
	// excluded units trail the ranking rather than polluting it
	assert.Equal(t, "gap", scores[2].UnitID)
	assert.Equal(t, 1, byUnit["b"].CompositeRank)
	assert.Equal(t, 2, byUnit["a"].CompositeRank)
}

func TestComputeAllocation(t *testing.T) {
	results := []schema.PositivityResult{
		result("a", 10), result("b", 20), result("c", 30),
	}
	vectors := []schema.CovariateVector{
		vector("a", map[string]float64{"rainfall": 1}),
		vector("b", map[string]float64{"rainfall": 2}),
		vector("c", map[string]float64{"rainfall": 3}),
	}
	units := []schema.SpatialUnit{
		unit("a", 1000), unit("b", 2000), unit("c", 1000),
	}
	cfg := score.Config{RiskThreshold: 0.4, TotalResource: 100}

	scores, err := score.Compute(results, vectors, units, cfg)
	require.NoError(t, err)

	byUnit := scoreByUnit(scores)
	// a's composite of 0 sits below the threshold
	assert.Equal(t, 0.0, byUnit["a"].Allocation)
	// shares are population times composite: b 2000*0.5, c 1000*1.0
	assert.InDelta(t, 50.0, byUnit["b"].Allocation, 1e-9)
	assert.InDelta(t, 50.0, byUnit["c"].Allocation, 1e-9)
}

func TestComputeAllocationSkipsUnitsWithoutPopulation(t *testing.T) {
	results := []schema.PositivityResult{result("a", 10), result("b", 20)}
	vectors := []schema.CovariateVector{
		vector("a", map[string]float64{"rainfall": 1}),
		vector("b", map[string]float64{"rainfall": 2}),
	}
	units := []schema.SpatialUnit{
		{ID: "b"}, // no population recorded
		unit("a", 500),
	}
	cfg := score.Config{RiskThreshold: 0.0, TotalResource: 100}

	scores, err := score.Compute(results, vectors, units, cfg)
	require.NoError(t, err)

	byUnit := scoreByUnit(scores)
	b := byUnit["b"]
	assert.True(t, b.HasFlag(schema.AllocationSkippedNoPop))
	assert.Equal(t, 0.0, b.Allocation)
	assert.Equal(t, 1, b.CompositeRank, "skipped units keep their rank")
}

func TestComputeSignFlipInvariantRanking(t *testing.T) {
	results := []schema.PositivityResult{
		result("a", 10), result("b", 20), result("c", 30),
	}
	vectors := []schema.CovariateVector{
		vector("a", map[string]float64{"aridity": 1}),
		vector("b", map[string]float64{"aridity": 2}),
		vector("c", map[string]float64{"aridity": 3}),
	}
	flipped := []schema.CovariateVector{
		vector("a", map[string]float64{"aridity": -1}),
		vector("b", map[string]float64{"aridity": -2}),
		vector("c", map[string]float64{"aridity": -3}),
	}

	cfg := score.Config{Weights: map[string]float64{"aridity": 0.5, schema.RateVariable: 0.5}}
	flippedCfg := score.Config{Weights: map[string]float64{"aridity": -0.5, schema.RateVariable: 0.5}}

	want, err := score.Compute(results, vectors, nil, cfg)
	require.NoError(t, err)
	got, err := score.Compute(results, flipped, nil, flippedCfg)
	require.NoError(t, err)

	wantByUnit := scoreByUnit(want)
	gotByUnit := scoreByUnit(got)
	for id := range wantByUnit {
		assert.Equal(t, wantByUnit[id].CompositeRank, gotByUnit[id].CompositeRank, "unit %s", id)
	}
}

func TestComputeRejectsUnknownWeight(t *testing.T) {
	results := []schema.PositivityResult{result("a", 10), result("b", 20)}
	vectors := []schema.CovariateVector{
		vector("a", map[string]float64{"rainfall": 1}),
		vector("b", map[string]float64{"rainfall": 2}),
	}
	cfg := score.Config{Weights: map[string]float64{"humidity": 1}}

	_, err := score.Compute(results, vectors, nil, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "humidity")
}

func TestComputeSingleUnitReducedFallsBackToComposite(t *testing.T) {
	results := []schema.PositivityResult{result("solo", 25)}
	vectors := []schema.CovariateVector{
		vector("solo", map[string]float64{"rainfall": 9}),
	}

	scores, err := score.Compute(results, vectors, nil, score.Config{})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, scores[0].Composite, scores[0].Reduced)
	assert.Equal(t, 1, scores[0].CompositeRank)
}
