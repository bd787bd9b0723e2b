package rate

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/epimap/epimap-api/schema"
)

const rateLogPrefix = "rate"

// Policy configures anomaly handling. When a primary rate exceeds
// FallbackThreshold and the extract carried a secondary denominator the
// calculator emits an additional fallback-tagged result; the raw result is
// always retained, never overwritten.
type Policy struct {
	FallbackEnabled   bool
	FallbackThreshold float64 // percent, default 50
}

func DefaultPolicy() Policy {
	return Policy{
		FallbackEnabled:   true,
		FallbackThreshold: 50.0,
	}
}

type groupKey struct {
	unitID  string
	stratum schema.Stratum
}

type tally struct {
	tested     float64
	positive   float64
	attendance float64
}

// Calculate computes one PositivityResult per (unit, stratum), plus
// fallback results where the policy requires them. Counts from multiple
// reporting periods are summed before dividing, never averaged as rates.
// Output order is sorted by unit then stratum, independent of input order.
func Calculate(records []schema.SurveillanceRecord, policy Policy) []schema.PositivityResult {
	tallies := make(map[groupKey]*tally)
	for _, record := range records {
		key := groupKey{unitID: record.UnitID, stratum: record.Stratum}
		t, ok := tallies[key]
		if !ok {
			t = &tally{}
			tallies[key] = t
		}
		t.tested += record.Tested
		t.positive += record.Positive
		t.attendance += record.Attendance
	}

	keys := make([]groupKey, 0, len(tallies))
	for key := range tallies {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].unitID != keys[j].unitID {
			return keys[i].unitID < keys[j].unitID
		}
		return keys[i].stratum.Key() < keys[j].stratum.Key()
	})

	var results []schema.PositivityResult
	for _, key := range keys {
		results = append(results, resultsFor(key, tallies[key], policy)...)
	}
	return results
}

func resultsFor(key groupKey, t *tally, policy Policy) []schema.PositivityResult {
	primary := schema.PositivityResult{
		UnitID:   key.unitID,
		Stratum:  key.stratum,
		Formula:  schema.FormulaPrimary,
		Flag:     schema.RateOK,
		Tested:   t.tested,
		Positive: t.positive,
	}

	switch {
	case t.tested <= 0:
		// the primary formula is undefined; flag rather than invent a rate
		primary.Flag = schema.RateAnomalousExceeds
		primary.Rate = 0
	default:
		primary.Rate = 100 * t.positive / t.tested
		if t.positive > t.tested {
			primary.Flag = schema.RateAnomalousExceeds
			log.WithFields(log.Fields{
				"prefix":   rateLogPrefix,
				"unit":     key.unitID,
				"tested":   t.tested,
				"positive": t.positive,
			}).Warn("positive count exceeds tested count")
		}
	}

	results := []schema.PositivityResult{primary}

	if policy.FallbackEnabled && t.attendance > 0 &&
		(t.tested <= 0 || primary.Rate > policy.FallbackThreshold) {
		results = append(results, schema.PositivityResult{
			UnitID:   key.unitID,
			Stratum:  key.stratum,
			Formula:  schema.FormulaFallback,
			Flag:     schema.RateAdjustedFallback,
			Rate:     100 * t.positive / t.attendance,
			Tested:   t.attendance,
			Positive: t.positive,
		})
	}

	return results
}

// Primary filters a result set down to primary-formula results, one per
// unit/stratum, for callers that feed the risk scorer.
func Primary(results []schema.PositivityResult) []schema.PositivityResult {
	var primary []schema.PositivityResult
	for _, result := range results {
		if result.Formula == schema.FormulaPrimary {
			primary = append(primary, result)
		}
	}
	return primary
}
