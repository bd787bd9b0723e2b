package schema

const (
	RiskScoreCollection = "risk_scores"
)

// RateVariable is the reserved weight key for the positivity rate when it
// is combined with covariates in the composite score.
const RateVariable = "rate"

type ScoreFlag string

const (
	ScoreOK                ScoreFlag = "ok"
	ScoreIncomplete        ScoreFlag = "incomplete"
	AllocationSkippedNoPop ScoreFlag = "allocation-skipped-no-population"
)

// RiskScore is the fused risk assessment for one unit. Scores are derived
// entirely from a PositivityResult and a CovariateVector and are rebuilt
// for the whole unit set on every run; ranking is set-wide. A rank of zero
// means the unit was excluded from that ranking.
type RiskScore struct {
	SessionID     string      `json:"-" bson:"session_id"`
	UnitID        string      `json:"unit_id" bson:"unit_id"`
	Rate          float64     `json:"rate" bson:"rate"`
	Composite     float64     `json:"composite" bson:"composite"`
	Reduced       float64     `json:"reduced" bson:"reduced"`
	CompositeRank int         `json:"composite_rank" bson:"composite_rank"`
	ReducedRank   int         `json:"reduced_rank" bson:"reduced_rank"`
	Allocation    float64     `json:"allocation" bson:"allocation"`
	Flags         []ScoreFlag `json:"flags,omitempty" bson:"flags,omitempty"`
}

func (r RiskScore) HasFlag(f ScoreFlag) bool {
	for _, have := range r.Flags {
		if have == f {
			return true
		}
	}
	return false
}
