package schema

const (
	SurveillanceCollection = "surveillance"
	ResultCollection       = "positivity_results"
)

// Stratum identifies one age-group/test-method slice of surveillance data.
type Stratum struct {
	AgeGroup string `json:"age_group" bson:"age_group"`
	Method   string `json:"method" bson:"method"`
}

func (s Stratum) Key() string {
	return s.AgeGroup + "|" + s.Method
}

// SurveillanceRecord is one row of an uploaded surveillance extract.
// Attendance is the optional secondary denominator used by the fallback
// rate formula; zero means the column was absent.
type SurveillanceRecord struct {
	SessionID  string  `json:"-" bson:"session_id"`
	UnitID     string  `json:"unit_id" bson:"unit_id"`
	Stratum    Stratum `json:"stratum" bson:"stratum"`
	Tested     float64 `json:"tested" bson:"tested"`
	Positive   float64 `json:"positive" bson:"positive"`
	Attendance float64 `json:"attendance,omitempty" bson:"attendance,omitempty"`
	Period     string  `json:"period" bson:"period"`
}

type RateFlag string

const (
	RateOK               RateFlag = "ok"
	RateAnomalousExceeds RateFlag = "anomalous-exceeds-tested"
	RateAdjustedFallback RateFlag = "adjusted-fallback-used"
)

type RateFormula string

const (
	FormulaPrimary  RateFormula = "positive-over-tested"
	FormulaFallback RateFormula = "positive-over-attendance"
)

// PositivityResult is the computed rate for one unit/stratum. Results for
// a unit/stratum are always replaced wholesale, never patched. An anomalous
// table may yield two results for the same unit/stratum: the raw primary
// rate and an additional fallback-denominator rate, both retained.
type PositivityResult struct {
	SessionID string      `json:"-" bson:"session_id"`
	UnitID    string      `json:"unit_id" bson:"unit_id"`
	Stratum   Stratum     `json:"stratum" bson:"stratum"`
	Rate      float64     `json:"rate" bson:"rate"`
	Flag      RateFlag    `json:"flag" bson:"flag"`
	Formula   RateFormula `json:"formula" bson:"formula"`
	Tested    float64     `json:"tested" bson:"tested"`
	Positive  float64     `json:"positive" bson:"positive"`
}
