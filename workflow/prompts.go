package workflow

// Fixed prompt strings. Anything conversational beyond these is produced
// by the external chat layer.

const (
	menuText        = "What would you like to do?"
	promptUpload    = "No analysis in progress. Upload a surveillance extract to begin."
	promptAgeGroup  = "Which age group should the rate calculation cover?"
	promptMethod    = "Which test method should be included?"
	promptRiskOffer = "Rates are ready. Run risk analysis now? (yes/no)"
	promptExplore   = "Exploration mode: say 'rates' to recalculate rates, 'risk' to rerun risk analysis, or 'reset' to start over."
	promptReset     = "Session reset."
)

var menuOptions = []string{
	"1. Calculate positivity rates",
	"2. Run risk analysis",
}

var ageGroupOptions = []string{"u5", "5-14", "15+", "all"}

var methodOptions = []string{"rdt", "microscopy", "all"}
