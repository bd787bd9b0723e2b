package schema

import "time"

const (
	SessionCollection = "sessions"
)

// Stage is the single active conversational stage of a session. Risk
// scoring runs synchronously within a single turn, so there is no
// persistent risk-analysis stage; sessions move straight from
// rate-calculation to exploration.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageMenuPresented   Stage = "menu-presented"
	StageRateCalculation Stage = "rate-calculation"
	StageExploration     Stage = "exploration"
)

// Selections accumulates the choices a user makes during a session.
type Selections struct {
	AgeGroup       string `json:"age_group" bson:"age_group"`
	Method         string `json:"method" bson:"method"`
	FacilityFilter string `json:"facility_filter,omitempty" bson:"facility_filter,omitempty"`
	Weighting      string `json:"weighting,omitempty" bson:"weighting,omitempty"`
}

// SessionState is owned exclusively by the workflow state machine.
// Exactly one stage is active at any time; AwaitingRiskConfirm marks the
// yes/no sub-state offered after a successful rate calculation.
type SessionState struct {
	ID                  string     `json:"id" bson:"id"`
	Stage               Stage      `json:"stage" bson:"stage"`
	AwaitingRiskConfirm bool       `json:"awaiting_risk_confirm" bson:"awaiting_risk_confirm"`
	Selections          Selections `json:"selections" bson:"selections"`
	HasUpload           bool       `json:"has_upload" bson:"has_upload"`
	HasRates            bool       `json:"has_rates" bson:"has_rates"`
	HasScores           bool       `json:"has_scores" bson:"has_scores"`
	Artifacts           []string   `json:"artifacts,omitempty" bson:"artifacts,omitempty"`
	CreatedAt           time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" bson:"updated_at"`
}
