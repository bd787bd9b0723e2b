package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/epimap/epimap-api/schema"
)

// SessionStore persists session state between turns.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*schema.SessionState, error)
	SaveSession(ctx context.Context, state *schema.SessionState) error
	DeleteSession(ctx context.Context, id string) error
}

// Analysis is the callable service surface the machine drives. Both calls
// run synchronously within the turn; the machine only advances once they
// complete or fail.
type Analysis interface {
	CalculateRates(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.PositivityResult, error)
	ScoreRisk(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.RiskScore, error)
}

// Machine routes events through the session state machine. Each session's
// state is owned exclusively by the machine; a per-session mutex keeps
// transitions serialized so a duplicate event can never double-apply.
type Machine struct {
	sessions SessionStore
	analysis Analysis
	log      *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMachine(sessions SessionStore, analysis Analysis) *Machine {
	return &Machine{
		sessions: sessions,
		analysis: analysis,
		log:      logrus.WithField("prefix", "workflow"),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *Machine) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// HandleEvent applies exactly one event to the session and returns the
// reply plus the authoritative mode signal. Stale events are suppressed:
// they change nothing and always signal none.
func (m *Machine) HandleEvent(ctx context.Context, sessionID string, ev Event) (Outcome, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	if state == nil {
		if ev.Kind != EventUploadComplete {
			return Outcome{
				Reply:  Reply{Text: promptUpload},
				Signal: SignalNone,
				Stage:  schema.StageIdle,
			}, nil
		}
		state = &schema.SessionState{
			ID:        sessionID,
			Stage:     schema.StageIdle,
			CreatedAt: time.Now().UTC(),
		}
	}

	outcome, err := m.apply(ctx, state, ev)
	if err != nil {
		return Outcome{}, err
	}

	state.UpdatedAt = time.Now().UTC()
	if err := m.sessions.SaveSession(ctx, state); err != nil {
		return Outcome{}, err
	}
	outcome.Stage = state.Stage
	return outcome, nil
}

func (m *Machine) apply(ctx context.Context, state *schema.SessionState, ev Event) (Outcome, error) {
	if ev.Kind == EventReset {
		return m.reset(state), nil
	}

	switch state.Stage {
	case schema.StageIdle:
		return m.applyIdle(state, ev), nil
	case schema.StageMenuPresented:
		return m.applyMenu(ctx, state, ev)
	case schema.StageRateCalculation:
		return m.applyRateCalculation(ctx, state, ev)
	case schema.StageExploration:
		return m.applyExploration(ctx, state, ev)
	default:
		return m.stale(state, ev), nil
	}
}

// reset returns to idle from any state, discarding selections. Leaving an
// interactive analysis stage announces the mode exit.
func (m *Machine) reset(state *schema.SessionState) Outcome {
	signal := SignalNone
	if state.Stage == schema.StageRateCalculation {
		signal = SignalExitAnalysis
	}
	*state = schema.SessionState{
		ID:        state.ID,
		Stage:     schema.StageIdle,
		CreatedAt: state.CreatedAt,
	}
	return Outcome{
		Reply:  Reply{Text: promptReset + " " + promptUpload},
		Signal: signal,
	}
}

func (m *Machine) applyIdle(state *schema.SessionState, ev Event) Outcome {
	if ev.Kind != EventUploadComplete {
		return Outcome{Reply: Reply{Text: promptUpload}, Signal: SignalNone}
	}
	state.Stage = schema.StageMenuPresented
	state.HasUpload = true
	return Outcome{
		Reply:  Reply{Text: menuText, Menu: menuOptions},
		Signal: SignalNone,
	}
}

func (m *Machine) applyMenu(ctx context.Context, state *schema.SessionState, ev Event) (Outcome, error) {
	if ev.Kind == EventUploadComplete {
		// menu already presented for this upload
		return m.stale(state, ev), nil
	}
	if ev.Kind != EventMenuSelection {
		return Outcome{Reply: Reply{Text: menuText, Menu: menuOptions}, Signal: SignalNone}, nil
	}

	switch normalize(ev.Value) {
	case "1", "rates", "rate", "rate-calculation":
		state.Stage = schema.StageRateCalculation
		state.AwaitingRiskConfirm = false
		state.Selections = schema.Selections{}
		return Outcome{
			Reply:  Reply{Text: promptAgeGroup, Menu: ageGroupOptions},
			Signal: SignalEnterAnalysis,
		}, nil
	case "2", "risk", "risk-analysis":
		if !state.HasRates {
			return Outcome{
				Reply:  Reply{Text: "Risk analysis needs positivity rates first. " + menuText, Menu: menuOptions},
				Signal: SignalNone,
			}, nil
		}
		return m.runRiskAnalysis(ctx, state)
	default:
		// unrecognized input is echoed back with the menu restated
		return Outcome{
			Reply:  Reply{Text: "Unrecognized selection: " + ev.Value + ". " + menuText, Menu: menuOptions},
			Signal: SignalNone,
		}, nil
	}
}

func (m *Machine) applyRateCalculation(ctx context.Context, state *schema.SessionState, ev Event) (Outcome, error) {
	if state.AwaitingRiskConfirm {
		return m.applyRiskOffer(ctx, state, ev)
	}

	switch ev.Kind {
	case EventMenuSelection:
		// the transition into this stage was already applied
		return m.stale(state, ev), nil
	case EventProvideValue:
	default:
		return Outcome{Reply: m.currentPrompt(state), Signal: SignalNone}, nil
	}

	if state.Selections.AgeGroup == "" {
		state.Selections.AgeGroup = normalize(ev.Value)
		return Outcome{
			Reply:  Reply{Text: promptMethod, Menu: methodOptions},
			Signal: SignalNone,
		}, nil
	}
	if state.Selections.Method == "" {
		state.Selections.Method = normalize(ev.Value)
	}

	rates, err := m.analysis.CalculateRates(ctx, state.ID, state.Selections)
	if err != nil {
		m.log.WithField("session", state.ID).WithError(err).Error("rate calculation failed")
		state.Selections.Method = ""
		return Outcome{
			Reply:  Reply{Text: "Rate calculation failed: " + err.Error() + ". " + promptMethod, Menu: methodOptions},
			Signal: SignalNone,
		}, nil
	}

	// one transition, one signal: the mode exit is emitted here and the
	// confirmation sub-state absorbs any redelivery of the same event
	state.AwaitingRiskConfirm = true
	state.HasRates = true
	return Outcome{
		Reply:  Reply{Text: promptRiskOffer, Rates: rates},
		Signal: SignalExitAnalysis,
	}, nil
}

func (m *Machine) applyRiskOffer(ctx context.Context, state *schema.SessionState, ev Event) (Outcome, error) {
	if ev.Kind != EventConfirm {
		// redelivered completion events land here after the transition
		// already applied: suppress, restate the offer
		return m.stale(state, ev), nil
	}

	switch normalize(ev.Value) {
	case "yes", "y":
		outcome, err := m.runRiskAnalysis(ctx, state)
		if state.Stage == schema.StageExploration {
			state.AwaitingRiskConfirm = false
		}
		return outcome, err
	case "no", "n":
		state.AwaitingRiskConfirm = false
		state.Stage = schema.StageExploration
		return Outcome{
			Reply:  Reply{Text: promptExplore},
			Signal: SignalNone,
		}, nil
	default:
		return Outcome{Reply: Reply{Text: promptRiskOffer}, Signal: SignalNone}, nil
	}
}

// runRiskAnalysis drives the risk scorer synchronously and, on
// completion, moves the session to exploration. On failure the session
// stage is left unchanged so the user can retry.
func (m *Machine) runRiskAnalysis(ctx context.Context, state *schema.SessionState) (Outcome, error) {
	scores, err := m.analysis.ScoreRisk(ctx, state.ID, state.Selections)
	if err != nil {
		m.log.WithField("session", state.ID).WithError(err).Error("risk analysis failed")
		return Outcome{
			Reply:  Reply{Text: "Risk analysis failed: " + err.Error()},
			Signal: SignalNone,
		}, nil
	}

	state.Stage = schema.StageExploration
	state.HasScores = true
	return Outcome{
		Reply:  Reply{Text: promptExplore, Scores: scores},
		Signal: SignalNone,
	}, nil
}

func (m *Machine) applyExploration(ctx context.Context, state *schema.SessionState, ev Event) (Outcome, error) {
	switch ev.Kind {
	case EventCommand:
	case EventConfirm:
		// confirmation already consumed on the way into exploration
		return m.stale(state, ev), nil
	default:
		return Outcome{Reply: Reply{Text: promptExplore}, Signal: SignalNone}, nil
	}

	switch normalize(ev.Value) {
	case "rates", "rate":
		state.Stage = schema.StageRateCalculation
		state.AwaitingRiskConfirm = false
		state.Selections = schema.Selections{}
		return Outcome{
			Reply:  Reply{Text: promptAgeGroup, Menu: ageGroupOptions},
			Signal: SignalEnterAnalysis,
		}, nil
	case "risk":
		return m.runRiskAnalysis(ctx, state)
	default:
		return Outcome{Reply: Reply{Text: promptExplore}, Signal: SignalNone}, nil
	}
}

// stale suppresses a duplicate transition trigger: the state is already
// past it. Logged, never delivered downstream as a second signal.
func (m *Machine) stale(state *schema.SessionState, ev Event) Outcome {
	staleErr := &StaleTransitionError{SessionID: state.ID, Stage: state.Stage, Event: ev.Kind}
	m.log.WithField("session", state.ID).Warn(staleErr.Error())
	return Outcome{Reply: m.currentPrompt(state), Signal: SignalNone, Stale: true}
}

// currentPrompt restates whatever the session is waiting on.
func (m *Machine) currentPrompt(state *schema.SessionState) Reply {
	switch state.Stage {
	case schema.StageIdle:
		return Reply{Text: promptUpload}
	case schema.StageMenuPresented:
		return Reply{Text: menuText, Menu: menuOptions}
	case schema.StageRateCalculation:
		if state.AwaitingRiskConfirm {
			return Reply{Text: promptRiskOffer}
		}
		if state.Selections.AgeGroup == "" {
			return Reply{Text: promptAgeGroup, Menu: ageGroupOptions}
		}
		return Reply{Text: promptMethod, Menu: methodOptions}
	default:
		return Reply{Text: promptExplore}
	}
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
