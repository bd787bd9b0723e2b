package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimap/epimap-api/schema"
	"github.com/epimap/epimap-api/workflow"
)

type memorySessions struct {
	mu     sync.Mutex
	states map[string]schema.SessionState
}

func newMemorySessions() *memorySessions {
	return &memorySessions{states: make(map[string]schema.SessionState)}
}

func (s *memorySessions) GetSession(ctx context.Context, id string) (*schema.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

func (s *memorySessions) SaveSession(ctx context.Context, state *schema.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = *state
	return nil
}

func (s *memorySessions) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

type fakeAnalysis struct {
	mu         sync.Mutex
	rateCalls  int
	scoreCalls int
	rateErr    error
	scoreErr   error
}

func (a *fakeAnalysis) CalculateRates(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.PositivityResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rateCalls++
	if a.rateErr != nil {
		return nil, a.rateErr
	}
	return []schema.PositivityResult{{UnitID: "ngwa1", Rate: 20, Formula: schema.FormulaPrimary}}, nil
}

func (a *fakeAnalysis) ScoreRisk(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.RiskScore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scoreCalls++
	if a.scoreErr != nil {
		return nil, a.scoreErr
	}
	return []schema.RiskScore{{UnitID: "ngwa1", Composite: 1, CompositeRank: 1}}, nil
}

func handle(t *testing.T, m *workflow.Machine, session string, kind workflow.EventKind, value string) workflow.Outcome {
	t.Helper()
	outcome, err := m.HandleEvent(context.Background(), session, workflow.Event{Kind: kind, Value: value})
	require.NoError(t, err)
	return outcome
}

func TestHappyPath(t *testing.T) {
	analysis := &fakeAnalysis{}
	m := workflow.NewMachine(newMemorySessions(), analysis)
	const session = "s1"

	out := handle(t, m, session, workflow.EventUploadComplete, "")
	assert.Equal(t, schema.StageMenuPresented, out.Stage)
	assert.Equal(t, workflow.SignalNone, out.Signal)
	assert.NotEmpty(t, out.Reply.Menu)

	out = handle(t, m, session, workflow.EventMenuSelection, "1")
	assert.Equal(t, schema.StageRateCalculation, out.Stage)
	assert.Equal(t, workflow.SignalEnterAnalysis, out.Signal)

	out = handle(t, m, session, workflow.EventProvideValue, "u5")
	assert.Equal(t, workflow.SignalNone, out.Signal)

	out = handle(t, m, session, workflow.EventProvideValue, "rdt")
	assert.Equal(t, workflow.SignalExitAnalysis, out.Signal)
	assert.NotEmpty(t, out.Reply.Rates)
	assert.Equal(t, 1, analysis.rateCalls)

	out = handle(t, m, session, workflow.EventConfirm, "yes")
	assert.Equal(t, schema.StageExploration, out.Stage)
	assert.Equal(t, workflow.SignalNone, out.Signal)
	assert.NotEmpty(t, out.Reply.Scores)
	assert.Equal(t, 1, analysis.scoreCalls)
}

func TestDuplicateCompletionEmitsOneExitSignal(t *testing.T) {
	analysis := &fakeAnalysis{}
	m := workflow.NewMachine(newMemorySessions(), analysis)
	const session = "s2"

	handle(t, m, session, workflow.EventUploadComplete, "")
	handle(t, m, session, workflow.EventMenuSelection, "1")
	handle(t, m, session, workflow.EventProvideValue, "u5")

	first := handle(t, m, session, workflow.EventProvideValue, "rdt")
	assert.Equal(t, workflow.SignalExitAnalysis, first.Signal)
	assert.False(t, first.Stale)

	// the same completing event delivered again must not re-run the
	// calculation or emit a second exit signal
	second := handle(t, m, session, workflow.EventProvideValue, "rdt")
	assert.Equal(t, workflow.SignalNone, second.Signal)
	assert.True(t, second.Stale)
	assert.Equal(t, 1, analysis.rateCalls)
}

func TestDuplicateMenuSelectionIsStale(t *testing.T) {
	m := workflow.NewMachine(newMemorySessions(), &fakeAnalysis{})
	const session = "s3"

	handle(t, m, session, workflow.EventUploadComplete, "")
	first := handle(t, m, session, workflow.EventMenuSelection, "1")
	assert.Equal(t, workflow.SignalEnterAnalysis, first.Signal)

	second := handle(t, m, session, workflow.EventMenuSelection, "1")
	assert.Equal(t, workflow.SignalNone, second.Signal)
	assert.True(t, second.Stale)
	assert.Equal(t, schema.StageRateCalculation, second.Stage)
}

func TestUnrecognizedMenuInputRestatesMenu(t *testing.T) {
	m := workflow.NewMachine(newMemorySessions(), &fakeAnalysis{})
	const session = "s4"

	handle(t, m, session, workflow.EventUploadComplete, "")
	out := handle(t, m, session, workflow.EventMenuSelection, "bananas")

	assert.Equal(t, schema.StageMenuPresented, out.Stage)
	assert.Equal(t, workflow.SignalNone, out.Signal)
	assert.Contains(t, out.Reply.Text, "bananas")
	assert.NotEmpty(t, out.Reply.Menu)
}

func TestRiskAnalysisNeedsRatesFirst(t *testing.T) {
	analysis := &fakeAnalysis{}
	m := workflow.NewMachine(newMemorySessions(), analysis)
	const session = "s5"

	handle(t, m, session, workflow.EventUploadComplete, "")
	out := handle(t, m, session, workflow.EventMenuSelection, "2")

	assert.Equal(t, schema.StageMenuPresented, out.Stage)
	assert.Equal(t, workflow.SignalNone, out.Signal)
	assert.Equal(t, 0, analysis.scoreCalls)
}

func TestRateFailureAllowsRetry(t *testing.T) {
	analysis := &fakeAnalysis{rateErr: errors.New("no surveillance records for session")}
	sessions := newMemorySessions()
	m := workflow.NewMachine(sessions, analysis)
	const session = "s6"

	handle(t, m, session, workflow.EventUploadComplete, "")
	handle(t, m, session, workflow.EventMenuSelection, "1")
	handle(t, m, session, workflow.EventProvideValue, "u5")

	out := handle(t, m, session, workflow.EventProvideValue, "rdt")
	assert.Equal(t, workflow.SignalNone, out.Signal)
	assert.Equal(t, schema.StageRateCalculation, out.Stage)

	analysis.mu.Lock()
	analysis.rateErr = nil
	analysis.mu.Unlock()

	out = handle(t, m, session, workflow.EventProvideValue, "rdt")
	assert.Equal(t, workflow.SignalExitAnalysis, out.Signal)
	assert.Equal(t, 2, analysis.rateCalls)
}

func TestRiskFailureLeavesStageUnchanged(t *testing.T) {
	analysis := &fakeAnalysis{scoreErr: errors.New("no positivity results for session")}
	m := workflow.NewMachine(newMemorySessions(), analysis)
	const session = "s7"

	handle(t, m, session, workflow.EventUploadComplete, "")
	handle(t, m, session, workflow.EventMenuSelection, "1")
	handle(t, m, session, workflow.EventProvideValue, "u5")
	handle(t, m, session, workflow.EventProvideValue, "rdt")

	out := handle(t, m, session, workflow.EventConfirm, "yes")
	assert.Equal(t, schema.StageRateCalculation, out.Stage)
	assert.Equal(t, workflow.SignalNone, out.Signal)

	analysis.mu.Lock()
	analysis.scoreErr = nil
	analysis.mu.Unlock()

	out = handle(t, m, session, workflow.EventConfirm, "yes")
	assert.Equal(t, schema.StageExploration, out.Stage)
}

func TestDeclineRiskOffer(t *testing.T) {
	analysis := &fakeAnalysis{}
	m := workflow.NewMachine(newMemorySessions(), analysis)
	const session = "s8"

	handle(t, m, session, workflow.EventUploadComplete, "")
	handle(t, m, session, workflow.EventMenuSelection, "1")
	handle(t, m, session, workflow.EventProvideValue, "u5")
	handle(t, m, session, workflow.EventProvideValue, "rdt")

	out := handle(t, m, session, workflow.EventConfirm, "no")
	assert.Equal(t, schema.StageExploration, out.Stage)
	assert.Equal(t, 0, analysis.scoreCalls)

	// risk analysis stays reachable from exploration
	out = handle(t, m, session, workflow.EventCommand, "risk")
	assert.Equal(t, schema.StageExploration, out.Stage)
	assert.Equal(t, 1, analysis.scoreCalls)
}

func TestResetFromAnalysisEmitsExit(t *testing.T) {
	m := workflow.NewMachine(newMemorySessions(), &fakeAnalysis{})
	const session = "s9"

	handle(t, m, session, workflow.EventUploadComplete, "")
	handle(t, m, session, workflow.EventMenuSelection, "1")

	out := handle(t, m, session, workflow.EventReset, "")
	assert.Equal(t, schema.StageIdle, out.Stage)
	assert.Equal(t, workflow.SignalExitAnalysis, out.Signal)
}

func TestResetOutsideAnalysisSignalsNone(t *testing.T) {
	m := workflow.NewMachine(newMemorySessions(), &fakeAnalysis{})
	const session = "s10"

	handle(t, m, session, workflow.EventUploadComplete, "")
	out := handle(t, m, session, workflow.EventReset, "")
	assert.Equal(t, schema.StageIdle, out.Stage)
	assert.Equal(t, workflow.SignalNone, out.Signal)
}

func TestUnknownSessionPromptsForUpload(t *testing.T) {
	sessions := newMemorySessions()
	m := workflow.NewMachine(sessions, &fakeAnalysis{})

	out := handle(t, m, "ghost", workflow.EventMenuSelection, "1")
	assert.Equal(t, schema.StageIdle, out.Stage)
	assert.Equal(t, workflow.SignalNone, out.Signal)

	// nothing was persisted for the unknown session
	state, err := sessions.GetSession(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestExplorationReentersRateCalculation(t *testing.T) {
	analysis := &fakeAnalysis{}
	m := workflow.NewMachine(newMemorySessions(), analysis)
	const session = "s11"

	handle(t, m, session, workflow.EventUploadComplete, "")
	handle(t, m, session, workflow.EventMenuSelection, "1")
	handle(t, m, session, workflow.EventProvideValue, "u5")
	handle(t, m, session, workflow.EventProvideValue, "rdt")
	handle(t, m, session, workflow.EventConfirm, "yes")

	out := handle(t, m, session, workflow.EventCommand, "rates")
	assert.Equal(t, schema.StageRateCalculation, out.Stage)
	assert.Equal(t, workflow.SignalEnterAnalysis, out.Signal)

	out = handle(t, m, session, workflow.EventProvideValue, "all")
	out = handle(t, m, session, workflow.EventProvideValue, "all")
	assert.Equal(t, workflow.SignalExitAnalysis, out.Signal)
	assert.Equal(t, 2, analysis.rateCalls)
}
