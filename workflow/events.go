// Package workflow owns the conversational session state machine. It is
// the single source of truth for which analysis mode a session is in; the
// external chat layer must treat the emitted mode signal as authoritative
// and keep no copy of its own.
package workflow

import (
	"fmt"

	"github.com/epimap/epimap-api/schema"
)

// EventKind is the trigger class of one user turn.
type EventKind string

const (
	EventUploadComplete EventKind = "upload-complete"
	EventMenuSelection  EventKind = "menu-selection"
	EventProvideValue   EventKind = "provide-value"
	EventConfirm        EventKind = "confirm"
	EventCommand        EventKind = "command"
	EventReset          EventKind = "reset"
)

// Event is one external trigger: a user selection, an upload completion
// or a command. Exactly one event is handled per user turn.
type Event struct {
	Kind  EventKind `json:"kind"`
	Value string    `json:"value,omitempty"`
}

// ModeSignal tells the chat layer whether this turn entered or left the
// interactive analysis mode. At most one signal is emitted per underlying
// state change, never two.
type ModeSignal string

const (
	SignalNone          ModeSignal = "none"
	SignalEnterAnalysis ModeSignal = "enter_analysis"
	SignalExitAnalysis  ModeSignal = "exit_analysis"
)

// Reply is the payload handed back to the chat layer for rendering. The
// engine never phrases prose beyond fixed prompts; narrative explanation
// is the chat layer's job.
type Reply struct {
	Text   string                    `json:"text"`
	Menu   []string                  `json:"menu,omitempty"`
	Rates  []schema.PositivityResult `json:"rates,omitempty"`
	Scores []schema.RiskScore        `json:"scores,omitempty"`
}

// Outcome is the result of one handled event. Stale is true when the
// event was suppressed as an already-applied transition.
type Outcome struct {
	Reply  Reply        `json:"reply"`
	Signal ModeSignal   `json:"mode_signal"`
	Stage  schema.Stage `json:"stage"`
	Stale  bool         `json:"-"`
}

// StaleTransitionError marks an event that would re-apply an
// already-applied transition. It is logged and suppressed; the duplicate
// mode signal is never delivered downstream.
type StaleTransitionError struct {
	SessionID string
	Stage     schema.Stage
	Event     EventKind
}

func (e *StaleTransitionError) Error() string {
	return fmt.Sprintf("session %s: event %s is stale in stage %s", e.SessionID, e.Event, e.Stage)
}
